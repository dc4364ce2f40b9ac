// go-iso15693
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-iso15693.
//
// go-iso15693 is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-iso15693 is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-iso15693; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package iso15693

import (
	"context"
	"fmt"
)

// UIDLength is the length of an ISO15693 unique identifier
const UIDLength = 8

// Tag is a connected ISO15693 tag as exposed by the platform driver. A Tag is
// only valid for the lifetime of the session that detected it.
//
// Implementations do not need to be safe for concurrent use; the Sequencer
// never issues two commands to the same tag at once.
type Tag interface {
	// Connect establishes communication with the tag
	Connect(ctx context.Context) error

	// GetSystemInfo issues the Get System Information command
	GetSystemInfo(ctx context.Context) (*SystemInfo, error)

	// ReadSingleBlock reads one memory block
	ReadSingleBlock(ctx context.Context, block uint8) ([]byte, error)

	// WriteAFI writes the Application Family Identifier
	WriteAFI(ctx context.Context, afi byte) error

	// Select puts the tag in the selected state
	Select(ctx context.Context) error

	// CustomCommand issues a vendor custom command
	CustomCommand(ctx context.Context, code byte, params []byte) ([]byte, error)
}

// SystemInfo is the tag metadata returned by Get System Information. It is
// fetched fresh for each operation and never cached across sessions.
type SystemInfo struct {
	// UID as reported by the driver
	UID         []byte
	TotalBlocks int
	BlockSize   int
	DSFID       byte
	AFI         byte
	ICReference byte
	// HasAFI is false when the tag did not report an AFI ("unset")
	HasAFI bool
}

// Status classifies the AFI byte of the tag
func (s *SystemInfo) Status() Status {
	if s == nil {
		return StatusUnknown
	}
	return ClassifyStatus(s.AFI, s.HasAFI)
}

// SerialNumber returns the UID in reversed byte order, hex encoded
func (s *SystemInfo) SerialNumber(format HexFormat) string {
	return HexEncode(reverseBytes(s.UID), format)
}

// String implements fmt.Stringer
func (s *SystemInfo) String() string {
	afi := "unset"
	if s.HasAFI {
		afi = FormatFlag(s.AFI)
	}
	return fmt.Sprintf("UID=%s blocks=%d blockSize=%d AFI=%s",
		HexEncode(s.UID, HexFormat{Separator: ":"}), s.TotalBlocks, s.BlockSize, afi)
}
