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

// Package testing provides simulated ISO15693 tags and a simulated bridge
// reader for transport and driver tests.
package testing

import (
	"bytes"
	"encoding/hex"
	"errors"
	"fmt"
	"sync"

	"github.com/ZaparooProject/go-iso15693/internal/wire"
)

// NXP ICODE custom command codes understood by the virtual tag
const (
	CmdSetEAS      = 0xA2
	CmdResetEAS    = 0xA3
	CmdEASAlarm    = 0xA5
	easAlarmLength = 32
)

// Test UIDs, LSB first as transmitted by the tag
var (
	TestICODESLIXUID  = []byte{0x78, 0x56, 0x34, 0x12, 0x50, 0x01, 0x04, 0xE0}
	TestICODESLIX2UID = []byte{0x21, 0x43, 0x65, 0x87, 0x08, 0x01, 0x04, 0xE0}
)

// VirtualTag represents a simulated ISO15693 tag for testing
type VirtualTag struct {
	Type      string
	UID       []byte
	Memory    [][]byte // Block-based memory layout
	BlockSize int
	AFI       byte
	DSFID     byte
	ICRef     byte
	HasAFI    bool
	EAS       bool
	Present   bool // Whether the tag is currently in the field
	Selected  bool
	mu        sync.Mutex
}

// NewVirtualICODESLIX creates a virtual ICODE SLIX tag: 28 blocks of 4 bytes
func NewVirtualICODESLIX(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestICODESLIXUID
	}
	return newVirtualTag("ICODE SLIX", uid, 28, 4)
}

// NewVirtualICODESLIX2 creates a virtual ICODE SLIX2 tag: 80 blocks of 4 bytes
func NewVirtualICODESLIX2(uid []byte) *VirtualTag {
	if uid == nil {
		uid = TestICODESLIX2UID
	}
	return newVirtualTag("ICODE SLIX2", uid, 80, 4)
}

func newVirtualTag(typ string, uid []byte, blocks, blockSize int) *VirtualTag {
	tag := &VirtualTag{
		Type:      typ,
		UID:       append([]byte(nil), uid...),
		Memory:    make([][]byte, blocks),
		BlockSize: blockSize,
		ICRef:     0x01,
		HasAFI:    true,
		Present:   true,
	}
	for i := range tag.Memory {
		tag.Memory[i] = make([]byte, blockSize)
	}
	return tag
}

// GetUIDString returns the UID as a hex string
func (v *VirtualTag) GetUIDString() string {
	return hex.EncodeToString(v.UID)
}

// ReadBlock reads a specific memory block
func (v *VirtualTag) ReadBlock(block int) ([]byte, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if block < 0 || block >= len(v.Memory) {
		return nil, fmt.Errorf("block %d out of range", block)
	}
	return append([]byte(nil), v.Memory[block]...), nil
}

// WriteBlock writes data to a specific memory block
func (v *VirtualTag) WriteBlock(block int, data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if block < 0 || block >= len(v.Memory) {
		return fmt.Errorf("block %d out of range", block)
	}
	if len(data) != v.BlockSize {
		return fmt.Errorf("data must be exactly %d bytes, got %d", v.BlockSize, len(data))
	}
	v.Memory[block] = append([]byte(nil), data...)
	return nil
}

// SetMemory overwrites user memory from block 0, zero filling the rest
func (v *VirtualTag) SetMemory(data []byte) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if len(data) > len(v.Memory)*v.BlockSize {
		return fmt.Errorf("%d bytes do not fit in %d blocks", len(data), len(v.Memory))
	}
	for i := range v.Memory {
		block := make([]byte, v.BlockSize)
		start := i * v.BlockSize
		if start < len(data) {
			copy(block, data[start:])
		}
		v.Memory[i] = block
	}
	return nil
}

// SetBarcode stores NUL separated segments the way library tags carry them
func (v *VirtualTag) SetBarcode(segments ...string) error {
	return v.SetMemory([]byte(joinSegments(segments)))
}

func joinSegments(segments []string) string {
	var buf bytes.Buffer
	for i, s := range segments {
		if i > 0 {
			buf.WriteByte(0x00)
		}
		buf.WriteString(s)
	}
	return buf.String()
}

// SetNDEFText stores a capability container and a single text record
func (v *VirtualTag) SetNDEFText(text string) error {
	payload := append([]byte{0x02, 'e', 'n'}, text...)
	if len(payload) > 0xFF {
		return errors.New("text too long for a short record")
	}
	record := []byte{
		0xD1,               // MB, ME, SR, TNF well known
		0x01,               // type length
		byte(len(payload)), // payload length
		'T',
	}
	record = append(record, payload...)

	size := len(v.Memory) * v.BlockSize
	data := []byte{0xE1, 0x40, byte(size / 8), 0x00, 0x03, byte(len(record))}
	data = append(data, record...)
	data = append(data, 0xFE)
	return v.SetMemory(data)
}

// SetAFI sets the AFI byte
func (v *VirtualTag) SetAFI(afi byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.AFI, v.HasAFI = afi, true
}

// GetAFI returns the AFI byte
func (v *VirtualTag) GetAFI() byte {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.AFI
}

// EASEnabled reports whether the EAS bit is set
func (v *VirtualTag) EASEnabled() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.EAS
}

// Remove takes the tag out of the field
func (v *VirtualTag) Remove() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Present = false
	v.Selected = false
}

// Insert puts the tag back in the field
func (v *VirtualTag) Insert() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.Present = true
}

// IsPresent reports whether the tag is in the field
func (v *VirtualTag) IsPresent() bool {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.Present
}

// Handle answers one ISO15693 request. A nil response means the tag stayed
// silent, either because it is not addressed or not in the field.
func (v *VirtualTag) Handle(raw []byte) []byte {
	req, err := wire.ParseRequest(raw)
	if err != nil {
		return nil
	}

	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.Present {
		return nil
	}
	if req.Flags&wire.FlagAddress != 0 && !bytes.Equal(req.UID, v.UID) {
		// a Select addressed to another tag deselects this one
		if req.Command == wire.CmdSelect {
			v.Selected = false
		}
		return nil
	}
	if req.Flags&wire.FlagSelect != 0 && !v.Selected {
		return nil
	}

	switch req.Command {
	case wire.CmdGetSystemInfo:
		return wire.OKResponse(v.systemInfo().Marshal())
	case wire.CmdReadSingleBlock:
		if len(req.Params) < 1 || int(req.Params[0]) >= len(v.Memory) {
			return wire.ErrorResponse(0x10)
		}
		return wire.OKResponse(v.Memory[req.Params[0]])
	case wire.CmdWriteSingleBlock:
		if len(req.Params) != 1+v.BlockSize || int(req.Params[0]) >= len(v.Memory) {
			return wire.ErrorResponse(0x10)
		}
		v.Memory[req.Params[0]] = append([]byte(nil), req.Params[1:]...)
		return wire.OKResponse(nil)
	case wire.CmdWriteAFI:
		if len(req.Params) != 1 {
			return wire.ErrorResponse(0x0F)
		}
		v.AFI, v.HasAFI = req.Params[0], true
		return wire.OKResponse(nil)
	case wire.CmdSelect:
		v.Selected = true
		return wire.OKResponse(nil)
	case wire.CmdResetToReady:
		v.Selected = false
		return wire.OKResponse(nil)
	}

	if req.IsCustom() {
		return v.handleCustom(req)
	}
	return wire.ErrorResponse(0x01)
}

func (v *VirtualTag) handleCustom(req wire.Request) []byte {
	if req.Manufacturer != wire.ManufacturerNXP {
		return nil
	}
	switch req.Command {
	case CmdSetEAS:
		v.EAS = true
		return wire.OKResponse(nil)
	case CmdResetEAS:
		v.EAS = false
		return wire.OKResponse(nil)
	case CmdEASAlarm:
		if !v.EAS {
			return nil
		}
		return wire.OKResponse(bytes.Repeat([]byte{0xAA}, easAlarmLength))
	default:
		return wire.ErrorResponse(0x01)
	}
}

func (v *VirtualTag) systemInfo() wire.SystemInfo {
	return wire.SystemInfo{
		UID:        v.UID,
		DSFID:      v.DSFID,
		AFI:        v.AFI,
		Blocks:     len(v.Memory),
		BlockSize:  v.BlockSize,
		ICRef:      v.ICRef,
		HasDSFID:   true,
		HasAFI:     v.HasAFI,
		HasMemSize: true,
		HasICRef:   true,
	}
}
