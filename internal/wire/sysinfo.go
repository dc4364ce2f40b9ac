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

package wire

import "fmt"

// SystemInfo is the decoded Get System Information payload
type SystemInfo struct {
	UID        []byte
	Blocks     int
	BlockSize  int
	InfoFlags  byte
	DSFID      byte
	AFI        byte
	ICRef      byte
	HasDSFID   bool
	HasAFI     bool
	HasMemSize bool
	HasICRef   bool
}

// ParseSystemInfo decodes the payload of a Get System Information response
// (after the response flags byte).
func ParseSystemInfo(payload []byte) (SystemInfo, error) {
	if len(payload) < 1+UIDLength {
		return SystemInfo{}, fmt.Errorf("%w: system info %d bytes", ErrShortResponse, len(payload))
	}

	info := SystemInfo{InfoFlags: payload[0]}
	info.UID = append([]byte(nil), payload[1:1+UIDLength]...)
	rest := payload[1+UIDLength:]

	take := func(n int) ([]byte, error) {
		if len(rest) < n {
			return nil, fmt.Errorf("%w: system info truncated", ErrShortResponse)
		}
		b := rest[:n]
		rest = rest[n:]
		return b, nil
	}

	if info.InfoFlags&InfoDSFID != 0 {
		b, err := take(1)
		if err != nil {
			return SystemInfo{}, err
		}
		info.DSFID, info.HasDSFID = b[0], true
	}
	if info.InfoFlags&InfoAFI != 0 {
		b, err := take(1)
		if err != nil {
			return SystemInfo{}, err
		}
		info.AFI, info.HasAFI = b[0], true
	}
	if info.InfoFlags&InfoMemSize != 0 {
		b, err := take(2)
		if err != nil {
			return SystemInfo{}, err
		}
		// both values are encoded minus one
		info.Blocks = int(b[0]) + 1
		info.BlockSize = int(b[1]&0x1F) + 1
		info.HasMemSize = true
	}
	if info.InfoFlags&InfoICRef != 0 {
		b, err := take(1)
		if err != nil {
			return SystemInfo{}, err
		}
		info.ICRef, info.HasICRef = b[0], true
	}
	return info, nil
}

// Marshal encodes the system info payload
func (s SystemInfo) Marshal() []byte {
	var flags byte
	out := []byte{0}
	out = append(out, s.UID...)
	if s.HasDSFID {
		flags |= InfoDSFID
		out = append(out, s.DSFID)
	}
	if s.HasAFI {
		flags |= InfoAFI
		out = append(out, s.AFI)
	}
	if s.HasMemSize {
		flags |= InfoMemSize
		out = append(out, byte(s.Blocks-1), byte(s.BlockSize-1)&0x1F)
	}
	if s.HasICRef {
		flags |= InfoICRef
		out = append(out, s.ICRef)
	}
	out[0] = flags
	return out
}

// ParseInventory decodes a bridge Inventory response: a tag count followed by
// that many 8-byte UIDs.
func ParseInventory(payload []byte) ([][]byte, error) {
	if len(payload) < 1 {
		return nil, ErrShortResponse
	}
	count := int(payload[0])
	if len(payload) < 1+count*UIDLength {
		return nil, fmt.Errorf("%w: inventory of %d tags has %d bytes", ErrShortResponse, count, len(payload))
	}

	uids := make([][]byte, count)
	for i := range uids {
		start := 1 + i*UIDLength
		uids[i] = append([]byte(nil), payload[start:start+UIDLength]...)
	}
	return uids, nil
}

// MarshalInventory encodes a bridge Inventory response
func MarshalInventory(uids [][]byte) []byte {
	out := []byte{byte(len(uids))}
	for _, uid := range uids {
		out = append(out, uid...)
	}
	return out
}
