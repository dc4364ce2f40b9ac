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
	"fmt"

	"github.com/hsanjuan/go-ndef"
)

// NFC Forum Type 5 tag layout constants
const (
	ccMagicOneByte  = 0xE1
	ccMagicTwoByte  = 0xE2
	ccLength        = 4
	ccExtendedLen   = 8
	tlvNull         = 0x00
	tlvNDEF         = 0x03
	tlvTerminator   = 0xFE
	tlvLongLength   = 0xFF
	tlvLongLenBytes = 3
)

// ExtractNDEF locates the NDEF message TLV in Type 5 tag memory and returns
// the raw message bytes.
func ExtractNDEF(memory []byte) ([]byte, error) {
	if len(memory) < ccLength {
		return nil, fmt.Errorf("%w: memory too short for capability container", ErrParse)
	}
	if memory[0] != ccMagicOneByte && memory[0] != ccMagicTwoByte {
		return nil, fmt.Errorf("%w: no capability container (magic %s)", ErrParse, FormatFlag(memory[0]))
	}

	// A zero MLEN byte selects the 8-byte capability container
	offset := ccLength
	if memory[2] == 0 {
		offset = ccExtendedLen
	}

	for offset < len(memory) {
		tlvType := memory[offset]
		switch tlvType {
		case tlvNull:
			offset++
			continue
		case tlvTerminator:
			return nil, fmt.Errorf("%w: no NDEF message TLV", ErrParse)
		}

		length, header, err := tlvLength(memory, offset)
		if err != nil {
			return nil, err
		}
		start := offset + header
		end := start + length
		if end > len(memory) {
			return nil, fmt.Errorf("%w: TLV length %d exceeds memory", ErrParse, length)
		}
		if tlvType == tlvNDEF {
			if length == 0 {
				return nil, fmt.Errorf("%w: empty NDEF message", ErrParse)
			}
			return memory[start:end], nil
		}
		offset = end
	}
	return nil, fmt.Errorf("%w: no NDEF message TLV", ErrParse)
}

// tlvLength returns the value length and header size of the TLV at offset
func tlvLength(memory []byte, offset int) (length, header int, err error) {
	if offset+1 >= len(memory) {
		return 0, 0, fmt.Errorf("%w: truncated TLV", ErrParse)
	}
	if memory[offset+1] != tlvLongLength {
		return int(memory[offset+1]), 2, nil
	}
	if offset+tlvLongLenBytes >= len(memory) {
		return 0, 0, fmt.Errorf("%w: truncated TLV length", ErrParse)
	}
	return int(memory[offset+2])<<8 | int(memory[offset+3]), 1 + tlvLongLenBytes, nil
}

// DecodeNDEFText decodes an NDEF message and returns the payload of its first
// record as text (text records yield their text, URI records the URI).
func DecodeNDEFText(raw []byte) (string, error) {
	msg := &ndef.Message{}
	if _, err := msg.Unmarshal(raw); err != nil {
		return "", fmt.Errorf("%w: %w", ErrParse, err)
	}
	if len(msg.Records) == 0 {
		return "", fmt.Errorf("%w: NDEF message has no records", ErrParse)
	}

	payload, err := msg.Records[0].Payload()
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrParse, err)
	}
	text := StripControlCharacters(payload.String())
	if text == "" {
		return "", fmt.Errorf("%w: empty NDEF record", ErrParse)
	}
	return text, nil
}
