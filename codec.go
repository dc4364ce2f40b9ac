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
	"sort"
	"strings"
	"unicode"
)

// HexFormat controls how HexEncode renders bytes. The output is meant for
// status messages and record identifiers, it is never parsed back.
type HexFormat struct {
	Separator string
	Lowercase bool
}

// DefaultHexFormat renders uppercase digits with no separator (e.g. "E004015012345678")
func DefaultHexFormat() HexFormat {
	return HexFormat{}
}

// HexEncode renders data as hex according to format
func HexEncode(data []byte, format HexFormat) string {
	digit := "%02X"
	if format.Lowercase {
		digit = "%02x"
	}

	var sb strings.Builder
	sb.Grow(len(data) * (2 + len(format.Separator)))
	for i, b := range data {
		if i > 0 {
			sb.WriteString(format.Separator)
		}
		_, _ = fmt.Fprintf(&sb, digit, b)
	}
	return sb.String()
}

// FormatFlag renders a flag byte the way it appears in outcome messages ("0xA3")
func FormatFlag(b byte) string {
	return fmt.Sprintf("0x%02X", b)
}

// DecodeASCIIBlock decodes a memory block as ASCII. Bytes outside the 7-bit
// range are dropped; the function never fails.
func DecodeASCIIBlock(data []byte) string {
	var sb strings.Builder
	sb.Grow(len(data))
	for _, b := range data {
		if b < 0x80 {
			sb.WriteByte(b)
		}
	}
	return sb.String()
}

// StripControlCharacters trims leading and trailing control characters (NUL
// padding, CR/LF, etc.) from s.
func StripControlCharacters(s string) string {
	return strings.TrimFunc(s, unicode.IsControl)
}

// SplitOnNull splits s on NUL boundaries. Empty segments, such as the runs of
// NUL padding between fixed-size blocks, are discarded.
func SplitOnNull(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool { return r == 0 })
}

// SelectBarcodeSegment picks the payload segment out of the NUL-separated
// fields of tag memory. A single field is the payload itself; with several
// fields the first is a fixed-format prefix and the second holds the payload.
func SelectBarcodeSegment(segments []string) (string, error) {
	var seg string
	switch len(segments) {
	case 0:
		return "", fmt.Errorf("%w: no data segments", ErrParse)
	case 1:
		seg = segments[0]
	default:
		seg = segments[1]
	}

	seg = StripControlCharacters(seg)
	if seg == "" {
		return "", fmt.Errorf("%w: empty data segment", ErrParse)
	}
	return seg, nil
}

// Block is one memory block tagged with its block number
type Block struct {
	Data   []byte
	Number int
}

// AssembleBlocks concatenates blocks 0..total-1 in block-number order,
// independent of the order they appear in blocks. Missing or duplicate block
// numbers are a parse error.
func AssembleBlocks(blocks []Block, total int) ([]byte, error) {
	if total < 0 {
		return nil, fmt.Errorf("%w: negative block count %d", ErrParse, total)
	}
	if len(blocks) != total {
		return nil, fmt.Errorf("%w: have %d blocks, want %d", ErrParse, len(blocks), total)
	}

	ordered := make([]Block, len(blocks))
	copy(ordered, blocks)
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Number < ordered[j].Number })

	size := 0
	for i, blk := range ordered {
		if blk.Number != i {
			return nil, fmt.Errorf("%w: block %d missing or duplicated", ErrParse, i)
		}
		size += len(blk.Data)
	}

	out := make([]byte, 0, size)
	for _, blk := range ordered {
		out = append(out, blk.Data...)
	}
	return out, nil
}

// reverseBytes returns a reversed copy of data
func reverseBytes(data []byte) []byte {
	out := make([]byte, len(data))
	for i, b := range data {
		out[len(data)-1-i] = b
	}
	return out
}
