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
	"testing"

	"github.com/hsanjuan/go-ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func textMessage(t *testing.T, text string) []byte {
	t.Helper()
	raw, err := ndef.NewTextMessage(text, "en").Marshal()
	require.NoError(t, err)
	return raw
}

func TestExtractNDEF(t *testing.T) {
	t.Parallel()

	msg := textMessage(t, "CD34")

	tests := []struct {
		name   string
		memory []byte
	}{
		{
			name:   "four_byte_cc",
			memory: append(append([]byte{0xE1, 0x40, 0x10, 0x00, 0x03, byte(len(msg))}, msg...), 0xFE),
		},
		{
			name: "eight_byte_cc",
			memory: append(append([]byte{0xE2, 0x40, 0x00, 0x01, 0x00, 0x00, 0x02, 0x00, 0x03, byte(len(msg))},
				msg...), 0xFE),
		},
		{
			name:   "null_and_other_tlvs_skipped",
			memory: append(append([]byte{0xE1, 0x40, 0x10, 0x00, 0x00, 0x00, 0xFD, 0x02, 0xAA, 0xBB, 0x03, byte(len(msg))}, msg...), 0xFE),
		},
		{
			name:   "long_length",
			memory: append(append([]byte{0xE1, 0x40, 0x10, 0x00, 0x03, 0xFF, 0x00, byte(len(msg))}, msg...), 0xFE),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := ExtractNDEF(tt.memory)
			require.NoError(t, err)
			assert.Equal(t, msg, got)
		})
	}
}

func TestExtractNDEF_Errors(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		memory []byte
	}{
		{name: "too_short", memory: []byte{0xE1, 0x40}},
		{name: "bad_magic", memory: []byte{'A', 'B', '1', '2', 0x03, 0x01, 0x00}},
		{name: "terminator_only", memory: []byte{0xE1, 0x40, 0x10, 0x00, 0xFE}},
		{name: "length_overflow", memory: []byte{0xE1, 0x40, 0x10, 0x00, 0x03, 0x20, 0xD1}},
		{name: "empty_message", memory: []byte{0xE1, 0x40, 0x10, 0x00, 0x03, 0x00, 0xFE}},
		{name: "truncated_tlv", memory: []byte{0xE1, 0x40, 0x10, 0x00, 0x03}},
		{name: "all_zero", memory: []byte{0xE1, 0x40, 0x10, 0x00, 0x00, 0x00, 0x00}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := ExtractNDEF(tt.memory)
			require.ErrorIs(t, err, ErrParse)
		})
	}
}

func TestDecodeNDEFText(t *testing.T) {
	t.Parallel()

	text, err := DecodeNDEFText(textMessage(t, "3100000123456"))
	require.NoError(t, err)
	assert.Equal(t, "3100000123456", text)

	_, err = DecodeNDEFText(textMessage(t, "\r\n"))
	require.ErrorIs(t, err, ErrParse)
}
