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

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var uid = []byte{0x78, 0x56, 0x34, 0x12, 0x50, 0x01, 0x04, 0xE0}

func TestRequestBuilders(t *testing.T) {
	t.Parallel()

	tests := []struct {
		build func() (Request, error)
		name  string
		want  []byte
	}{
		{
			name:  "get_system_info",
			build: func() (Request, error) { return GetSystemInfo(uid) },
			want:  append([]byte{0x22, 0x2B}, uid...),
		},
		{
			name:  "read_single_block",
			build: func() (Request, error) { return ReadSingleBlock(uid, 3) },
			want:  append(append([]byte{0x22, 0x20}, uid...), 0x03),
		},
		{
			name:  "write_afi",
			build: func() (Request, error) { return WriteAFI(uid, 0xC2) },
			want:  append(append([]byte{0x22, 0x27}, uid...), 0xC2),
		},
		{
			name:  "select",
			build: func() (Request, error) { return Select(uid) },
			want:  append([]byte{0x22, 0x25}, uid...),
		},
		{
			name:  "custom_selected",
			build: func() (Request, error) { return Custom(0xA3, ManufacturerNXP, nil) },
			want:  []byte{0x12, 0xA3, 0x04},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			req, err := tt.build()
			require.NoError(t, err)
			raw := req.Marshal()
			assert.Equal(t, tt.want, raw)

			parsed, err := ParseRequest(raw)
			require.NoError(t, err)
			assert.Equal(t, req.Command, parsed.Command)
			assert.Equal(t, req.Flags, parsed.Flags)
		})
	}
}

func TestRequestBuilders_Errors(t *testing.T) {
	t.Parallel()

	_, err := GetSystemInfo([]byte{1, 2, 3})
	require.ErrorIs(t, err, ErrBadUID)

	_, err = Custom(0x20, ManufacturerNXP, nil)
	require.ErrorIs(t, err, ErrBadCommand)

	_, err = ParseRequest([]byte{0x22})
	require.ErrorIs(t, err, ErrShortResponse)

	_, err = ParseRequest([]byte{0x22, 0x2B, 0x01})
	require.ErrorIs(t, err, ErrBadUID)
}

func TestParseResponse(t *testing.T) {
	t.Parallel()

	payload, err := ParseResponse([]byte{0x00, 0x41, 0x42})
	require.NoError(t, err)
	assert.Equal(t, []byte{0x41, 0x42}, payload)

	_, err = ParseResponse(ErrorResponse(0x10))
	var respErr *ResponseError
	require.ErrorAs(t, err, &respErr)
	assert.Equal(t, byte(0x10), respErr.Code)
	assert.Contains(t, err.Error(), "block not available")

	_, err = ParseResponse(nil)
	require.ErrorIs(t, err, ErrShortResponse)
}

func TestSystemInfo_RoundTrip(t *testing.T) {
	t.Parallel()

	info := SystemInfo{
		UID:        uid,
		DSFID:      0x00,
		AFI:        0x07,
		Blocks:     28,
		BlockSize:  4,
		ICRef:      0x01,
		HasDSFID:   true,
		HasAFI:     true,
		HasMemSize: true,
		HasICRef:   true,
	}

	raw := info.Marshal()
	assert.Equal(t, byte(0x0F), raw[0])
	// memory size is encoded minus one
	assert.Equal(t, []byte{0x1B, 0x03}, raw[len(raw)-3:len(raw)-1])

	parsed, err := ParseSystemInfo(raw)
	require.NoError(t, err)
	parsed.InfoFlags = 0
	assert.Equal(t, info, parsed)
}

func TestParseSystemInfo_Partial(t *testing.T) {
	t.Parallel()

	raw := append([]byte{InfoAFI}, uid...)
	raw = append(raw, 0xC2)

	info, err := ParseSystemInfo(raw)
	require.NoError(t, err)
	assert.True(t, info.HasAFI)
	assert.Equal(t, byte(0xC2), info.AFI)
	assert.False(t, info.HasMemSize)
	assert.False(t, info.HasDSFID)

	_, err = ParseSystemInfo(append([]byte{InfoMemSize}, uid...))
	require.ErrorIs(t, err, ErrShortResponse)

	_, err = ParseSystemInfo([]byte{0x00, 0x01})
	require.ErrorIs(t, err, ErrShortResponse)
}

func TestInventory(t *testing.T) {
	t.Parallel()

	other := []byte{1, 2, 3, 4, 5, 6, 7, 0xE0}
	raw := MarshalInventory([][]byte{uid, other})
	assert.Equal(t, byte(2), raw[0])

	uids, err := ParseInventory(raw)
	require.NoError(t, err)
	require.Len(t, uids, 2)
	assert.Equal(t, uid, uids[0])
	assert.Equal(t, other, uids[1])

	uids, err = ParseInventory([]byte{0x00})
	require.NoError(t, err)
	assert.Empty(t, uids)

	_, err = ParseInventory([]byte{0x02, 0x01})
	require.ErrorIs(t, err, ErrShortResponse)
}

func TestStatusError(t *testing.T) {
	t.Parallel()

	require.NoError(t, StatusError(StatusOK))
	require.ErrorIs(t, StatusError(StatusNoResponse), ErrNoTagResponse)
	require.ErrorIs(t, StatusError(StatusRFOff), ErrRFOff)
	require.ErrorIs(t, StatusError(StatusCollision), ErrCollision)
	assert.Contains(t, StatusError(0x7F).Error(), "0x7F")
}
