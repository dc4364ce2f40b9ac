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

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(vars map[string]string) func(string) (string, bool) {
	return func(key string) (string, bool) {
		v, ok := vars[key]
		return v, ok
	}
}

func TestParse_Defaults(t *testing.T) {
	t.Parallel()

	s, err := Parse(nil, env(nil))
	require.NoError(t, err)
	assert.Equal(t, iso15693.ReadModeBarcode, s.Session.ReadMode)
	assert.Equal(t, iso15693.SecurityAFI, s.Session.SecurityMode)
	assert.Equal(t, byte(0x00), s.Session.ClearEASByte)
	assert.Equal(t, DefaultListenAddr, s.ListenAddr)
	assert.Equal(t, "uart", s.Transport)

	_, err = s.RequireDevice()
	require.ErrorIs(t, err, ErrMissingKey)
}

func TestParse_File(t *testing.T) {
	t.Parallel()

	data := []byte(`
read_mode: serial
security_mode: eas
clear_eas_byte: "0xA2"
device: /dev/i2c-1
multi_tag_backoff: 250ms
session_timeout: 30s
hex_separator: ":"
hex_lowercase: true
mdns: true
`)
	s, err := Parse(data, env(nil))
	require.NoError(t, err)
	assert.Equal(t, iso15693.ReadModeSerial, s.Session.ReadMode)
	assert.Equal(t, iso15693.SecurityEAS, s.Session.SecurityMode)
	assert.Equal(t, byte(0xA2), s.Session.ClearEASByte)
	assert.Equal(t, 250*time.Millisecond, s.Session.MultiTagBackoff)
	assert.Equal(t, 30*time.Second, s.Session.SessionTimeout)
	assert.Equal(t, iso15693.HexFormat{Separator: ":", Lowercase: true}, s.Session.HexFormat)
	assert.Equal(t, "i2c", s.Transport)
	assert.True(t, s.MDNS)

	device, err := s.RequireDevice()
	require.NoError(t, err)
	assert.Equal(t, "/dev/i2c-1", device)
}

func TestParse_EnvOverridesFile(t *testing.T) {
	t.Parallel()

	data := []byte("read_mode: SERIAL\ndevice: /dev/ttyUSB0\n")
	s, err := Parse(data, env(map[string]string{
		EnvReadMode:     "ndef",
		EnvDevice:       "/dev/ttyACM0",
		EnvListenAddr:   "127.0.0.1:9000",
		EnvClearEASByte: "162",
		EnvSecurityMode: "",
	}))
	require.NoError(t, err)
	assert.Equal(t, iso15693.ReadModeNDEF, s.Session.ReadMode)
	assert.Equal(t, "/dev/ttyACM0", s.Device)
	assert.Equal(t, "127.0.0.1:9000", s.ListenAddr)
	assert.Equal(t, byte(0xA2), s.Session.ClearEASByte)
	assert.Equal(t, iso15693.SecurityAFI, s.Session.SecurityMode)
}

func TestParse_InvalidValues(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data string
		env  map[string]string
	}{
		{name: "read_mode", data: "read_mode: QR\n"},
		{name: "read_mode_env", env: map[string]string{EnvReadMode: "bogus"}},
		{name: "security_mode", data: "security_mode: rfid\n"},
		{name: "clear_eas_byte", data: "clear_eas_byte: \"0x1FF\"\n"},
		{name: "transport", data: "transport: spi\n"},
		{name: "negative_backoff", data: "multi_tag_backoff: -1s\n"},
		{name: "yaml", data: "read_mode: [\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := Parse([]byte(tt.data), env(tt.env))
			require.ErrorIs(t, err, ErrInvalidValue)
		})
	}
}

func TestLoad(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "tagctl.yaml")
	require.NoError(t, os.WriteFile(path, []byte("read_mode: NDEF\n"), 0o600))

	s, err := Load(path)
	require.NoError(t, err)
	assert.NotNil(t, s.Session)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}

func TestParseByte(t *testing.T) {
	t.Parallel()

	for in, want := range map[string]byte{"0x00": 0x00, "0xa3": 0xA3, "A2": 0xA2, "7": 7, " 255 ": 0xFF} {
		got, err := parseByte(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
	_, err := parseByte("zz")
	require.Error(t, err)
}
