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

// Package config loads tagctl settings from a YAML file and the environment
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"gopkg.in/yaml.v3"
)

// Environment variables that override the file
const (
	EnvReadMode     = "NFC_READ_MODE"
	EnvSecurityMode = "NFC_SECURITY_MODE"
	EnvClearEASByte = "NFC_CLEAR_EAS_BYTE"
	EnvDevice       = "NFC_DEVICE"
	EnvListenAddr   = "NFC_LISTEN_ADDR"
)

// DefaultListenAddr is where the event server listens when nothing is configured
const DefaultListenAddr = ":8080"

// Configuration errors
var (
	ErrMissingKey   = errors.New("missing configuration key")
	ErrInvalidValue = errors.New("invalid configuration value")
)

// File is the on-disk layout of the YAML config file
type File struct {
	ReadMode        string        `yaml:"read_mode"`
	SecurityMode    string        `yaml:"security_mode"`
	ClearEASByte    string        `yaml:"clear_eas_byte"`
	Device          string        `yaml:"device"`
	Transport       string        `yaml:"transport"`
	ListenAddr      string        `yaml:"listen_addr"`
	AlertMessage    string        `yaml:"alert_message"`
	HexSeparator    string        `yaml:"hex_separator"`
	MultiTagBackoff time.Duration `yaml:"multi_tag_backoff"`
	SessionTimeout  time.Duration `yaml:"session_timeout"`
	HexLowercase    bool          `yaml:"hex_lowercase"`
	MDNS            bool          `yaml:"mdns"`
}

// Settings is the resolved configuration
type Settings struct {
	Session    *iso15693.Config
	Device     string
	Transport  string
	ListenAddr string
	MDNS       bool
}

// RequireDevice returns the configured device path or ErrMissingKey
func (s *Settings) RequireDevice() (string, error) {
	if s.Device == "" {
		return "", fmt.Errorf("%w: device (or %s)", ErrMissingKey, EnvDevice)
	}
	return s.Device, nil
}

// Load reads path (optional, "" skips the file) and applies environment
// overrides from the process environment.
func Load(path string) (*Settings, error) {
	var data []byte
	if path != "" {
		var err error
		data, err = os.ReadFile(path) // #nosec G304 -- path comes from the operator
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}
	return Parse(data, os.LookupEnv)
}

// Parse decodes YAML data and applies overrides from lookup
func Parse(data []byte, lookup func(string) (string, bool)) (*Settings, error) {
	var file File
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
		}
	}
	file.applyEnv(lookup)
	return file.resolve()
}

func (f *File) applyEnv(lookup func(string) (string, bool)) {
	if lookup == nil {
		return
	}
	overrides := map[string]*string{
		EnvReadMode:     &f.ReadMode,
		EnvSecurityMode: &f.SecurityMode,
		EnvClearEASByte: &f.ClearEASByte,
		EnvDevice:       &f.Device,
		EnvListenAddr:   &f.ListenAddr,
	}
	for key, dst := range overrides {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
}

func (f *File) resolve() (*Settings, error) {
	cfg := iso15693.DefaultConfig()

	if f.ReadMode != "" {
		mode, err := iso15693.ParseReadMode(f.ReadMode)
		if err != nil {
			return nil, invalid("read_mode", f.ReadMode)
		}
		cfg.ReadMode = mode
	}
	if f.SecurityMode != "" {
		mode, err := iso15693.ParseSecurityMode(f.SecurityMode)
		if err != nil {
			return nil, invalid("security_mode", f.SecurityMode)
		}
		cfg.SecurityMode = mode
	}
	if f.ClearEASByte != "" {
		b, err := parseByte(f.ClearEASByte)
		if err != nil {
			return nil, invalid("clear_eas_byte", f.ClearEASByte)
		}
		cfg.ClearEASByte = b
	}
	if f.MultiTagBackoff != 0 {
		cfg.MultiTagBackoff = f.MultiTagBackoff
	}
	if f.SessionTimeout != 0 {
		cfg.SessionTimeout = f.SessionTimeout
	}
	if f.AlertMessage != "" {
		cfg.AlertMessage = f.AlertMessage
	}
	cfg.HexFormat = iso15693.HexFormat{Separator: f.HexSeparator, Lowercase: f.HexLowercase}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidValue, err)
	}

	transport := strings.ToLower(f.Transport)
	switch transport {
	case "":
		transport = inferTransport(f.Device)
	case "uart", "i2c":
	default:
		return nil, invalid("transport", f.Transport)
	}

	listen := f.ListenAddr
	if listen == "" {
		listen = DefaultListenAddr
	}

	return &Settings{
		Session:    cfg,
		Device:     f.Device,
		Transport:  transport,
		ListenAddr: listen,
		MDNS:       f.MDNS,
	}, nil
}

// inferTransport guesses the transport from a device path
func inferTransport(device string) string {
	if strings.HasPrefix(device, "/dev/i2c-") {
		return "i2c"
	}
	return "uart"
}

// parseByte accepts "0xA2", "A2" or a decimal value
func parseByte(s string) (byte, error) {
	s = strings.TrimSpace(s)
	base := 10
	switch {
	case strings.HasPrefix(strings.ToLower(s), "0x"):
		s, base = s[2:], 16
	case strings.ContainsAny(strings.ToUpper(s), "ABCDEF"):
		base = 16
	}
	v, err := strconv.ParseUint(s, base, 8)
	if err != nil {
		return 0, err
	}
	return byte(v), nil
}

func invalid(key, value string) error {
	return fmt.Errorf("%w: %s=%q", ErrInvalidValue, key, value)
}
