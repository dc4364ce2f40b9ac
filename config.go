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
	"strings"
	"time"
)

// ReadMode selects the read pipeline
type ReadMode string

const (
	// ReadModeBarcode reassembles the barcode stored in tag memory
	ReadModeBarcode ReadMode = "BARCODE"
	// ReadModeSerial uses the tag UID as the identifier
	ReadModeSerial ReadMode = "SERIAL"
	// ReadModeNDEF decodes an NDEF message stored in tag memory
	ReadModeNDEF ReadMode = "NDEF"
)

// ParseReadMode parses a read mode name (case-insensitive)
func ParseReadMode(s string) (ReadMode, error) {
	mode := ReadMode(strings.ToUpper(strings.TrimSpace(s)))
	if !mode.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidReadMode, s)
	}
	return mode, nil
}

// Valid reports whether m names a read pipeline
func (m ReadMode) Valid() bool {
	switch m {
	case ReadModeBarcode, ReadModeSerial, ReadModeNDEF:
		return true
	default:
		return false
	}
}

// Default timing values
const (
	DefaultMultiTagBackoff = 500 * time.Millisecond
	DefaultSessionTimeout  = 60 * time.Second
)

// Config contains the settings that govern scan sessions
type Config struct {
	ReadMode     ReadMode
	AlertMessage string
	HexFormat    HexFormat
	// MultiTagBackoff is the wait before polling resumes after several tags
	// were detected at once
	MultiTagBackoff time.Duration
	// SessionTimeout bounds a whole session; zero disables it
	SessionTimeout time.Duration
	SecurityMode   SecurityMode
	// ClearEASByte is the custom command code sent for CLEAR under EAS
	ClearEASByte byte
}

// DefaultConfig returns the default session configuration
func DefaultConfig() *Config {
	return &Config{
		ReadMode:        ReadModeBarcode,
		SecurityMode:    SecurityAFI,
		ClearEASByte:    FlagClearAFI,
		MultiTagBackoff: DefaultMultiTagBackoff,
		SessionTimeout:  DefaultSessionTimeout,
		HexFormat:       DefaultHexFormat(),
		AlertMessage:    MessageHoldNear,
	}
}

// Validate checks the configuration
func (c *Config) Validate() error {
	if !c.ReadMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReadMode, c.ReadMode)
	}
	if !c.SecurityMode.Valid() {
		return fmt.Errorf("%w: security mode %v", ErrInvalidParameter, c.SecurityMode)
	}
	if c.MultiTagBackoff < 0 {
		return fmt.Errorf("%w: negative multi-tag backoff", ErrInvalidParameter)
	}
	if c.SessionTimeout < 0 {
		return fmt.Errorf("%w: negative session timeout", ErrInvalidParameter)
	}
	return nil
}

// Clone returns a copy of the configuration
func (c *Config) Clone() *Config {
	clone := *c
	return &clone
}

// FlagTable returns the flag table for this configuration
func (c *Config) FlagTable() FlagTable {
	return FlagTable{ClearEAS: c.ClearEASByte}
}

// Option is a functional option for configuring a Controller
type Option func(*Config) error

// WithConfig replaces the whole configuration
func WithConfig(cfg *Config) Option {
	return func(c *Config) error {
		if cfg == nil {
			return ErrInvalidParameter
		}
		*c = *cfg
		return nil
	}
}

// WithReadMode sets the read pipeline
func WithReadMode(mode ReadMode) Option {
	return func(c *Config) error {
		if !mode.Valid() {
			return fmt.Errorf("%w: %q", ErrInvalidReadMode, mode)
		}
		c.ReadMode = mode
		return nil
	}
}

// WithSecurityMode sets the default security mode
func WithSecurityMode(mode SecurityMode) Option {
	return func(c *Config) error {
		if !mode.Valid() {
			return fmt.Errorf("%w: security mode %v", ErrInvalidParameter, mode)
		}
		c.SecurityMode = mode
		return nil
	}
}

// WithClearEASByte sets the command code used for CLEAR under EAS
func WithClearEASByte(b byte) Option {
	return func(c *Config) error {
		c.ClearEASByte = b
		return nil
	}
}

// WithMultiTagBackoff sets the wait before polling resumes after a multi-tag detection
func WithMultiTagBackoff(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return fmt.Errorf("%w: negative multi-tag backoff", ErrInvalidParameter)
		}
		c.MultiTagBackoff = d
		return nil
	}
}

// WithSessionTimeout bounds each session; zero disables the timeout
func WithSessionTimeout(d time.Duration) Option {
	return func(c *Config) error {
		if d < 0 {
			return fmt.Errorf("%w: negative session timeout", ErrInvalidParameter)
		}
		c.SessionTimeout = d
		return nil
	}
}

// WithHexFormat sets how serial numbers are rendered
func WithHexFormat(format HexFormat) Option {
	return func(c *Config) error {
		c.HexFormat = format
		return nil
	}
}

// WithAlertMessage sets the status message shown when polling starts
func WithAlertMessage(msg string) Option {
	return func(c *Config) error {
		c.AlertMessage = msg
		return nil
	}
}
