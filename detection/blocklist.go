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

package detection

import (
	"errors"
	"fmt"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
)

// ErrBadUSBID is returned for a string that holds no VID:PID pair
var ErrBadUSBID = errors.New("not a USB VID:PID")

// USBID identifies a USB device by vendor and product
type USBID struct {
	VID uint16
	PID uint16
}

// String renders the id as uppercase VID:PID
func (id USBID) String() string {
	return fmt.Sprintf("%04X:%04X", id.VID, id.PID)
}

var (
	plainUSBID = regexp.MustCompile(`^([0-9A-F]{1,4}):([0-9A-F]{1,4})$`)
	vidField   = regexp.MustCompile(`(?:VID[:=_]|VENDOR=)\s*([0-9A-F]{1,4})`)
	pidField   = regexp.MustCompile(`(?:PID[:=_]|PRODUCT=)\s*([0-9A-F]{1,4})`)
)

// ParseUSBID reads a VID:PID pair from "1A86:7523", "VID:1A86 PID:7523",
// "vendor=1a86 product=7523" or a Windows hardware id such as
// "USB\VID_1A86&PID_7523".
func ParseUSBID(s string) (USBID, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))

	var vid, pid string
	if m := plainUSBID.FindStringSubmatch(upper); m != nil {
		vid, pid = m[1], m[2]
	} else {
		v, p := vidField.FindStringSubmatch(upper), pidField.FindStringSubmatch(upper)
		if v == nil || p == nil {
			return USBID{}, fmt.Errorf("%w: %q", ErrBadUSBID, s)
		}
		vid, pid = v[1], p[1]
	}

	// both fields matched at most four hex digits
	v, _ := strconv.ParseUint(vid, 16, 16)
	p, _ := strconv.ParseUint(pid, 16, 16)
	return USBID{VID: uint16(v), PID: uint16(p)}, nil
}

// DefaultBlocklist lists USB serial devices that are never bridge readers
// and that misbehave when a reader frame is written to them.
func DefaultBlocklist() []string {
	return []string{
		"2341:0043", // Arduino Uno, resets into its bootloader on open
		"2341:0042", // Arduino Mega 2560, same
		"2341:8036", // Arduino Leonardo
		"1546:01A7", // u-blox 7 GNSS receiver, streams NMEA
		"1546:01A8", // u-blox 8 GNSS receiver
		"2C99:0002", // Prusa 3D printer, executes stray input as G-code
		"1BC7:1201", // Telit modem
	}
}

// Blocked reports whether id is on the blocklist. Entries that hold no
// VID:PID are skipped.
func (o *Options) Blocked(id USBID) bool {
	for _, entry := range o.Blocklist {
		blocked, err := ParseUSBID(entry)
		if err == nil && blocked == id {
			return true
		}
	}
	return false
}

// Ignored reports whether path is on the ignore list. Paths are compared
// after cleaning and resolving symlinks, so a /dev/serial/by-id entry
// ignores the tty it points to. An I2C device path (bus:0xNN) is also
// ignored when its bus is listed.
func (o *Options) Ignored(path string) bool {
	if path == "" || len(o.IgnorePaths) == 0 {
		return false
	}

	device := canonicalPath(path)
	bus := ""
	if idx := strings.LastIndex(path, ":0x"); idx > 0 {
		bus = canonicalPath(path[:idx])
	}

	for _, entry := range o.IgnorePaths {
		if entry == "" {
			continue
		}
		ignored := canonicalPath(entry)
		if strings.EqualFold(ignored, device) || (bus != "" && strings.EqualFold(ignored, bus)) {
			return true
		}
	}
	return false
}

func canonicalPath(path string) string {
	cleaned := filepath.Clean(path)
	if resolved, err := filepath.EvalSymlinks(cleaned); err == nil {
		return resolved
	}
	return cleaned
}
