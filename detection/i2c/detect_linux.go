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

//go:build linux

package i2c

import (
	"context"
	"fmt"
	"path/filepath"
	"sort"
	"time"

	"github.com/ZaparooProject/go-iso15693/internal/frame"
	"github.com/ZaparooProject/go-iso15693/internal/wire"
	"golang.org/x/sys/unix"
)

// Linux i2c-dev ioctls
const (
	ioctlSlave = 0x0703
	ioctlFuncs = 0x0705
	funcI2C    = 0x00000001
)

const (
	readyByte   = 0x01
	probeDelay  = 5 * time.Millisecond
	probeTries  = 20
	probeWindow = 1 + 6
)

type linuxProber struct{}

func platformProber() prober {
	return linuxProber{}
}

// buses lists /dev/i2c-* adapters that support plain I2C transfers
func (linuxProber) buses() ([]string, error) {
	matches, err := filepath.Glob("/dev/i2c-*")
	if err != nil {
		return nil, fmt.Errorf("scan for I2C buses: %w", err)
	}
	sort.Strings(matches)

	buses := make([]string, 0, len(matches))
	for _, path := range matches {
		fd, err := unix.Open(path, unix.O_RDWR, 0)
		if err != nil {
			continue
		}
		funcs, err := unix.IoctlGetUint32(fd, ioctlFuncs)
		_ = unix.Close(fd)
		if err != nil || funcs&funcI2C == 0 {
			continue
		}
		buses = append(buses, path)
	}
	return buses, nil
}

// scan returns addresses in the normal 7-bit range that acknowledge a read
func (linuxProber) scan(busPath string) []uint8 {
	fd, err := unix.Open(busPath, unix.O_RDWR, 0)
	if err != nil {
		return nil
	}
	defer func() { _ = unix.Close(fd) }()

	var found []uint8
	buf := make([]byte, 1)
	for addr := uint8(0x08); addr <= 0x77; addr++ {
		if err := unix.IoctlSetInt(fd, ioctlSlave, int(addr)); err != nil {
			continue
		}
		if _, err := unix.Read(fd, buf); err == nil {
			found = append(found, addr)
		}
	}
	return found
}

// probe sends a GetFirmwareVersion frame and waits for the reader's ACK
func (linuxProber) probe(ctx context.Context, busPath string, addr uint8) (map[string]string, bool) {
	fd, err := unix.Open(busPath, unix.O_RDWR, 0)
	if err != nil {
		return nil, false
	}
	defer func() { _ = unix.Close(fd) }()

	if err := unix.IoctlSetInt(fd, ioctlSlave, int(addr)); err != nil {
		return nil, false
	}

	req, err := frame.Build(frame.HostToReader, []byte{wire.CmdGetFirmwareVersion})
	if err != nil {
		return nil, false
	}
	if n, err := unix.Write(fd, req); err != nil || n != len(req) {
		return nil, false
	}

	buf := make([]byte, probeWindow)
	for range probeTries {
		select {
		case <-ctx.Done():
			return nil, false
		case <-time.After(probeDelay):
		}
		if n, err := unix.Read(fd, buf); err != nil || n != len(buf) {
			continue
		}
		if buf[0] == readyByte && frame.IsAck(buf[1:]) {
			return map[string]string{"probe": "ack"}, true
		}
	}
	return nil, false
}
