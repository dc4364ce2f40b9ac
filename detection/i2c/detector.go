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

// Package i2c registers a detector for bridge readers on Linux I2C buses
package i2c

import (
	"context"
	"fmt"

	"github.com/ZaparooProject/go-iso15693/detection"
)

// DefaultAddress is the bridge reader's 7-bit I2C address
const DefaultAddress = 0x24

// prober talks to one bus. Only the Linux build has a real implementation.
type prober interface {
	buses() ([]string, error)
	scan(busPath string) []uint8
	probe(ctx context.Context, busPath string, addr uint8) (map[string]string, bool)
}

type detector struct {
	bus prober
}

// New creates an I2C detector for the host platform
func New() detection.Detector {
	return &detector{bus: platformProber()}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "i2c"
}

// Detect reports readers found on the host's I2C buses. Passive and safe
// modes only look at the default address; full mode scans each bus.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	if d.bus == nil {
		return nil, detection.ErrUnsupportedPlatform
	}
	buses, err := d.bus.buses()
	if err != nil {
		return nil, err
	}

	var devices []detection.DeviceInfo
	for _, busPath := range buses {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}

		addrs := []uint8{DefaultAddress}
		if opts.Mode == detection.Full {
			addrs = d.bus.scan(busPath)
		}
		for _, addr := range addrs {
			if device, ok := d.deviceAt(ctx, busPath, addr, opts); ok {
				devices = append(devices, device)
			}
		}
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

func (d *detector) deviceAt(
	ctx context.Context, busPath string, addr uint8, opts *detection.Options,
) (detection.DeviceInfo, bool) {
	path := fmt.Sprintf("%s:0x%02X", busPath, addr)
	if opts.Ignored(path) {
		return detection.DeviceInfo{}, false
	}

	device := detection.DeviceInfo{
		Transport:  "i2c",
		Path:       path,
		Name:       fmt.Sprintf("I2C reader on %s", busPath),
		Confidence: detection.Low,
		Metadata: map[string]string{
			"bus":     busPath,
			"address": fmt.Sprintf("0x%02X", addr),
		},
	}
	if addr == DefaultAddress {
		device.Confidence = detection.Medium
	}
	if opts.Mode == detection.Passive {
		return device, true
	}

	meta, ok := d.bus.probe(ctx, busPath, addr)
	if !ok {
		// an unconfirmed default address is still worth reporting
		return device, device.Confidence == detection.Medium
	}
	device.Confidence = detection.High
	for k, v := range meta {
		device.Metadata[k] = v
	}
	return device, true
}
