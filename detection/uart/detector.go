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

// Package uart registers a detector for bridge readers on USB serial
// adapters.
package uart

import (
	"context"
	"fmt"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/detection"
	"github.com/ZaparooProject/go-iso15693/internal/wire"
	transport "github.com/ZaparooProject/go-iso15693/transport/uart"
	"go.bug.st/serial/enumerator"
)

const probeTimeout = time.Second

// knownAdapters are USB serial bridges that reader boards ship with
var knownAdapters = map[detection.USBID]string{
	{VID: 0x1A86, PID: 0x7523}: "CH340",
	{VID: 0x1A86, PID: 0x55D4}: "CH9102",
	{VID: 0x10C4, PID: 0xEA60}: "CP210x",
	{VID: 0x0403, PID: 0x6001}: "FT232R",
	{VID: 0x0403, PID: 0x6015}: "FT231X",
}

type probeFunc func(ctx context.Context, path string) (map[string]string, bool)

type detector struct {
	list  func() ([]*enumerator.PortDetails, error)
	probe probeFunc
}

// New creates a UART detector backed by the OS port enumerator
func New() detection.Detector {
	return &detector{list: enumerator.GetDetailedPortsList, probe: probePort}
}

func init() {
	detection.RegisterDetector(New())
}

// Transport returns the transport type
func (*detector) Transport() string {
	return "uart"
}

// Detect lists serial ports and rates each one. Only USB ports are
// considered; blocked and ignored ports are skipped. Outside passive mode
// the port is probed with a firmware request and confirmed readers are
// reported with high confidence.
func (d *detector) Detect(ctx context.Context, opts *detection.Options) ([]detection.DeviceInfo, error) {
	ports, err := d.list()
	if err != nil {
		return nil, fmt.Errorf("list serial ports: %w", err)
	}

	var devices []detection.DeviceInfo
	for _, port := range ports {
		if ctx.Err() != nil {
			return devices, detection.ErrDetectionTimeout
		}
		if !port.IsUSB || opts.Ignored(port.Name) {
			continue
		}

		id, err := detection.ParseUSBID(port.VID + ":" + port.PID)
		if err != nil {
			iso15693.Debugf("uart detection: %s: %v", port.Name, err)
			continue
		}
		if opts.Blocked(id) {
			continue
		}

		device := detection.DeviceInfo{
			Transport:  "uart",
			Path:       port.Name,
			Name:       portName(port),
			Confidence: detection.Low,
			Metadata: map[string]string{
				"vid_pid": id.String(),
				"serial":  port.SerialNumber,
			},
		}
		chip, known := knownAdapters[id]
		if known {
			device.Confidence = detection.Medium
			device.Metadata["adapter"] = chip
		}

		if shouldProbe(opts.Mode, known) {
			probeCtx, cancel := context.WithTimeout(ctx, probeTimeout)
			meta, ok := d.probe(probeCtx, port.Name)
			cancel()
			if ok {
				device.Confidence = detection.High
				for k, v := range meta {
					device.Metadata[k] = v
				}
			} else if opts.Mode == detection.Full {
				continue
			}
		}
		devices = append(devices, device)
	}

	if len(devices) == 0 {
		return nil, detection.ErrNoDevicesFound
	}
	return devices, nil
}

// shouldProbe reports whether a port gets a firmware request. Safe mode only
// talks to adapters reader boards are known to use.
func shouldProbe(mode detection.Mode, known bool) bool {
	switch mode {
	case detection.Full:
		return true
	case detection.Safe:
		return known
	default:
		return false
	}
}

func portName(port *enumerator.PortDetails) string {
	if port.Product != "" {
		return port.Product + " (" + port.Name + ")"
	}
	return "USB serial port " + port.Name
}

func probePort(ctx context.Context, path string) (map[string]string, bool) {
	t, err := transport.New(path)
	if err != nil {
		return nil, false
	}
	defer func() { _ = t.Close() }()

	resp, err := t.SendCommand(ctx, wire.CmdGetFirmwareVersion, nil)
	if err != nil {
		return nil, false
	}
	return firmwareMetadata(resp)
}

// firmwareMetadata checks a GetFirmwareVersion response (with its echo byte)
// for ISO15693 support.
func firmwareMetadata(resp []byte) (map[string]string, bool) {
	if len(resp) < 5 || resp[0] != wire.CmdGetFirmwareVersion+1 || resp[4]&0x01 == 0 {
		return nil, false
	}
	return map[string]string{
		"ic":       fmt.Sprintf("0x%02X", resp[1]),
		"firmware": fmt.Sprintf("%d.%d", resp[2], resp[3]),
	}, true
}
