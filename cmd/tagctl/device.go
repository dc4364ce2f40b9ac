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

package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/detection"
	"github.com/ZaparooProject/go-iso15693/internal/config"
	"github.com/ZaparooProject/go-iso15693/reader"
	"github.com/ZaparooProject/go-iso15693/transport/i2c"
	"github.com/ZaparooProject/go-iso15693/transport/uart"

	// Import all detectors to register them
	_ "github.com/ZaparooProject/go-iso15693/detection/i2c"
	_ "github.com/ZaparooProject/go-iso15693/detection/uart"
)

// transportForPath guesses the transport from a device path
func transportForPath(path string) string {
	if strings.Contains(strings.ToLower(path), "i2c") {
		return "i2c"
	}
	return "uart"
}

// i2cBus strips the ":0xNN" address suffix detection adds to I2C paths
func i2cBus(path string) string {
	bus, _, _ := strings.Cut(path, ":")
	return bus
}

// newTransport opens the transport for a device path
func newTransport(kind, path string) (iso15693.Transport, error) {
	if path == "" {
		return nil, errors.New("empty device path")
	}

	switch kind {
	case "i2c":
		t, err := i2c.New(i2cBus(path))
		if err != nil {
			return nil, fmt.Errorf("failed to create I2C transport: %w", err)
		}
		return t, nil
	case "uart", "":
		t, err := uart.New(path)
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport: %w", err)
		}
		return t, nil
	default:
		return nil, fmt.Errorf("unsupported transport type: %s", kind)
	}
}

// resolveDevice returns the configured device or the best detected one
func resolveDevice(ctx context.Context, s *config.Settings) (kind, path string, err error) {
	if s.Device != "" {
		return s.Transport, s.Device, nil
	}

	slog.Info("auto-detecting readers")
	opts := detection.DefaultOptions()
	devices, err := detection.DetectAll(ctx, &opts)
	if err != nil {
		if errors.Is(err, detection.ErrNoDevicesFound) {
			_, missing := s.RequireDevice()
			return "", "", errors.Join(err, missing)
		}
		return "", "", err
	}
	best := devices[0]
	slog.Info("using detected reader", "path", best.Path, "transport", best.Transport,
		"confidence", best.Confidence.String())
	return best.Transport, best.Path, nil
}

// openReader connects to and initializes the reader
func openReader(ctx context.Context, s *config.Settings) (*reader.Reader, error) {
	kind, path, err := resolveDevice(ctx, s)
	if err != nil {
		return nil, err
	}

	t, err := newTransport(kind, path)
	if err != nil {
		return nil, err
	}
	r, err := reader.New(reader.NewRetryTransport(t, nil))
	if err != nil {
		_ = t.Close()
		return nil, err
	}
	if err := r.Init(ctx); err != nil {
		_ = r.Close()
		return nil, fmt.Errorf("failed to initialize reader on %s: %w", path, err)
	}

	if fw, ok := r.Firmware(); ok {
		slog.Info("reader ready", "path", path, "firmware", fw.String())
	}
	return r, nil
}

// newController builds a controller over an initialized reader
func newController(r *reader.Reader, s *config.Settings) (*iso15693.Controller, error) {
	driverConfig := reader.DefaultDriverConfig()
	driverConfig.SessionTimeout = s.Session.SessionTimeout
	driverConfig.StatusFunc = func(text string) {
		slog.Info("status", "message", text)
	}

	driver, err := reader.NewDriver(r, &driverConfig)
	if err != nil {
		return nil, err
	}
	return iso15693.NewController(driver, iso15693.WithConfig(s.Session))
}
