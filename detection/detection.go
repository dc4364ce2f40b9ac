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

// Package detection finds bridge readers attached to the host. Transport
// packages register a Detector on import; DetectAll runs every registered
// detector and merges the results.
package detection

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

// Detection errors
var (
	ErrNoDevicesFound      = errors.New("no readers found")
	ErrDetectionTimeout    = errors.New("detection timed out")
	ErrUnsupportedPlatform = errors.New("detection not supported on this platform")
	ErrUnknownTransport    = errors.New("no detector registered for transport")
)

// Mode controls how intrusive detection is allowed to be
type Mode int

const (
	// Passive only inspects names and descriptors, no I/O to the device
	Passive Mode = iota
	// Safe sends a single firmware probe to likely candidates
	Safe
	// Full probes every candidate the detector can enumerate
	Full
)

// String returns the mode name
func (m Mode) String() string {
	switch m {
	case Passive:
		return "passive"
	case Safe:
		return "safe"
	case Full:
		return "full"
	default:
		return "unknown"
	}
}

// ParseMode converts a mode name to a Mode
func ParseMode(s string) (Mode, error) {
	switch s {
	case "passive":
		return Passive, nil
	case "", "safe":
		return Safe, nil
	case "full":
		return Full, nil
	default:
		return Passive, errors.New("unknown detection mode: " + s)
	}
}

// Confidence is how sure a detector is that a device is a reader
type Confidence int

const (
	Low Confidence = iota
	Medium
	High
)

// String returns the confidence name
func (c Confidence) String() string {
	switch c {
	case Low:
		return "low"
	case Medium:
		return "medium"
	case High:
		return "high"
	default:
		return "unknown"
	}
}

// DeviceInfo describes one detected device
type DeviceInfo struct {
	Metadata   map[string]string
	Transport  string
	Path       string
	Name       string
	Confidence Confidence
}

// Options configures a detection run
type Options struct {
	Blocklist   []string
	IgnorePaths []string
	Timeout     time.Duration
	Mode        Mode
}

// DefaultOptions returns options for a safe detection run
func DefaultOptions() Options {
	return Options{
		Mode:      Safe,
		Timeout:   5 * time.Second,
		Blocklist: DefaultBlocklist(),
	}
}

// Detector finds devices on one transport
type Detector interface {
	Transport() string
	Detect(ctx context.Context, opts *Options) ([]DeviceInfo, error)
}

var (
	registryMu sync.RWMutex
	registry   = make(map[string]Detector)
)

// RegisterDetector makes a detector available to DetectAll. A detector
// registered for an existing transport replaces the previous one.
func RegisterDetector(d Detector) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[d.Transport()] = d
}

// Transports lists the registered transport names in sorted order
func Transports() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func detector(transport string) (Detector, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	d, ok := registry[transport]
	return d, ok
}

// DetectTransport runs the detector registered for transport
func DetectTransport(ctx context.Context, transport string, opts *Options) ([]DeviceInfo, error) {
	d, ok := detector(transport)
	if !ok {
		return nil, errors.Join(ErrUnknownTransport, errors.New(transport))
	}
	opts = withDefaults(opts)
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()
	return d.Detect(ctx, opts)
}

// DetectAll runs every registered detector and returns the devices found,
// highest confidence first. Detectors that fail or find nothing are skipped;
// ErrNoDevicesFound is returned only when no detector found anything.
func DetectAll(ctx context.Context, opts *Options) ([]DeviceInfo, error) {
	opts = withDefaults(opts)
	ctx, cancel := context.WithTimeout(ctx, opts.Timeout)
	defer cancel()

	var devices []DeviceInfo
	for _, name := range Transports() {
		d, ok := detector(name)
		if !ok {
			continue
		}
		found, err := d.Detect(ctx, opts)
		if err != nil {
			if ctx.Err() != nil {
				break
			}
			continue
		}
		devices = append(devices, found...)
	}

	if len(devices) == 0 {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, ErrDetectionTimeout
		}
		return nil, ErrNoDevicesFound
	}

	sort.SliceStable(devices, func(i, j int) bool {
		return devices[i].Confidence > devices[j].Confidence
	})
	return devices, nil
}

func withDefaults(opts *Options) *Options {
	if opts == nil {
		d := DefaultOptions()
		return &d
	}
	if opts.Timeout <= 0 {
		o := *opts
		o.Timeout = DefaultOptions().Timeout
		return &o
	}
	return opts
}
