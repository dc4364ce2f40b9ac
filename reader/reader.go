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

// Package reader drives an ISO15693 bridge reader attached over one of the
// transports in this module and exposes it as an iso15693.Driver.
package reader

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/internal/wire"
)

// ErrNoISO15693 is returned when the bridge firmware lacks ISO15693 support
var ErrNoISO15693 = errors.New("reader firmware does not support ISO15693")

// FirmwareVersion is the answer to GetFirmwareVersion
type FirmwareVersion struct {
	IC       byte
	Version  byte
	Revision byte
	Support  byte
}

// SupportsISO15693 reports whether the firmware can talk to ISO15693 tags
func (f FirmwareVersion) SupportsISO15693() bool {
	return f.Support&0x01 != 0
}

// String implements fmt.Stringer
func (f FirmwareVersion) String() string {
	return fmt.Sprintf("IC 0x%02X v%d.%d", f.IC, f.Version, f.Revision)
}

// Reader issues bridge commands over a transport. Access to the transport
// is serialized; a Reader is safe for concurrent use.
type Reader struct {
	transport iso15693.Transport
	firmware  *FirmwareVersion
	mu        sync.Mutex
	rfOn      bool
}

// New creates a reader on transport
func New(transport iso15693.Transport) (*Reader, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", iso15693.ErrInvalidParameter)
	}
	return &Reader{transport: transport}, nil
}

// NewRetryTransport wraps transport so that transient failures of reader
// commands are retried. Transceive is sent once: a tag command that failed
// is reported, not repeated.
func NewRetryTransport(transport iso15693.Transport, config *iso15693.RetryConfig) *iso15693.TransportWithRetry {
	return iso15693.NewTransportWithRetry(transport, config, wire.CmdTransceive)
}

// Transport returns the underlying transport
func (r *Reader) Transport() iso15693.Transport {
	return r.transport
}

// Close turns the RF field off and closes the transport
func (r *Reader) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	if err := r.SetRFField(ctx, false); err != nil {
		iso15693.Debugf("reader: RF off before close: %v", err)
	}
	if err := r.transport.Close(); err != nil {
		return fmt.Errorf("close transport: %w", err)
	}
	return nil
}

// Init probes the firmware and turns the RF field on
func (r *Reader) Init(ctx context.Context) error {
	fw, err := r.FirmwareVersion(ctx)
	if err != nil {
		return err
	}
	if !fw.SupportsISO15693() {
		return fmt.Errorf("%w: %s", ErrNoISO15693, fw)
	}
	iso15693.Debugf("reader: firmware %s", fw)
	return r.SetRFField(ctx, true)
}

// Firmware returns the firmware version seen by the last probe
func (r *Reader) Firmware() (FirmwareVersion, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.firmware == nil {
		return FirmwareVersion{}, false
	}
	return *r.firmware, true
}

// FirmwareVersion probes the bridge firmware
func (r *Reader) FirmwareVersion(ctx context.Context) (FirmwareVersion, error) {
	payload, err := r.command(ctx, wire.CmdGetFirmwareVersion, nil)
	if err != nil {
		return FirmwareVersion{}, err
	}
	if len(payload) < 4 {
		return FirmwareVersion{}, fmt.Errorf("firmware version: %w", iso15693.ErrInvalidResponse)
	}

	fw := FirmwareVersion{IC: payload[0], Version: payload[1], Revision: payload[2], Support: payload[3]}
	r.mu.Lock()
	r.firmware = &fw
	r.mu.Unlock()
	return fw, nil
}

// SetRFField switches the RF field
func (r *Reader) SetRFField(ctx context.Context, on bool) error {
	arg := byte(0)
	if on {
		arg = 1
	}
	if _, err := r.command(ctx, wire.CmdRFField, []byte{arg}); err != nil {
		return err
	}
	r.mu.Lock()
	r.rfOn = on
	r.mu.Unlock()
	return nil
}

// RFOn reports the last RF field state set through this reader
func (r *Reader) RFOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rfOn
}

// Inventory returns the UIDs of every tag in the field, LSB first
func (r *Reader) Inventory(ctx context.Context) ([][]byte, error) {
	payload, err := r.command(ctx, wire.CmdInventory, nil)
	if err != nil {
		return nil, err
	}
	uids, err := wire.ParseInventory(payload)
	if err != nil {
		return nil, fmt.Errorf("inventory: %w", err)
	}
	return uids, nil
}

// Transceive sends a raw ISO15693 request and returns the tag's raw response
func (r *Reader) Transceive(ctx context.Context, request []byte) ([]byte, error) {
	payload, err := r.command(ctx, wire.CmdTransceive, request)
	if err != nil {
		return nil, err
	}
	if len(payload) < 1 {
		return nil, fmt.Errorf("transceive: %w", iso15693.ErrInvalidResponse)
	}
	if err := wire.StatusError(payload[0]); err != nil {
		return nil, fmt.Errorf("transceive: %w", err)
	}
	return payload[1:], nil
}

// command sends one bridge command and strips the echoed response code
func (r *Reader) command(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	resp, err := r.transport.SendCommand(ctx, cmd, args)
	if err != nil {
		return nil, fmt.Errorf("command 0x%02X: %w", cmd, err)
	}
	if len(resp) < 1 || resp[0] != cmd+1 {
		return nil, fmt.Errorf("command 0x%02X: %w", cmd, iso15693.ErrInvalidResponse)
	}
	return resp[1:], nil
}
