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

// Package i2c provides the I2C transport for ISO15693 bridge readers
package i2c

import (
	"context"
	"fmt"
	"sync"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/internal/frame"
	"github.com/ZaparooProject/go-iso15693/internal/transport"
	"periph.io/x/conn/v3/i2c"
	"periph.io/x/conn/v3/i2c/i2creg"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/host/v3"
)

const (
	// Address is the 7-bit I2C address of the bridge reader
	Address = 0x24

	// readyByte prefixes every read once the reader has data
	readyByte = 0x01

	// Max clock frequency (400 kHz).
	maxClockFreq = 400 * physic.KiloHertz

	defaultTimeout = 100 * time.Millisecond
	maxNackRetries = 3
)

// bus is the part of i2c.Dev the transport uses
type bus interface {
	Tx(w, r []byte) error
}

// Transport implements iso15693.Transport over an I2C bus
type Transport struct {
	dev     bus
	closer  func() error
	busName string
	timeout time.Duration
	mu      sync.Mutex
}

// New opens busName and addresses the bridge reader on it
func New(busName string) (*Transport, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize periph host: %w", err)
	}

	b, err := i2creg.Open(busName)
	if err != nil {
		return nil, iso15693.NewTransportError("open", busName,
			fmt.Errorf("%w: %w", iso15693.ErrDeviceNotFound, err), iso15693.ErrorTypePermanent)
	}

	// Ignore error, continue with default speed
	_ = b.SetSpeed(maxClockFreq)

	t := newTransport(&i2c.Dev{Addr: Address, Bus: b}, busName)
	t.closer = b.Close
	return t, nil
}

func newTransport(dev bus, busName string) *Transport {
	return &Transport{
		dev:     dev,
		busName: busName,
		timeout: defaultTimeout,
	}
}

// SendCommand sends a bridge command and returns the reader's response
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.dev == nil {
		return nil, iso15693.NewTransportError("SendCommand", t.busName, iso15693.ErrTransportClosed, iso15693.ErrorTypePermanent)
	}

	frm, err := frame.Build(frame.HostToReader, append([]byte{cmd}, args...))
	if err != nil {
		return nil, iso15693.NewDataTooLargeError("SendCommand", t.busName)
	}
	if err := t.dev.Tx(frm, nil); err != nil {
		return nil, iso15693.NewTransportError("sendFrame", t.busName,
			fmt.Errorf("%w: %w", iso15693.ErrTransportWrite, err), iso15693.ErrorTypeTransient)
	}

	if err := t.waitAck(ctx); err != nil {
		return nil, err
	}

	resp, err := transport.WithRetry(ctx, transport.RetryConfig{
		Description: "receiveFrame",
		Port:        t.busName,
		MaxRetries:  maxNackRetries,
		OnRetry: func() error {
			return t.send(frame.NackFrame)
		},
	}, func() ([]byte, bool, error) {
		return t.receiveFrameAttempt(ctx)
	})
	if err != nil {
		return nil, err
	}

	if len(resp) < 1 || resp[0] != cmd+1 {
		return nil, iso15693.NewInvalidResponseError("SendCommand", t.busName)
	}
	return resp, nil
}

func (t *Transport) send(b []byte) error {
	if err := t.dev.Tx(b, nil); err != nil {
		return iso15693.NewTransportError("send", t.busName,
			fmt.Errorf("%w: %w", iso15693.ErrTransportWrite, err), iso15693.ErrorTypeTransient)
	}
	return nil
}

// waitReady polls the status byte until the reader has data
func (t *Transport) waitReady(ctx context.Context) error {
	_, err := transport.TimeoutRetry(ctx, t.timeout, func() (struct{}, bool, error) {
		status := make([]byte, 1)
		if err := t.dev.Tx(nil, status); err != nil {
			return struct{}{}, false, iso15693.NewTransportError("waitReady", t.busName,
				fmt.Errorf("%w: %w", iso15693.ErrTransportRead, err), iso15693.ErrorTypeTransient)
		}
		return struct{}{}, status[0] != readyByte, nil
	})
	return err
}

// waitAck waits for the ACK frame that follows every command frame
func (t *Transport) waitAck(ctx context.Context) error {
	if err := t.waitReady(ctx); err != nil {
		if iso15693.GetErrorType(err) == iso15693.ErrorTypeTimeout {
			return iso15693.NewNoACKError("waitAck", t.busName)
		}
		return err
	}

	buf := make([]byte, 1+len(frame.AckFrame))
	if err := t.dev.Tx(nil, buf); err != nil {
		return iso15693.NewTransportError("waitAck", t.busName,
			fmt.Errorf("%w: %w", iso15693.ErrTransportRead, err), iso15693.ErrorTypeTransient)
	}
	if !frame.IsAck(buf[1:]) {
		return iso15693.NewNoACKError("waitAck", t.busName)
	}
	return nil
}

// receiveFrameAttempt reads one response frame. A damaged frame asks for a
// retry; a good one is acknowledged.
func (t *Transport) receiveFrameAttempt(ctx context.Context) (data []byte, shouldRetry bool, err error) {
	if err := t.waitReady(ctx); err != nil {
		return nil, false, err
	}

	buf := make([]byte, 1+frame.MaxFrameDataLength+frame.Overhead)
	if err := t.dev.Tx(nil, buf); err != nil {
		return nil, false, iso15693.NewTransportError("receiveFrame", t.busName,
			fmt.Errorf("%w: %w", iso15693.ErrTransportRead, err), iso15693.ErrorTypeTransient)
	}

	data, _, err = frame.Parse(buf[1:], frame.ReaderToHost)
	switch {
	case err == nil:
		if err := t.send(frame.AckFrame); err != nil {
			return nil, false, err
		}
		return data, false, nil
	case isCorruption(err):
		return nil, true, nil
	default:
		return nil, false, iso15693.NewTransportError("receiveFrame", t.busName,
			fmt.Errorf("%w: %w", iso15693.ErrFrameCorrupted, err), iso15693.ErrorTypeTransient)
	}
}

func isCorruption(err error) bool {
	switch err {
	case frame.ErrDataChecksum, frame.ErrLengthChecksum, frame.ErrIncomplete:
		return true
	default:
		return false
	}
}

// SetTimeout sets the read timeout for the transport
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout %v", iso15693.ErrInvalidParameter, timeout)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close releases the bus
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.dev = nil
	if t.closer == nil {
		return nil
	}
	closer := t.closer
	t.closer = nil
	if err := closer(); err != nil {
		return fmt.Errorf("close %s: %w", t.busName, err)
	}
	return nil
}

// IsConnected returns true if the transport is connected
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dev != nil
}

// Type returns the transport type
func (*Transport) Type() iso15693.TransportType {
	return iso15693.TransportI2C
}

// Ensure Transport implements iso15693.Transport
var _ iso15693.Transport = (*Transport)(nil)
