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

// Package uart provides the UART transport for ISO15693 bridge readers
package uart

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/internal/frame"
	"github.com/ZaparooProject/go-iso15693/internal/transport"
	"go.bug.st/serial"
)

const (
	// BaudRate is the bridge reader's fixed line speed (8N1)
	BaudRate = 115200

	defaultTimeout  = 100 * time.Millisecond
	readPollTimeout = 10 * time.Millisecond
	maxNackRetries  = 3
)

// serialPort is the part of serial.Port the transport uses
type serialPort interface {
	Read(p []byte) (int, error)
	Write(p []byte) (int, error)
	Close() error
	SetReadTimeout(t time.Duration) error
	ResetInputBuffer() error
}

// Transport implements iso15693.Transport over a serial port
type Transport struct {
	port     serialPort
	portName string
	buf      []byte
	timeout  time.Duration
	mu       sync.Mutex
}

// New opens portName at 115200 8N1
func New(portName string) (*Transport, error) {
	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: BaudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, iso15693.NewTransportError("open", portName,
			fmt.Errorf("%w: %w", iso15693.ErrDeviceNotFound, err), iso15693.ErrorTypePermanent)
	}
	return newTransport(port, portName)
}

func newTransport(port serialPort, portName string) (*Transport, error) {
	if err := port.SetReadTimeout(readPollTimeout); err != nil {
		_ = port.Close()
		return nil, fmt.Errorf("set read timeout on %s: %w", portName, err)
	}
	return &Transport{
		port:     port,
		portName: portName,
		timeout:  defaultTimeout,
	}, nil
}

// SendCommand sends a bridge command and returns the reader's response. The
// response must echo the command code plus one.
func (t *Transport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.port == nil {
		return nil, iso15693.NewTransportError("SendCommand", t.portName, iso15693.ErrTransportClosed, iso15693.ErrorTypePermanent)
	}

	frm, err := frame.Build(frame.HostToReader, append([]byte{cmd}, args...))
	if err != nil {
		return nil, iso15693.NewDataTooLargeError("SendCommand", t.portName)
	}

	if err := t.port.ResetInputBuffer(); err != nil {
		return nil, iso15693.NewTransportError("reset", t.portName, err, iso15693.ErrorTypeTransient)
	}
	t.buf = t.buf[:0]

	if err := t.write(frm); err != nil {
		return nil, err
	}
	if err := t.waitAck(ctx); err != nil {
		return nil, err
	}

	resp, err := transport.WithRetry(ctx, transport.RetryConfig{
		Description: "receiveFrame",
		Port:        t.portName,
		MaxRetries:  maxNackRetries,
		OnRetry: func() error {
			iso15693.Debugf("uart %s: corrupted frame, sending NACK", t.portName)
			return t.write(frame.NackFrame)
		},
	}, func() ([]byte, bool, error) {
		return t.receiveFrame(ctx)
	})
	if err != nil {
		return nil, err
	}

	if len(resp) < 1 || resp[0] != cmd+1 {
		return nil, iso15693.NewInvalidResponseError("SendCommand", t.portName)
	}
	return resp, nil
}

func (t *Transport) write(b []byte) error {
	if _, err := t.port.Write(b); err != nil {
		return iso15693.NewTransportError("write", t.portName,
			fmt.Errorf("%w: %w", iso15693.ErrTransportWrite, err), iso15693.ErrorTypeTransient)
	}
	return nil
}

// fill reads whatever the port has into the frame buffer
func (t *Transport) fill() error {
	chunk := make([]byte, 64)
	n, err := t.port.Read(chunk)
	if err != nil {
		return iso15693.NewTransportError("read", t.portName,
			fmt.Errorf("%w: %w", iso15693.ErrTransportRead, err), iso15693.ErrorTypeTransient)
	}
	t.buf = append(t.buf, chunk[:n]...)
	return nil
}

// waitAck reads until the reader acknowledges the command frame
func (t *Transport) waitAck(ctx context.Context) error {
	deadline := time.Now().Add(t.timeout)
	for time.Now().Before(deadline) {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := t.fill(); err != nil {
			return err
		}

		_, n, err := frame.Parse(t.buf, frame.ReaderToHost)
		switch {
		case errors.Is(err, frame.ErrAck):
			t.buf = t.buf[n:]
			return nil
		case errors.Is(err, frame.ErrIncomplete):
		case errors.Is(err, frame.ErrNoStartCode):
			t.buf = t.buf[:0]
		case err != nil:
			// a stale frame; drop it and keep waiting
			t.buf = t.buf[n:]
		default:
			t.buf = t.buf[n:]
		}
	}
	return iso15693.NewNoACKError("waitAck", t.portName)
}

// receiveFrame reads one response frame. Corrupted frames ask for a retry,
// which sends a NACK so the reader repeats its last frame.
func (t *Transport) receiveFrame(ctx context.Context) (data []byte, shouldRetry bool, err error) {
	deadline := time.Now().Add(t.timeout)
	for {
		data, n, perr := frame.Parse(t.buf, frame.ReaderToHost)
		switch {
		case perr == nil:
			t.buf = t.buf[n:]
			return data, false, nil
		case errors.Is(perr, frame.ErrDataChecksum), errors.Is(perr, frame.ErrLengthChecksum):
			t.buf = t.buf[:0]
			return nil, true, nil
		case errors.Is(perr, frame.ErrAck), errors.Is(perr, frame.ErrUnexpectedTFI):
			t.buf = t.buf[n:]
			continue
		case errors.Is(perr, frame.ErrNack):
			t.buf = t.buf[n:]
			return nil, false, iso15693.NewTransportError("receiveFrame", t.portName,
				frame.ErrNack, iso15693.ErrorTypeTransient)
		case errors.Is(perr, frame.ErrNoStartCode):
			t.buf = t.buf[:0]
		}

		if !time.Now().Before(deadline) {
			return nil, false, iso15693.NewTimeoutError("receiveFrame", t.portName)
		}
		if err := ctx.Err(); err != nil {
			return nil, false, err
		}
		if err := t.fill(); err != nil {
			return nil, false, err
		}
	}
}

// SetTimeout sets how long to wait for the ACK and for the response frame
func (t *Transport) SetTimeout(timeout time.Duration) error {
	if timeout <= 0 {
		return fmt.Errorf("%w: timeout %v", iso15693.ErrInvalidParameter, timeout)
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeout = timeout
	return nil
}

// Close closes the serial port
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.port == nil {
		return nil
	}
	err := t.port.Close()
	t.port = nil
	if err != nil {
		return fmt.Errorf("close %s: %w", t.portName, err)
	}
	return nil
}

// IsConnected returns true while the port is open
func (t *Transport) IsConnected() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.port != nil
}

// Type returns the transport type
func (*Transport) Type() iso15693.TransportType {
	return iso15693.TransportUART
}

// PortName returns the serial port path
func (t *Transport) PortName() string {
	return t.portName
}

// Ensure Transport implements iso15693.Transport
var _ iso15693.Transport = (*Transport)(nil)
