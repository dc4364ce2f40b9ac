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
	"context"
	"errors"
	"time"
)

// Transport carries bridge reader commands to an ISO15693 reader.
// This can be implemented by UART or I2C backends.
type Transport interface {
	// SendCommand sends a command to the reader and waits for its response.
	// The response starts with the command code plus one.
	SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error)

	// Close closes the transport connection
	Close() error

	// SetTimeout sets the read timeout for the transport
	SetTimeout(timeout time.Duration) error

	// IsConnected returns true if the transport is connected
	IsConnected() bool

	// Type returns the transport type
	Type() TransportType
}

// TransportType represents the type of transport
type TransportType string

const (
	// TransportUART represents UART/serial transport.
	TransportUART TransportType = "uart"
	// TransportI2C represents I2C bus transport.
	TransportI2C TransportType = "i2c"
	// TransportMock represents a mock transport for testing
	TransportMock TransportType = "mock"
)

// TransportWithRetry resends bridge commands that failed with a retryable
// transport error. Single-shot commands are sent once and only have their
// errors classified.
type TransportWithRetry struct {
	Transport
	config     *RetryConfig
	singleShot map[byte]bool
}

// NewTransportWithRetry wraps transport. A nil config uses
// DefaultRetryConfig.
func NewTransportWithRetry(transport Transport, config *RetryConfig, singleShot ...byte) *TransportWithRetry {
	if config == nil {
		config = DefaultRetryConfig()
	}
	t := &TransportWithRetry{
		Transport:  transport,
		config:     config,
		singleShot: make(map[byte]bool, len(singleShot)),
	}
	for _, cmd := range singleShot {
		t.singleShot[cmd] = true
	}
	return t
}

// SendCommand implements Transport
func (t *TransportWithRetry) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if t.singleShot[cmd] {
		resp, err := t.Transport.SendCommand(ctx, cmd, args)
		if err != nil {
			return nil, classifySendError(err)
		}
		return resp, nil
	}

	var resp []byte
	attempt := 0
	err := RetryWithConfig(ctx, t.config, func() error {
		attempt++
		var err error
		resp, err = t.Transport.SendCommand(ctx, cmd, args)
		if err != nil {
			Debugf("transport: command 0x%02X attempt %d: %v", cmd, attempt, err)
			return classifySendError(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Unwrap returns the wrapped transport
func (t *TransportWithRetry) Unwrap() Transport {
	return t.Transport
}

func classifySendError(err error) error {
	var transportErr *TransportError
	if errors.As(err, &transportErr) {
		return err
	}
	return &TransportError{
		Op:        "SendCommand",
		Err:       err,
		Type:      GetErrorType(err),
		Retryable: IsRetryable(err),
	}
}
