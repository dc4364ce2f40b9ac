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

package i2c

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/internal/frame"
	testutil "github.com/ZaparooProject/go-iso15693/internal/testing"
	"github.com/ZaparooProject/go-iso15693/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeBus answers like a bridge reader on I2C: every read starts with the
// ready byte, and each queued message is returned by one read.
type fakeBus struct {
	reader  *testutil.VirtualReader
	pending [][]byte
	last    []byte
	acks    int
	nacks   int
	corrupt int
	mu      sync.Mutex
	silent  bool
}

func newFakeBus(tags ...*testutil.VirtualTag) *fakeBus {
	return &fakeBus{reader: testutil.NewVirtualReader(tags...)}
}

func (b *fakeBus) Tx(w, r []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if len(w) > 0 {
		b.write(w)
	}
	if len(r) == 0 {
		return nil
	}

	for i := range r {
		r[i] = 0
	}
	if len(b.pending) == 0 {
		return nil
	}
	r[0] = readyByte
	if len(r) == 1 {
		return nil
	}
	copy(r[1:], b.pending[0])
	b.pending = b.pending[1:]
	return nil
}

func (b *fakeBus) write(w []byte) {
	switch {
	case frame.IsAck(w):
		b.acks++
		return
	case len(w) >= len(frame.NackFrame) && string(w[:len(frame.NackFrame)]) == string(frame.NackFrame):
		b.nacks++
		b.queueResponse(b.last)
		return
	}

	data, _, err := frame.Parse(w, frame.HostToReader)
	if err != nil || b.silent {
		return
	}
	b.pending = append(b.pending, frame.AckFrame)
	resp, err := b.reader.Handle(data[0], data[1:])
	if err != nil {
		return
	}
	frm, err := frame.Build(frame.ReaderToHost, resp)
	if err != nil {
		return
	}
	b.last = frm
	b.queueResponse(frm)
}

func (b *fakeBus) queueResponse(frm []byte) {
	if b.corrupt > 0 {
		b.corrupt--
		bad := append([]byte(nil), frm...)
		bad[len(bad)-2]++
		b.pending = append(b.pending, bad)
		return
	}
	b.pending = append(b.pending, frm)
}

func TestTransport_Properties(t *testing.T) {
	t.Parallel()

	transport := newTransport(newFakeBus(), "/dev/i2c-1")
	assert.Equal(t, iso15693.TransportI2C, transport.Type())
	assert.True(t, transport.IsConnected())

	require.NoError(t, transport.Close())
	assert.False(t, transport.IsConnected())

	_, err := transport.SendCommand(context.Background(), wire.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, iso15693.ErrTransportClosed)
}

func TestSendCommand(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	transport := newTransport(bus, "/dev/i2c-1")

	resp, err := transport.SendCommand(context.Background(), wire.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)
	assert.Equal(t, 1, bus.acks, "good frames are acknowledged")
}

func TestSendCommand_NackOnCorruption(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	bus.corrupt = 1
	transport := newTransport(bus, "/dev/i2c-1")

	resp, err := transport.SendCommand(context.Background(), wire.CmdGetFirmwareVersion, nil)
	require.NoError(t, err)
	assert.Equal(t, testutil.BuildFirmwareVersionResponse(), resp)
	assert.Equal(t, 1, bus.nacks)
}

func TestSendCommand_NoACK(t *testing.T) {
	t.Parallel()

	bus := newFakeBus()
	bus.silent = true
	transport := newTransport(bus, "/dev/i2c-1")
	require.NoError(t, transport.SetTimeout(20*time.Millisecond))

	_, err := transport.SendCommand(context.Background(), wire.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, iso15693.ErrNoACK)
}

func TestSendCommand_BusError(t *testing.T) {
	t.Parallel()

	transport := newTransport(errBus{}, "/dev/i2c-1")
	_, err := transport.SendCommand(context.Background(), wire.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, iso15693.ErrTransportWrite)
	assert.True(t, iso15693.IsRetryable(err))
}

// TestI2CContextCancellation checks that a canceled context returns before
// the bus is touched
func TestI2CContextCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	transport := newTransport(errBus{}, "/dev/i2c-1")
	_, err := transport.SendCommand(ctx, wire.CmdGetFirmwareVersion, nil)
	require.ErrorIs(t, err, context.Canceled)
}

type errBus struct{}

func (errBus) Tx(_, _ []byte) error {
	return errors.New("bus fault")
}
