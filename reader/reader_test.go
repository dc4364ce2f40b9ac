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

package reader

import (
	"context"
	"testing"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	testutil "github.com/ZaparooProject/go-iso15693/internal/testing"
	"github.com/ZaparooProject/go-iso15693/internal/wire"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestReader(t *testing.T, tags ...*testutil.VirtualTag) (*Reader, *testutil.VirtualReader) {
	t.Helper()

	virtual := testutil.NewVirtualReader(tags...)
	transport := iso15693.NewMockTransport()
	transport.SetResponseFunc(virtual.Handle)

	r, err := New(transport)
	require.NoError(t, err)
	require.NoError(t, r.Init(context.Background()))
	return r, virtual
}

func TestNew_NilTransport(t *testing.T) {
	t.Parallel()

	_, err := New(nil)
	require.ErrorIs(t, err, iso15693.ErrInvalidParameter)
}

func TestReader_Init(t *testing.T) {
	t.Parallel()

	r, virtual := newTestReader(t)

	fw, ok := r.Firmware()
	require.True(t, ok)
	assert.True(t, fw.SupportsISO15693())
	assert.Equal(t, "IC 0x15 v1.3", fw.String())
	assert.True(t, r.RFOn())
	assert.True(t, virtual.RFOn())
}

func TestReader_InitRejectsFirmware(t *testing.T) {
	t.Parallel()

	transport := iso15693.NewMockTransport()
	transport.SetResponse(wire.CmdGetFirmwareVersion, []byte{0x03, 0x15, 0x01, 0x00, 0x00})

	r, err := New(transport)
	require.NoError(t, err)
	require.ErrorIs(t, r.Init(context.Background()), ErrNoISO15693)
	assert.Equal(t, 0, transport.CallCount(wire.CmdRFField))
}

func TestReader_Inventory(t *testing.T) {
	t.Parallel()

	first := testutil.NewVirtualICODESLIX(nil)
	second := testutil.NewVirtualICODESLIX2(nil)
	r, _ := newTestReader(t, first, second)

	uids, err := r.Inventory(context.Background())
	require.NoError(t, err)
	assert.Equal(t, [][]byte{first.UID, second.UID}, uids)

	first.Remove()
	second.Remove()
	uids, err = r.Inventory(context.Background())
	require.NoError(t, err)
	assert.Empty(t, uids)
}

func TestReader_Transceive(t *testing.T) {
	t.Parallel()

	tag := testutil.NewVirtualICODESLIX(nil)
	r, _ := newTestReader(t, tag)

	req, err := wire.GetSystemInfo(tag.UID)
	require.NoError(t, err)
	resp, err := r.Transceive(context.Background(), req.Marshal())
	require.NoError(t, err)
	assert.Equal(t, byte(0x00), resp[0])

	tag.Remove()
	_, err = r.Transceive(context.Background(), req.Marshal())
	require.ErrorIs(t, err, wire.ErrNoTagResponse)

	require.NoError(t, r.SetRFField(context.Background(), false))
	_, err = r.Transceive(context.Background(), req.Marshal())
	require.ErrorIs(t, err, wire.ErrRFOff)
}

func TestReader_CommandErrors(t *testing.T) {
	t.Parallel()

	transport := iso15693.NewMockTransport()
	transport.SetResponse(wire.CmdInventory, []byte{0x55, 0x00})
	transport.SetError(wire.CmdTransceive, iso15693.NewTimeoutError("SendCommand", "mock"))
	r, err := New(transport)
	require.NoError(t, err)

	_, err = r.Inventory(context.Background())
	require.ErrorIs(t, err, iso15693.ErrInvalidResponse, "wrong echo byte")

	_, err = r.Transceive(context.Background(), []byte{0x22, 0x2B})
	require.ErrorIs(t, err, iso15693.ErrTransportTimeout)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = r.FirmwareVersion(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestReader_Close(t *testing.T) {
	t.Parallel()

	r, virtual := newTestReader(t)
	require.NoError(t, r.Close())
	assert.False(t, virtual.RFOn())
	assert.False(t, r.Transport().IsConnected())
}

func TestNewRetryTransport(t *testing.T) {
	t.Parallel()

	transport := iso15693.NewMockTransport()
	transport.SetError(wire.CmdTransceive, iso15693.NewNoACKError("SendCommand", "mock"))
	transport.SetError(wire.CmdInventory, iso15693.NewNoACKError("SendCommand", "mock"))

	config := iso15693.DefaultRetryConfig()
	config.InitialBackoff = time.Microsecond
	config.MaxBackoff = time.Microsecond
	r, err := New(NewRetryTransport(transport, config))
	require.NoError(t, err)

	uid := []byte{0x78, 0x56, 0x34, 0x12, 0x50, 0x01, 0x04, 0xE0}
	req, err := wire.GetSystemInfo(uid)
	require.NoError(t, err)

	_, err = r.Transceive(context.Background(), req.Marshal())
	require.ErrorIs(t, err, iso15693.ErrNoACK)
	assert.Equal(t, 1, transport.CallCount(wire.CmdTransceive), "tag commands are not repeated")

	_, err = r.Inventory(context.Background())
	require.ErrorIs(t, err, iso15693.ErrNoACK)
	assert.Equal(t, config.MaxAttempts, transport.CallCount(wire.CmdInventory))
}
