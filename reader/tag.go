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
	"bytes"
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/internal/wire"
)

// Tag errors
var (
	ErrNotConnected  = errors.New("tag not connected")
	ErrTagNotPresent = errors.New("tag no longer in the field")
	ErrTagReleased   = errors.New("tag released with its session")
)

// Tag is an ISO15693 tag seen by a Reader. It addresses the tag by UID for
// standard commands and uses the selected state for custom commands.
type Tag struct {
	reader    *Reader
	uid       []byte
	connected atomic.Bool
	released  atomic.Bool
}

// NewTag returns a tag handle for uid (LSB first)
func NewTag(reader *Reader, uid []byte) (*Tag, error) {
	if len(uid) != wire.UIDLength {
		return nil, fmt.Errorf("%w: UID of %d bytes", iso15693.ErrInvalidParameter, len(uid))
	}
	return &Tag{reader: reader, uid: append([]byte(nil), uid...)}, nil
}

// UID returns the tag UID, LSB first
func (t *Tag) UID() []byte {
	return append([]byte(nil), t.uid...)
}

// String implements fmt.Stringer
func (t *Tag) String() string {
	return iso15693.HexEncode(t.uid, iso15693.HexFormat{Separator: ":"})
}

// release invalidates the handle once its session is over
func (t *Tag) release() {
	t.released.Store(true)
}

// Connect checks that the tag still answers an inventory
func (t *Tag) Connect(ctx context.Context) error {
	if t.released.Load() {
		return ErrTagReleased
	}
	uids, err := t.reader.Inventory(ctx)
	if err != nil {
		return err
	}
	for _, uid := range uids {
		if bytes.Equal(uid, t.uid) {
			t.connected.Store(true)
			return nil
		}
	}
	return ErrTagNotPresent
}

// GetSystemInfo implements iso15693.Tag
func (t *Tag) GetSystemInfo(ctx context.Context) (*iso15693.SystemInfo, error) {
	req, err := wire.GetSystemInfo(t.uid)
	if err != nil {
		return nil, err
	}
	payload, err := t.send(ctx, req)
	if err != nil {
		return nil, err
	}

	info, err := wire.ParseSystemInfo(payload)
	if err != nil {
		return nil, fmt.Errorf("system info: %w", err)
	}
	return &iso15693.SystemInfo{
		UID:         info.UID,
		TotalBlocks: info.Blocks,
		BlockSize:   info.BlockSize,
		DSFID:       info.DSFID,
		AFI:         info.AFI,
		ICReference: info.ICRef,
		HasAFI:      info.HasAFI,
	}, nil
}

// ReadSingleBlock implements iso15693.Tag
func (t *Tag) ReadSingleBlock(ctx context.Context, block uint8) ([]byte, error) {
	req, err := wire.ReadSingleBlock(t.uid, block)
	if err != nil {
		return nil, err
	}
	return t.send(ctx, req)
}

// WriteAFI implements iso15693.Tag
func (t *Tag) WriteAFI(ctx context.Context, afi byte) error {
	req, err := wire.WriteAFI(t.uid, afi)
	if err != nil {
		return err
	}
	_, err = t.send(ctx, req)
	return err
}

// Select implements iso15693.Tag
func (t *Tag) Select(ctx context.Context) error {
	req, err := wire.Select(t.uid)
	if err != nil {
		return err
	}
	_, err = t.send(ctx, req)
	return err
}

// CustomCommand sends code to the selected tag with the NXP manufacturer
// code. Codes outside the custom range are sent as given and left for the
// tag to reject.
func (t *Tag) CustomCommand(ctx context.Context, code byte, params []byte) ([]byte, error) {
	req, err := wire.Custom(code, wire.ManufacturerNXP, params)
	if errors.Is(err, wire.ErrBadCommand) {
		req = wire.Request{
			Flags:   wire.FlagHighDataRate | wire.FlagSelect,
			Command: code,
			Params:  params,
		}
	} else if err != nil {
		return nil, err
	}
	return t.send(ctx, req)
}

func (t *Tag) send(ctx context.Context, req wire.Request) ([]byte, error) {
	if t.released.Load() {
		return nil, ErrTagReleased
	}
	if !t.connected.Load() {
		return nil, ErrNotConnected
	}

	iso15693.Debugf("reader: tag %s command 0x%02X", t, req.Command)
	resp, err := t.reader.Transceive(ctx, req.Marshal())
	if err != nil {
		return nil, err
	}
	payload, err := wire.ParseResponse(resp)
	if err != nil {
		return nil, fmt.Errorf("command 0x%02X: %w", req.Command, err)
	}
	return payload, nil
}

var _ iso15693.Tag = (*Tag)(nil)
