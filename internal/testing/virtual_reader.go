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

package testing

import (
	"errors"
	"fmt"
	"sync"

	"github.com/ZaparooProject/go-iso15693/internal/wire"
)

// ErrUnknownCommand is returned for bridge commands the reader does not know
var ErrUnknownCommand = errors.New("unknown bridge command")

// VirtualReader simulates a bridge reader with any number of tags in its field
type VirtualReader struct {
	failures map[byte]error
	calls    map[byte]int
	tags     []*VirtualTag
	mu       sync.Mutex
	rfOn     bool
}

// NewVirtualReader creates a reader with the given tags in the field
func NewVirtualReader(tags ...*VirtualTag) *VirtualReader {
	return &VirtualReader{
		failures: make(map[byte]error),
		calls:    make(map[byte]int),
		tags:     tags,
	}
}

// AddTag puts another tag in the field
func (r *VirtualReader) AddTag(tag *VirtualTag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = append(r.tags, tag)
}

// SetTags replaces the tags in the field
func (r *VirtualReader) SetTags(tags ...*VirtualTag) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tags = tags
}

// FailCommand makes cmd fail with err until cleared with a nil err
func (r *VirtualReader) FailCommand(cmd byte, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if err == nil {
		delete(r.failures, cmd)
		return
	}
	r.failures[cmd] = err
}

// CallCount returns how many times cmd was handled
func (r *VirtualReader) CallCount(cmd byte) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls[cmd]
}

// RFOn reports whether the RF field is on
func (r *VirtualReader) RFOn() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rfOn
}

// Handle answers one bridge command. Its signature matches the response
// function of the root MockTransport.
func (r *VirtualReader) Handle(cmd byte, args []byte) ([]byte, error) {
	r.mu.Lock()
	r.calls[cmd]++
	if err, ok := r.failures[cmd]; ok {
		r.mu.Unlock()
		return nil, err
	}
	tags := append([]*VirtualTag(nil), r.tags...)
	rfOn := r.rfOn
	r.mu.Unlock()

	switch cmd {
	case wire.CmdGetFirmwareVersion:
		return BuildFirmwareVersionResponse(), nil
	case wire.CmdRFField:
		if len(args) != 1 {
			return nil, fmt.Errorf("RFField takes one argument, got %d", len(args))
		}
		r.mu.Lock()
		r.rfOn = args[0] != 0
		r.mu.Unlock()
		return BuildRFFieldResponse(), nil
	case wire.CmdInventory:
		if !rfOn {
			return BuildNoTagResponse(), nil
		}
		var uids [][]byte
		for _, tag := range tags {
			if tag.IsPresent() {
				uids = append(uids, tag.UID)
			}
		}
		return BuildInventoryResponse(uids...), nil
	case wire.CmdTransceive:
		if !rfOn {
			return BuildTransceiveStatus(wire.StatusRFOff), nil
		}
		return transceive(tags, args), nil
	default:
		return nil, fmt.Errorf("%w: 0x%02X", ErrUnknownCommand, cmd)
	}
}

func transceive(tags []*VirtualTag, request []byte) []byte {
	var responses [][]byte
	for _, tag := range tags {
		if resp := tag.Handle(request); resp != nil {
			responses = append(responses, resp)
		}
	}
	switch len(responses) {
	case 0:
		return BuildTransceiveStatus(wire.StatusNoResponse)
	case 1:
		return BuildTransceiveResponse(responses[0])
	default:
		return BuildTransceiveStatus(wire.StatusCollision)
	}
}
