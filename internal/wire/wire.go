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

// Package wire encodes ISO15693 requests and decodes tag responses, and
// defines the command set of the bridge reader that carries them.
package wire

import (
	"errors"
	"fmt"
)

// Bridge reader commands. Responses echo the command code plus one.
const (
	CmdGetFirmwareVersion = 0x02
	CmdRFField            = 0x10
	CmdInventory          = 0x20
	CmdTransceive         = 0x21
)

// Bridge Transceive status codes. The status is the first byte of a
// Transceive response after the command echo.
const (
	StatusOK         = 0x00
	StatusNoResponse = 0x01
	StatusRFOff      = 0x02
	StatusCollision  = 0x03
)

// ISO15693 request flags
const (
	FlagSubCarrier   = 0x01
	FlagHighDataRate = 0x02
	FlagInventory    = 0x04
	FlagProtocolExt  = 0x08
	FlagSelect       = 0x10
	FlagAddress      = 0x20
	FlagOption       = 0x40
)

// ISO15693 command codes
const (
	CmdISOInventory     = 0x01
	CmdStayQuiet        = 0x02
	CmdReadSingleBlock  = 0x20
	CmdWriteSingleBlock = 0x21
	CmdSelect           = 0x25
	CmdResetToReady     = 0x26
	CmdWriteAFI         = 0x27
	CmdGetSystemInfo    = 0x2B
	CustomCommandMin    = 0xA0
	CustomCommandMax    = 0xDF
)

// Get System Information info flags
const (
	InfoDSFID   = 0x01
	InfoAFI     = 0x02
	InfoMemSize = 0x04
	InfoICRef   = 0x08
)

// ResponseFlagError is set in the first response byte when the tag reports an error
const ResponseFlagError = 0x01

// ManufacturerNXP is the IC manufacturer code of NXP ICODE tags
const ManufacturerNXP = 0x04

// UIDLength is the length of an ISO15693 UID
const UIDLength = 8

// Decoding errors
var (
	ErrShortResponse = errors.New("response too short")
	ErrBadUID        = errors.New("UID must be 8 bytes")
	ErrBadCommand    = errors.New("not a custom command code")
	ErrNoTagResponse = errors.New("no response from tag")
	ErrRFOff         = errors.New("RF field is off")
	ErrCollision     = errors.New("more than one tag responded")
)

// StatusError maps a bridge Transceive status to an error
func StatusError(status byte) error {
	switch status {
	case StatusOK:
		return nil
	case StatusNoResponse:
		return ErrNoTagResponse
	case StatusRFOff:
		return ErrRFOff
	case StatusCollision:
		return ErrCollision
	default:
		return fmt.Errorf("unknown transceive status 0x%02X", status)
	}
}

// Request is one ISO15693 request frame (without SOF/CRC/EOF)
type Request struct {
	UID          []byte
	Params       []byte
	Flags        byte
	Command      byte
	Manufacturer byte
}

// IsCustom reports whether the request uses a custom command code
func (r Request) IsCustom() bool {
	return r.Command >= CustomCommandMin && r.Command <= CustomCommandMax
}

// Marshal encodes the request. Custom commands carry the IC manufacturer code
// before the UID; the UID is present only in addressed mode.
func (r Request) Marshal() []byte {
	out := make([]byte, 0, 3+len(r.UID)+len(r.Params))
	out = append(out, r.Flags, r.Command)
	if r.IsCustom() {
		out = append(out, r.Manufacturer)
	}
	if r.Flags&FlagAddress != 0 {
		out = append(out, r.UID...)
	}
	return append(out, r.Params...)
}

// ParseRequest decodes a request frame
func ParseRequest(raw []byte) (Request, error) {
	if len(raw) < 2 {
		return Request{}, ErrShortResponse
	}
	req := Request{Flags: raw[0], Command: raw[1]}
	rest := raw[2:]

	if req.IsCustom() {
		if len(rest) < 1 {
			return Request{}, ErrShortResponse
		}
		req.Manufacturer = rest[0]
		rest = rest[1:]
	}
	if req.Flags&FlagAddress != 0 {
		if len(rest) < UIDLength {
			return Request{}, ErrBadUID
		}
		req.UID = append([]byte(nil), rest[:UIDLength]...)
		rest = rest[UIDLength:]
	}
	req.Params = append([]byte(nil), rest...)
	return req, nil
}

func addressed(uid []byte) (byte, error) {
	if len(uid) != UIDLength {
		return 0, ErrBadUID
	}
	return FlagHighDataRate | FlagAddress, nil
}

// GetSystemInfo builds an addressed Get System Information request
func GetSystemInfo(uid []byte) (Request, error) {
	flags, err := addressed(uid)
	if err != nil {
		return Request{}, err
	}
	return Request{Flags: flags, Command: CmdGetSystemInfo, UID: uid}, nil
}

// ReadSingleBlock builds an addressed Read Single Block request
func ReadSingleBlock(uid []byte, block uint8) (Request, error) {
	flags, err := addressed(uid)
	if err != nil {
		return Request{}, err
	}
	return Request{Flags: flags, Command: CmdReadSingleBlock, UID: uid, Params: []byte{block}}, nil
}

// WriteAFI builds an addressed Write AFI request
func WriteAFI(uid []byte, afi byte) (Request, error) {
	flags, err := addressed(uid)
	if err != nil {
		return Request{}, err
	}
	return Request{Flags: flags, Command: CmdWriteAFI, UID: uid, Params: []byte{afi}}, nil
}

// Select builds an addressed Select request
func Select(uid []byte) (Request, error) {
	flags, err := addressed(uid)
	if err != nil {
		return Request{}, err
	}
	return Request{Flags: flags, Command: CmdSelect, UID: uid}, nil
}

// Custom builds a custom command request for the selected tag
func Custom(code, manufacturer byte, params []byte) (Request, error) {
	req := Request{
		Flags:        FlagHighDataRate | FlagSelect,
		Command:      code,
		Manufacturer: manufacturer,
		Params:       params,
	}
	if !req.IsCustom() {
		return Request{}, fmt.Errorf("%w: 0x%02X", ErrBadCommand, code)
	}
	return req, nil
}

// ResponseError is an error reported by the tag in its response
type ResponseError struct {
	Code byte
}

// Error implements the error interface
func (e *ResponseError) Error() string {
	return fmt.Sprintf("tag error 0x%02X: %s", e.Code, ErrorMessage(e.Code))
}

// ErrorMessage describes an ISO15693 error code
func ErrorMessage(code byte) string {
	switch code {
	case 0x01:
		return "command not supported"
	case 0x02:
		return "command not recognized"
	case 0x03:
		return "option not supported"
	case 0x0F:
		return "unknown error"
	case 0x10:
		return "block not available"
	case 0x11:
		return "block already locked"
	case 0x12:
		return "block locked"
	case 0x13:
		return "block not programmed"
	case 0x14:
		return "block lock failed"
	default:
		if code >= 0xA0 && code <= 0xDF {
			return "custom command error"
		}
		return "reserved error code"
	}
}

// ParseResponse checks the response flags and returns the payload after them
func ParseResponse(resp []byte) ([]byte, error) {
	if len(resp) == 0 {
		return nil, ErrShortResponse
	}
	if resp[0]&ResponseFlagError != 0 {
		if len(resp) < 2 {
			return nil, &ResponseError{Code: 0x0F}
		}
		return nil, &ResponseError{Code: resp[1]}
	}
	return resp[1:], nil
}

// ErrorResponse encodes an error response carrying code
func ErrorResponse(code byte) []byte {
	return []byte{ResponseFlagError, code}
}

// OKResponse encodes a success response carrying payload
func OKResponse(payload []byte) []byte {
	return append([]byte{0x00}, payload...)
}
