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

package frame

import (
	"bytes"
	"errors"
)

// Frame parsing errors
var (
	ErrIncomplete     = errors.New("frame incomplete")
	ErrNoStartCode    = errors.New("frame start code not found")
	ErrLengthChecksum = errors.New("frame length checksum mismatch")
	ErrDataChecksum   = errors.New("frame data checksum mismatch")
	ErrUnexpectedTFI  = errors.New("unexpected frame identifier")
	ErrTooLarge       = errors.New("frame data too large")
	ErrNack           = errors.New("NACK frame received")
	ErrAck            = errors.New("ACK frame received")
)

// Build returns a normal information frame carrying tfi followed by data
func Build(tfi byte, data []byte) ([]byte, error) {
	length := len(data) + 1
	if length > MaxFrameDataLength {
		return nil, ErrTooLarge
	}

	frm := make([]byte, 0, length+Overhead)
	frm = append(frm, Preamble, StartCode1, StartCode2,
		byte(length), CalculateLengthChecksum(byte(length)), tfi)
	frm = append(frm, data...)
	frm = append(frm, CalculateDataChecksum(tfi, data), Postamble)
	return frm, nil
}

// IsAck reports whether buf starts with an ACK frame
func IsAck(buf []byte) bool {
	return bytes.HasPrefix(buf, AckFrame)
}

// Parse looks for one frame in buf. It returns the payload that follows the
// TFI byte and the number of bytes of buf the frame used. ErrIncomplete means
// more bytes are needed; checksum errors mean the frame should be NACKed.
// ACK and NACK frames are reported as ErrAck and ErrNack.
func Parse(buf []byte, tfi byte) (data []byte, n int, err error) {
	start := bytes.Index(buf, []byte{StartCode1, StartCode2})
	if start < 0 {
		if len(buf) > 0 && buf[len(buf)-1] == StartCode1 {
			return nil, 0, ErrIncomplete
		}
		return nil, 0, ErrNoStartCode
	}

	off := start + 2
	if len(buf) < off+2 {
		return nil, 0, ErrIncomplete
	}
	length, lcs := buf[off], buf[off+1]

	switch {
	case length == 0x00 && lcs == 0xFF:
		return nil, skipPostamble(buf, off+2), ErrAck
	case length == 0xFF && lcs == 0x00:
		return nil, skipPostamble(buf, off+2), ErrNack
	case length+lcs != 0:
		return nil, off + 2, ErrLengthChecksum
	}

	// TFI + data + DCS
	body := off + 2
	end := body + int(length) + 1
	if len(buf) < end {
		return nil, 0, ErrIncomplete
	}
	if ValidateChecksum(buf[body:end]) {
		return nil, skipPostamble(buf, end), ErrDataChecksum
	}
	if buf[body] != tfi {
		return nil, skipPostamble(buf, end), ErrUnexpectedTFI
	}

	data = make([]byte, int(length)-1)
	copy(data, buf[body+1:end-1])
	return data, skipPostamble(buf, end), nil
}

func skipPostamble(buf []byte, n int) int {
	if n < len(buf) && buf[n] == Postamble {
		return n + 1
	}
	return n
}
