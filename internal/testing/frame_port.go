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
	"sync"
	"time"

	"github.com/ZaparooProject/go-iso15693/internal/frame"
)

// ErrPortClosed is returned by a closed FramePort
var ErrPortClosed = errors.New("port closed")

// FramePort is an in-memory serial port in front of a VirtualReader. Host
// frames written to it are answered with an ACK followed by the response
// frame, the way the bridge firmware answers over UART.
type FramePort struct {
	reader     *VirtualReader
	notify     chan struct{}
	in         []byte
	out        []byte
	lastFrame  []byte
	timeout    time.Duration
	corrupt    int
	nacks      int
	mu         sync.Mutex
	closed     bool
	silent     bool
	noResponse bool
}

// NewFramePort creates a port answering with reader
func NewFramePort(reader *VirtualReader) *FramePort {
	return &FramePort{
		reader:  reader,
		notify:  make(chan struct{}, 1),
		timeout: 10 * time.Millisecond,
	}
}

// CorruptNext corrupts the data checksum of the next n response frames
func (p *FramePort) CorruptNext(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.corrupt = n
}

// SetSilent makes the port swallow host frames without an ACK
func (p *FramePort) SetSilent(silent bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.silent = silent
}

// SetNoResponse makes the port ACK host frames but never answer them
func (p *FramePort) SetNoResponse(noResponse bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.noResponse = noResponse
}

// Nacks returns how many NACK frames the host sent
func (p *FramePort) Nacks() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.nacks
}

// Write accepts host bytes and queues the reader's answers
func (p *FramePort) Write(b []byte) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return 0, ErrPortClosed
	}
	p.in = append(p.in, b...)

	for len(p.in) > 0 {
		data, n, err := frame.Parse(p.in, frame.HostToReader)
		switch {
		case errors.Is(err, frame.ErrIncomplete):
			return len(b), nil
		case errors.Is(err, frame.ErrNoStartCode):
			p.in = nil
			return len(b), nil
		case errors.Is(err, frame.ErrNack):
			p.nacks++
			p.queueResponse(p.lastFrame)
		case err != nil:
			// ACKs from the host and damaged frames need no answer
		default:
			p.answer(data)
		}
		p.in = p.in[n:]
	}
	return len(b), nil
}

func (p *FramePort) answer(data []byte) {
	if p.silent || len(data) == 0 {
		return
	}
	p.queue(frame.AckFrame)
	if p.noResponse {
		return
	}

	resp, err := p.reader.Handle(data[0], data[1:])
	if err != nil {
		return
	}
	frm, err := frame.Build(frame.ReaderToHost, resp)
	if err != nil {
		return
	}
	p.lastFrame = frm
	p.queueResponse(frm)
}

// queueResponse queues a response frame, damaged if corruption is pending
func (p *FramePort) queueResponse(frm []byte) {
	if p.corrupt > 0 && len(frm) > 2 {
		p.corrupt--
		bad := append([]byte(nil), frm...)
		bad[len(bad)-2]++
		p.queue(bad)
		return
	}
	p.queue(frm)
}

func (p *FramePort) queue(b []byte) {
	if len(b) == 0 {
		return
	}
	p.out = append(p.out, b...)
	select {
	case p.notify <- struct{}{}:
	default:
	}
}

// Read returns queued bytes, or zero bytes once the read timeout passes
func (p *FramePort) Read(b []byte) (int, error) {
	p.mu.Lock()
	timeout := p.timeout
	p.mu.Unlock()

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return 0, ErrPortClosed
		}
		if len(p.out) > 0 {
			n := copy(b, p.out)
			p.out = p.out[n:]
			p.mu.Unlock()
			return n, nil
		}
		p.mu.Unlock()

		select {
		case <-p.notify:
		case <-deadline.C:
			return 0, nil
		}
	}
}

// SetReadTimeout sets how long Read waits for data
func (p *FramePort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.timeout = t
	return nil
}

// ResetInputBuffer drops unread reader bytes
func (p *FramePort) ResetInputBuffer() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.out = nil
	return nil
}

// Close closes the port
func (p *FramePort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}
