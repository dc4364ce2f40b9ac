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
	"fmt"
	"sync"
	"time"
)

// MockTag is an in-memory Tag for tests. Memory is split into blocks of
// Info.BlockSize bytes; WriteAFI updates Info.AFI. Every command is recorded
// and the number of concurrently running commands is tracked.
type MockTag struct {
	Info *SystemInfo
	// BeforeCommand, if set, runs before each command and may block or fail it
	BeforeCommand func(ctx context.Context, op string) error
	ConnectErr    error
	SystemInfoErr error
	WriteErr      error
	SelectErr     error
	CustomErr     error
	ReadErrs      map[uint8]error
	blocks        [][]byte
	calls         []string
	inFlight      int
	maxInFlight   int
	mu            sync.Mutex
}

// NewMockTag creates a tag with the given UID (LSB first) whose memory is
// data padded with zeros to whole blocks of blockSize bytes.
func NewMockTag(uid, data []byte, blockSize int) *MockTag {
	if blockSize <= 0 {
		blockSize = 4
	}
	total := (len(data) + blockSize - 1) / blockSize
	memory := make([]byte, total*blockSize)
	copy(memory, data)

	blocks := make([][]byte, total)
	for i := range blocks {
		blocks[i] = memory[i*blockSize : (i+1)*blockSize]
	}

	return &MockTag{
		Info: &SystemInfo{
			UID:         append([]byte(nil), uid...),
			TotalBlocks: total,
			BlockSize:   blockSize,
		},
		blocks: blocks,
	}
}

// SetAFI sets the AFI reported by GetSystemInfo
func (m *MockTag) SetAFI(afi byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Info.AFI = afi
	m.Info.HasAFI = true
}

// AFI returns the current AFI and whether one is set
func (m *MockTag) AFI() (byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.Info.AFI, m.Info.HasAFI
}

// Calls returns the commands issued so far, in order
func (m *MockTag) Calls() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.calls...)
}

// MaxInFlight returns the largest number of commands that ran at once
func (m *MockTag) MaxInFlight() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.maxInFlight
}

func (m *MockTag) begin(ctx context.Context, call, op string) error {
	m.mu.Lock()
	m.calls = append(m.calls, call)
	m.inFlight++
	if m.inFlight > m.maxInFlight {
		m.maxInFlight = m.inFlight
	}
	hook := m.BeforeCommand
	m.mu.Unlock()

	if hook != nil {
		return hook(ctx, op)
	}
	return nil
}

func (m *MockTag) end() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.inFlight--
}

// Connect implements Tag
func (m *MockTag) Connect(ctx context.Context) error {
	defer m.end()
	if err := m.begin(ctx, OpConnect, OpConnect); err != nil {
		return err
	}
	return m.ConnectErr
}

// GetSystemInfo implements Tag
func (m *MockTag) GetSystemInfo(ctx context.Context) (*SystemInfo, error) {
	defer m.end()
	if err := m.begin(ctx, OpGetSystemInfo, OpGetSystemInfo); err != nil {
		return nil, err
	}
	if m.SystemInfoErr != nil {
		return nil, m.SystemInfoErr
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	info := *m.Info
	info.UID = append([]byte(nil), m.Info.UID...)
	return &info, nil
}

// ReadSingleBlock implements Tag
func (m *MockTag) ReadSingleBlock(ctx context.Context, block uint8) ([]byte, error) {
	defer m.end()
	if err := m.begin(ctx, fmt.Sprintf("%s:%d", OpReadBlock, block), OpReadBlock); err != nil {
		return nil, err
	}
	if err := m.ReadErrs[block]; err != nil {
		return nil, err
	}
	if int(block) >= len(m.blocks) {
		return nil, fmt.Errorf("block %d not present", block)
	}
	return append([]byte(nil), m.blocks[block]...), nil
}

// WriteAFI implements Tag
func (m *MockTag) WriteAFI(ctx context.Context, afi byte) error {
	defer m.end()
	if err := m.begin(ctx, "write_afi:"+FormatFlag(afi), OpWriteFlag); err != nil {
		return err
	}
	if m.WriteErr != nil {
		return m.WriteErr
	}
	m.SetAFI(afi)
	return nil
}

// Select implements Tag
func (m *MockTag) Select(ctx context.Context) error {
	defer m.end()
	if err := m.begin(ctx, OpSelect, OpSelect); err != nil {
		return err
	}
	return m.SelectErr
}

// CustomCommand implements Tag
func (m *MockTag) CustomCommand(ctx context.Context, code byte, _ []byte) ([]byte, error) {
	defer m.end()
	if err := m.begin(ctx, OpCustomCommand+":"+FormatFlag(code), OpCustomCommand); err != nil {
		return nil, err
	}
	if m.CustomErr != nil {
		return nil, m.CustomErr
	}
	return []byte{}, nil
}

// MockDriver is a scripted Driver. The first detection batch is delivered
// when polling starts and each RestartPolling delivers the next one.
type MockDriver struct {
	StartErr    error
	sessions    []*MockDriverSession
	detections  [][]Tag
	mu          sync.Mutex
	Unavailable bool
}

// NewMockDriver creates a driver that reports the given detection batches
func NewMockDriver(detections ...[]Tag) *MockDriver {
	return &MockDriver{detections: detections}
}

// ReadingAvailable implements Driver
func (d *MockDriver) ReadingAvailable() bool {
	return !d.Unavailable
}

// StartPolling implements Driver
func (d *MockDriver) StartPolling(_ context.Context, handler SessionHandler) (DriverSession, error) {
	if d.StartErr != nil {
		return nil, d.StartErr
	}

	d.mu.Lock()
	session := &MockDriverSession{
		handler:    handler,
		detections: d.detections,
	}
	d.sessions = append(d.sessions, session)
	d.mu.Unlock()

	session.deliverNext()
	return session, nil
}

// LastSession returns the most recently started driver session
func (d *MockDriver) LastSession() *MockDriverSession {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.sessions) == 0 {
		return nil
	}
	return d.sessions[len(d.sessions)-1]
}

// MockDriverSession records what a Session asks of the driver
type MockDriverSession struct {
	handler    SessionHandler
	detections [][]Tag
	messages   []string
	endMessage string
	next       int
	restarts   int
	ends       int
	mu         sync.Mutex
}

func (s *MockDriverSession) deliverNext() {
	s.mu.Lock()
	if s.ends > 0 || s.next >= len(s.detections) {
		s.mu.Unlock()
		return
	}
	tags := s.detections[s.next]
	s.next++
	s.mu.Unlock()

	go s.handler.OnTagsDetected(tags)
}

// SetStatusMessage implements DriverSession
func (s *MockDriverSession) SetStatusMessage(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, text)
}

// RestartPolling implements DriverSession
func (s *MockDriverSession) RestartPolling() {
	s.mu.Lock()
	s.restarts++
	s.mu.Unlock()
	s.deliverNext()
}

// End implements DriverSession
func (s *MockDriverSession) End(errorMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ends++
	s.endMessage = errorMessage
}

// Detect delivers tags to the session handler synchronously
func (s *MockDriverSession) Detect(tags ...Tag) {
	s.handler.OnTagsDetected(tags)
}

// Invalidate reports a driver-side invalidation
func (s *MockDriverSession) Invalidate(cause error) {
	s.handler.OnSessionInvalidated(cause)
}

// Messages returns every status message set so far
func (s *MockDriverSession) Messages() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.messages...)
}

// Restarts returns how many times polling was restarted
func (s *MockDriverSession) Restarts() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restarts
}

// Ended returns how many times End was called and the last error message
func (s *MockDriverSession) Ended() (count int, errorMessage string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ends, s.endMessage
}

// MockTransport is a Transport with per-command scripted responses
type MockTransport struct {
	responses    map[byte][]byte
	errors       map[byte]error
	calls        map[byte]int
	responseFunc func(cmd byte, args []byte) ([]byte, error)
	timeout      time.Duration
	mu           sync.Mutex
	closed       bool
}

// NewMockTransport creates an empty mock transport
func NewMockTransport() *MockTransport {
	return &MockTransport{
		responses: make(map[byte][]byte),
		errors:    make(map[byte]error),
		calls:     make(map[byte]int),
		timeout:   time.Second,
	}
}

// SendCommand implements Transport
func (m *MockTransport) SendCommand(ctx context.Context, cmd byte, args []byte) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls[cmd]++

	if m.closed {
		return nil, ErrTransportClosed
	}
	if err, ok := m.errors[cmd]; ok {
		return nil, err
	}
	if resp, ok := m.responses[cmd]; ok {
		return append([]byte(nil), resp...), nil
	}
	if m.responseFunc != nil {
		return m.responseFunc(cmd, args)
	}
	return nil, fmt.Errorf("%w: no response for command 0x%02X", ErrInvalidResponse, cmd)
}

// SetResponse sets the response for cmd
func (m *MockTransport) SetResponse(cmd byte, resp []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responses[cmd] = resp
	delete(m.errors, cmd)
}

// SetError makes cmd fail with err
func (m *MockTransport) SetError(cmd byte, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.errors[cmd] = err
}

// ClearError removes the error set for cmd
func (m *MockTransport) ClearError(cmd byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.errors, cmd)
}

// SetResponseFunc answers every command without a fixed response
func (m *MockTransport) SetResponseFunc(fn func(cmd byte, args []byte) ([]byte, error)) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.responseFunc = fn
}

// CallCount returns how many times cmd was sent
func (m *MockTransport) CallCount(cmd byte) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[cmd]
}

// Close implements Transport
func (m *MockTransport) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

// SetTimeout implements Transport
func (m *MockTransport) SetTimeout(timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.timeout = timeout
	return nil
}

// IsConnected implements Transport
func (m *MockTransport) IsConnected() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

// Type implements Transport
func (*MockTransport) Type() TransportType {
	return TransportMock
}
