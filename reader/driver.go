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
	"fmt"
	"sync"
	"time"

	iso15693 "github.com/ZaparooProject/go-iso15693"
)

// Default polling settings
const (
	DefaultPollInterval   = 100 * time.Millisecond
	DefaultSessionTimeout = 60 * time.Second
	DefaultMaxPollErrors  = 5
)

// DriverConfig controls the poll loop
type DriverConfig struct {
	// StatusFunc, if set, receives every status message of a session
	StatusFunc func(text string)
	// PollInterval is the time between two inventories
	PollInterval time.Duration
	// SessionTimeout invalidates a session that runs this long; zero disables it
	SessionTimeout time.Duration
	// MaxPollErrors consecutive inventory failures invalidate the session
	MaxPollErrors int
}

// DefaultDriverConfig returns the default poll loop settings
func DefaultDriverConfig() DriverConfig {
	return DriverConfig{
		PollInterval:   DefaultPollInterval,
		SessionTimeout: DefaultSessionTimeout,
		MaxPollErrors:  DefaultMaxPollErrors,
	}
}

// Driver polls a Reader for ISO15693 tags and implements iso15693.Driver.
// Only one polling session runs at a time.
type Driver struct {
	reader *Reader
	active *pollSession
	config DriverConfig
	mu     sync.Mutex
}

// NewDriver creates a driver for reader. A nil config uses the defaults.
func NewDriver(reader *Reader, config *DriverConfig) (*Driver, error) {
	if reader == nil {
		return nil, fmt.Errorf("%w: nil reader", iso15693.ErrInvalidParameter)
	}
	cfg := DefaultDriverConfig()
	if config != nil {
		cfg = *config
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.MaxPollErrors <= 0 {
		cfg.MaxPollErrors = DefaultMaxPollErrors
	}
	return &Driver{reader: reader, config: cfg}, nil
}

// Reader returns the reader the driver polls
func (d *Driver) Reader() *Reader {
	return d.reader
}

// ReadingAvailable reports whether the reader was probed and supports ISO15693
func (d *Driver) ReadingAvailable() bool {
	fw, ok := d.reader.Firmware()
	return ok && fw.SupportsISO15693()
}

// StartPolling implements iso15693.Driver. Cancelling ctx invalidates the
// session with the context's cause.
func (d *Driver) StartPolling(ctx context.Context, handler iso15693.SessionHandler) (iso15693.DriverSession, error) {
	if handler == nil {
		return nil, fmt.Errorf("%w: nil handler", iso15693.ErrInvalidParameter)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.active != nil && !d.active.isEnded() {
		return nil, iso15693.ErrSessionActive
	}
	if !d.reader.RFOn() {
		if err := d.reader.SetRFField(ctx, true); err != nil {
			return nil, fmt.Errorf("RF field on: %w", err)
		}
	}

	s := &pollSession{
		driver:  d,
		handler: handler,
		resume:  make(chan struct{}, 1),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	d.active = s
	go s.loop(ctx)
	return s, nil
}

// pollSession is one polling session. Its loop pauses after reporting a
// detection until RestartPolling or End.
type pollSession struct {
	driver       *Driver
	handler      iso15693.SessionHandler
	resume       chan struct{}
	stop         chan struct{}
	done         chan struct{}
	message      string
	endMessage   string
	tags         []*Tag
	mu           sync.Mutex
	ended        bool
	pollFailures int
}

func (s *pollSession) loop(ctx context.Context) {
	defer close(s.done)

	ticker := time.NewTicker(s.driver.config.PollInterval)
	defer ticker.Stop()

	var timeout <-chan time.Time
	if s.driver.config.SessionTimeout > 0 {
		timer := time.NewTimer(s.driver.config.SessionTimeout)
		defer timer.Stop()
		timeout = timer.C
	}

	// wait blocks on ch and reports whether the loop should go on
	wait := func(ch <-chan struct{}, tick <-chan time.Time) bool {
		select {
		case <-s.stop:
			return false
		case <-ctx.Done():
			s.invalidate(context.Cause(ctx))
			return false
		case <-timeout:
			s.invalidate(iso15693.ErrSessionTimeout)
			return false
		case <-ch:
			return true
		case <-tick:
			return true
		}
	}

	for wait(nil, ticker.C) {
		tags, err := s.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			s.pollFailures++
			iso15693.Debugf("reader: inventory failed (%d): %v", s.pollFailures, err)
			if s.pollFailures >= s.driver.config.MaxPollErrors {
				s.invalidate(fmt.Errorf("%w: %w", iso15693.ErrCommunicationFailed, err))
				return
			}
			continue
		}
		s.pollFailures = 0
		if len(tags) == 0 {
			continue
		}

		s.handler.OnTagsDetected(tags)
		if !wait(s.resume, nil) {
			return
		}
	}
}

func (s *pollSession) poll(ctx context.Context) ([]iso15693.Tag, error) {
	uids, err := s.driver.reader.Inventory(ctx)
	if err != nil {
		return nil, err
	}

	tags := make([]iso15693.Tag, 0, len(uids))
	handles := make([]*Tag, 0, len(uids))
	for _, uid := range uids {
		tag, err := NewTag(s.driver.reader, uid)
		if err != nil {
			return nil, err
		}
		tags = append(tags, tag)
		handles = append(handles, tag)
	}

	s.mu.Lock()
	s.releaseTagsLocked()
	s.tags = handles
	s.mu.Unlock()
	return tags, nil
}

func (s *pollSession) releaseTagsLocked() {
	for _, tag := range s.tags {
		tag.release()
	}
	s.tags = nil
}

func (s *pollSession) isEnded() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ended
}

// invalidate ends the session from the driver side and tells the handler
func (s *pollSession) invalidate(cause error) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.releaseTagsLocked()
	s.mu.Unlock()

	iso15693.Debugf("reader: session invalidated: %v", cause)
	s.handler.OnSessionInvalidated(cause)
}

// SetStatusMessage implements iso15693.DriverSession
func (s *pollSession) SetStatusMessage(text string) {
	s.mu.Lock()
	s.message = text
	s.mu.Unlock()

	iso15693.Debugf("reader: status %q", text)
	if fn := s.driver.config.StatusFunc; fn != nil {
		fn(text)
	}
}

// RestartPolling implements iso15693.DriverSession
func (s *pollSession) RestartPolling() {
	s.mu.Lock()
	s.releaseTagsLocked()
	s.mu.Unlock()

	select {
	case s.resume <- struct{}{}:
	default:
	}
}

// End implements iso15693.DriverSession
func (s *pollSession) End(errorMessage string) {
	s.mu.Lock()
	if s.ended {
		s.mu.Unlock()
		return
	}
	s.ended = true
	s.endMessage = errorMessage
	s.releaseTagsLocked()
	s.mu.Unlock()

	close(s.stop)
	if errorMessage != "" {
		iso15693.Debugf("reader: session ended: %s", errorMessage)
		if fn := s.driver.config.StatusFunc; fn != nil {
			fn(errorMessage)
		}
	} else {
		iso15693.Debugln("reader: session ended")
	}
}

// Done is closed once the poll loop has exited
func (s *pollSession) Done() <-chan struct{} {
	return s.done
}

// StatusMessage returns the last status message
func (s *pollSession) StatusMessage() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.message
}
