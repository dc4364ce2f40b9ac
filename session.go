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

	"github.com/google/uuid"
)

// Session drives one scan from polling to a terminal outcome. It implements
// SessionHandler and is registered with the driver when started. Detections
// of more than one tag are retried after a backoff without bound; a single
// tag is connected and handed to the Sequencer. The outcome is delivered
// exactly once and driver callbacks arriving after that are dropped.
type Session struct {
	driver        Driver
	driverSession DriverSession
	ctx           context.Context
	cancel        context.CancelCauseFunc
	onOutcome     func(Outcome)
	sequencer     *Sequencer
	config        *Config
	timer         *time.Timer
	ready         chan struct{}
	done          chan struct{}
	ID            string
	request       ScanRequest
	outcome       Outcome
	state         SessionState
	retries       int
	mu            sync.Mutex
	backingOff    bool
}

// NewSession creates an idle session. onOutcome, if not nil, is called once
// with the terminal outcome before Wait returns.
func NewSession(driver Driver, req ScanRequest, config *Config, onOutcome func(Outcome)) *Session {
	if config == nil {
		config = DefaultConfig()
	} else {
		config = config.Clone()
	}
	return &Session{
		ID:        uuid.NewString(),
		driver:    driver,
		request:   req,
		config:    config,
		sequencer: NewSequencer(config),
		onOutcome: onOutcome,
		state:     StateIdle,
		ready:     make(chan struct{}),
		done:      make(chan struct{}),
	}
}

// Start checks the request and hardware support and begins polling. Failures
// before polling starts end the session and are also returned.
func (s *Session) Start(ctx context.Context) error {
	if s.State() != StateIdle {
		return ErrSessionEnded
	}
	if err := s.preflight(); err != nil {
		s.finish(failureOutcome(err))
		return err
	}

	s.mu.Lock()
	if s.state != StateIdle {
		s.mu.Unlock()
		return ErrSessionEnded
	}
	s.ctx, s.cancel = context.WithCancelCause(ctx)
	s.transitionLocked(StatePolling)
	if s.config.SessionTimeout > 0 {
		s.timer = time.AfterFunc(s.config.SessionTimeout, func() {
			s.invalidate(ErrSessionTimeout)
		})
	}
	s.mu.Unlock()

	go s.watch()

	ds, err := s.driver.StartPolling(s.ctx, s)
	if err != nil {
		err = fmt.Errorf("start polling: %w", err)
		s.finish(failureOutcome(err))
		return err
	}

	s.mu.Lock()
	s.driverSession = ds
	ended := s.state.Done()
	s.mu.Unlock()

	if ended {
		// finish ran before the driver session existed
		close(s.ready)
		ds.End("")
		return nil
	}
	ds.SetStatusMessage(s.config.AlertMessage)
	close(s.ready)
	return nil
}

func (s *Session) preflight() error {
	if err := s.request.Validate(); err != nil {
		return err
	}
	if s.request.Kind == ScanRead && !s.config.ReadMode.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidReadMode, s.config.ReadMode)
	}
	if !s.driver.ReadingAvailable() {
		return ErrUnsupported
	}
	return nil
}

// OnTagsDetected implements SessionHandler
func (s *Session) OnTagsDetected(tags []Tag) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePolling || s.backingOff {
		Debugf("session %s: dropping detection of %d tags in state %s", s.ID, len(tags), s.state)
		return
	}

	switch len(tags) {
	case 0:
		go s.resume()
	case 1:
		s.transitionLocked(StateTagDetected)
		go s.execute(tags[0])
	default:
		s.retries++
		s.backingOff = true
		s.transitionLocked(StatePolling)
		Debugf("session %s: %d tags detected, retry %d", s.ID, len(tags), s.retries)
		go s.backoff()
	}
}

// OnSessionInvalidated implements SessionHandler
func (s *Session) OnSessionInvalidated(cause error) {
	if cause == nil {
		cause = ErrCanceled
	}
	s.invalidate(cause)
}

// Cancel ends the session as canceled by the user. The outcome is silent.
func (s *Session) Cancel() {
	s.invalidate(ErrUserCanceled)
}

// Wait blocks until the session reaches its terminal outcome or ctx ends
func (s *Session) Wait(ctx context.Context) (Outcome, error) {
	select {
	case <-s.done:
		s.mu.Lock()
		defer s.mu.Unlock()
		return s.outcome, nil
	case <-ctx.Done():
		return Outcome{}, ctx.Err()
	}
}

// Done is closed once the outcome has been delivered
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Outcome returns the terminal outcome and whether the session has ended
func (s *Session) Outcome() (Outcome, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outcome, s.state == StateTerminal
}

// State returns the current state
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Retries returns how many multi-tag detections were retried
func (s *Session) Retries() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.retries
}

// Request returns the scan request this session runs
func (s *Session) Request() ScanRequest {
	return s.request
}

func (s *Session) transition(next SessionState) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.transitionLocked(next)
}

func (s *Session) transitionLocked(next SessionState) bool {
	if !s.state.CanTransition(next) {
		Debugf("session %s: ignoring transition %s -> %s", s.ID, s.state, next)
		return false
	}
	if s.state != next {
		Debugf("session %s: %s -> %s", s.ID, s.state, next)
	}
	s.state = next
	return true
}

// waitReady blocks until the driver session is known. It returns false if
// the session ended first.
func (s *Session) waitReady() (DriverSession, bool) {
	select {
	case <-s.ready:
	case <-s.done:
		return nil, false
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Done() {
		return nil, false
	}
	return s.driverSession, true
}

func (s *Session) watch() {
	<-s.ctx.Done()
	s.invalidate(context.Cause(s.ctx))
}

func (s *Session) resume() {
	ds, ok := s.waitReady()
	if !ok {
		return
	}
	ds.RestartPolling()
}

func (s *Session) backoff() {
	ds, ok := s.waitReady()
	if !ok {
		return
	}
	ds.SetStatusMessage(MessageMultipleTags)

	timer := time.NewTimer(s.config.MultiTagBackoff)
	defer timer.Stop()
	select {
	case <-timer.C:
	case <-s.done:
		return
	}

	s.mu.Lock()
	if s.state != StatePolling {
		s.mu.Unlock()
		return
	}
	s.backingOff = false
	s.mu.Unlock()

	ds.SetStatusMessage(s.config.AlertMessage)
	ds.RestartPolling()
}

func (s *Session) execute(tag Tag) {
	if _, ok := s.waitReady(); !ok {
		return
	}

	if !s.transition(StateConnecting) {
		return
	}
	if err := tag.Connect(s.ctx); err != nil {
		s.finish(failureOutcome(s.connectErr(err)))
		return
	}

	if !s.transition(StateExecuting) {
		return
	}
	s.finish(s.sequencer.Run(s.ctx, tag, s.request))
}

func (s *Session) connectErr(err error) error {
	if s.ctx.Err() != nil {
		return canceledError(context.Cause(s.ctx))
	}
	return &TagError{Op: OpConnect, Kind: KindConnectError, Err: err}
}

// invalidate cancels in-flight work with cause and ends the session as canceled
func (s *Session) invalidate(cause error) {
	s.mu.Lock()
	cancel := s.cancel
	done := s.state.Done()
	s.mu.Unlock()
	if done {
		return
	}

	if cancel != nil {
		cancel(cause)
	}
	s.finish(failureOutcome(canceledError(cause)))
}

// finish moves the session to Terminal with out. Only the first call wins.
func (s *Session) finish(out Outcome) bool {
	s.mu.Lock()
	if s.state.Done() {
		s.mu.Unlock()
		Debugf("session %s: dropping outcome %s", s.ID, out)
		return false
	}
	s.transitionLocked(StateTerminating)
	ds := s.driverSession
	cancel := s.cancel
	timer := s.timer
	s.mu.Unlock()

	if timer != nil {
		timer.Stop()
	}
	if ds != nil {
		endDriverSession(ds, out)
	}
	if cancel != nil {
		cancel(ErrSessionEnded)
	}

	s.mu.Lock()
	s.transitionLocked(StateTerminal)
	s.outcome = out
	s.mu.Unlock()

	Debugf("session %s: %s", s.ID, out)
	if s.onOutcome != nil {
		s.onOutcome(out)
	}
	close(s.done)
	return true
}

func endDriverSession(ds DriverSession, out Outcome) {
	switch {
	case out.Success():
		ds.SetStatusMessage(out.Message)
		ds.End("")
	case out.Silent:
		ds.End("")
	default:
		ds.End(out.Message)
	}
}
