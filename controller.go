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
)

// Controller is the entry point used by a UI. It owns the record list and
// runs at most one Session at a time against the driver.
type Controller struct {
	driver        Driver
	config        *Config
	records       *RecordList
	session       *Session
	onRecordAdded func(index int, record ScanRecord)
	onOutcome     func(Outcome)
	mu            sync.Mutex
}

// NewController creates a controller for driver configured by opts
func NewController(driver Driver, opts ...Option) (*Controller, error) {
	if driver == nil {
		return nil, fmt.Errorf("%w: nil driver", ErrInvalidParameter)
	}

	config := DefaultConfig()
	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &Controller{
		driver:  driver,
		config:  config,
		records: NewRecordList(),
	}, nil
}

// OnRecordAdded registers a callback invoked after a successful read appends
// a record. It runs before the matching outcome callback.
func (c *Controller) OnRecordAdded(fn func(index int, record ScanRecord)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onRecordAdded = fn
}

// OnOutcome registers a callback invoked once per session with its outcome
func (c *Controller) OnOutcome(fn func(Outcome)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onOutcome = fn
}

// Config returns a copy of the controller configuration
func (c *Controller) Config() *Config {
	return c.config.Clone()
}

// BeginScan starts a session for req. Only one session may be active; a
// second call while one runs returns ErrSessionActive.
func (c *Controller) BeginScan(ctx context.Context, req ScanRequest) (*Session, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if c.session != nil {
		select {
		case <-c.session.Done():
		default:
			c.mu.Unlock()
			return nil, ErrSessionActive
		}
	}
	session := NewSession(c.driver, req, c.config, nil)
	session.onOutcome = func(out Outcome) { c.handleOutcome(session, out) }
	c.session = session
	c.mu.Unlock()

	Debugf("beginning %s scan (session %s)", req.Kind, session.ID)
	if err := session.Start(ctx); err != nil {
		return session, err
	}
	return session, nil
}

// NewReadRequest builds a read request using the configured security mode
func (c *Controller) NewReadRequest() ScanRequest {
	return ScanRequest{Kind: ScanRead, Security: c.config.SecurityMode}
}

// NewWriteRequest builds a write request for op using the configured security mode
func (c *Controller) NewWriteRequest(op OperationMode) ScanRequest {
	return ScanRequest{Kind: ScanWrite, Operation: op, Security: c.config.SecurityMode}
}

// Cancel cancels the active session, if any, as a user cancellation
func (c *Controller) Cancel() bool {
	c.mu.Lock()
	session := c.session
	c.mu.Unlock()
	if session == nil {
		return false
	}

	select {
	case <-session.Done():
		return false
	default:
	}
	session.Cancel()
	return true
}

// ActiveSession returns the running session or nil
func (c *Controller) ActiveSession() *Session {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.session == nil {
		return nil
	}
	select {
	case <-c.session.Done():
		return nil
	default:
		return c.session
	}
}

// Records returns a snapshot of the scan history
func (c *Controller) Records() []ScanRecord {
	return c.records.All()
}

// DeleteRecord removes the record at index
func (c *Controller) DeleteRecord(index int) (ScanRecord, error) {
	return c.records.Remove(index)
}

func (c *Controller) handleOutcome(session *Session, out Outcome) {
	c.mu.Lock()
	onRecordAdded := c.onRecordAdded
	onOutcome := c.onOutcome
	c.mu.Unlock()

	if out.Success() && out.Record != nil {
		index := c.records.Append(*out.Record)
		Debugf("session %s: record %d added: %s", session.ID, index, out.Record)
		if onRecordAdded != nil {
			onRecordAdded(index, *out.Record)
		}
	}
	if onOutcome != nil {
		onOutcome(out)
	}
}
