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

import "fmt"

// SessionState is the lifecycle state of a scan session
type SessionState int

const (
	StateIdle SessionState = iota
	StatePolling
	StateTagDetected
	StateConnecting
	StateExecuting
	StateTerminating
	StateTerminal
)

// String implements fmt.Stringer
func (s SessionState) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StatePolling:
		return "Polling"
	case StateTagDetected:
		return "TagDetected"
	case StateConnecting:
		return "Connecting"
	case StateExecuting:
		return "Executing"
	case StateTerminating:
		return "Terminating"
	case StateTerminal:
		return "Terminal"
	default:
		return fmt.Sprintf("SessionState(%d)", int(s))
	}
}

// MarshalText implements encoding.TextMarshaler
func (s SessionState) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *SessionState) UnmarshalText(text []byte) error {
	for state := StateIdle; state <= StateTerminal; state++ {
		if state.String() == string(text) {
			*s = state
			return nil
		}
	}
	return fmt.Errorf("%w: session state %q", ErrInvalidParameter, text)
}

// Every non-terminal state may move to Terminating on failure or cancellation.
var sessionTransitions = map[SessionState][]SessionState{
	StateIdle:        {StatePolling, StateTerminating},
	StatePolling:     {StatePolling, StateTagDetected, StateTerminating},
	StateTagDetected: {StateConnecting, StateTerminating},
	StateConnecting:  {StateExecuting, StateTerminating},
	StateExecuting:   {StateTerminating},
	StateTerminating: {StateTerminal},
	StateTerminal:    nil,
}

// CanTransition reports whether the state machine allows moving from s to next
func (s SessionState) CanTransition(next SessionState) bool {
	for _, allowed := range sessionTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// Done reports whether the session has ended or is ending
func (s SessionState) Done() bool {
	return s == StateTerminating || s == StateTerminal
}
