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
	"errors"
	"fmt"
)

// Session and command errors
var (
	ErrUnsupported      = errors.New("device doesn't support tag scanning")
	ErrMultipleTags     = errors.New("more than one tag detected")
	ErrConnect          = errors.New("tag connect failed")
	ErrCommand          = errors.New("tag command failed")
	ErrParse            = errors.New("barcode error")
	ErrCanceled         = errors.New("session canceled")
	ErrUserCanceled     = errors.New("session canceled by user")
	ErrSessionTimeout   = errors.New("session timeout")
	ErrSessionActive    = errors.New("a session is already active")
	ErrSessionEnded     = errors.New("session already ended")
	ErrInvalidParameter = errors.New("invalid parameter")
	ErrRecordIndex      = errors.New("record index out of range")
	ErrInvalidReadMode  = errors.New("checked read mode")
)

// ErrorKind classifies a failed session
type ErrorKind int

const (
	KindNone ErrorKind = iota
	KindUnsupported
	KindMultiTagDetected
	KindConnectError
	KindCommandError
	KindParseError
	KindCanceled
	// KindInvalidRequest is a session refused before any tag command ran
	KindInvalidRequest
)

// String implements fmt.Stringer
func (k ErrorKind) String() string {
	switch k {
	case KindNone:
		return "None"
	case KindUnsupported:
		return "Unsupported"
	case KindMultiTagDetected:
		return "MultiTagDetected"
	case KindConnectError:
		return "ConnectError"
	case KindCommandError:
		return "CommandError"
	case KindParseError:
		return "ParseError"
	case KindCanceled:
		return "Canceled"
	case KindInvalidRequest:
		return "InvalidRequest"
	default:
		return fmt.Sprintf("ErrorKind(%d)", int(k))
	}
}

// MarshalText implements encoding.TextMarshaler
func (k ErrorKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (k *ErrorKind) UnmarshalText(text []byte) error {
	for kind := KindNone; kind <= KindInvalidRequest; kind++ {
		if kind.String() == string(text) {
			*k = kind
			return nil
		}
	}
	return fmt.Errorf("%w: error kind %q", ErrInvalidParameter, text)
}

// Terminal reports whether errors of this kind end the session
func (k ErrorKind) Terminal() bool {
	return k != KindNone && k != KindMultiTagDetected
}

// TagError is a failed tag command with its operation and, for writes, the
// flag byte that was being written.
type TagError struct {
	Err     error
	Op      string
	Kind    ErrorKind
	Flag    byte
	HasFlag bool
}

// Error implements the error interface
func (e *TagError) Error() string {
	if e.HasFlag {
		return fmt.Sprintf("%s %s failed: %v", e.Op, FormatFlag(e.Flag), e.Err)
	}
	return fmt.Sprintf("%s failed: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *TagError) Unwrap() error {
	return e.Err
}

// Is matches the sentinel for the error's kind
func (e *TagError) Is(target error) bool {
	switch e.Kind {
	case KindCommandError:
		return target == ErrCommand
	case KindConnectError:
		return target == ErrConnect
	case KindParseError:
		return target == ErrParse
	case KindCanceled:
		return target == ErrCanceled
	case KindNone, KindUnsupported, KindMultiTagDetected, KindInvalidRequest:
		return false
	default:
		return false
	}
}

// NewCommandError wraps a driver error from a tag command
func NewCommandError(op string, err error) *TagError {
	return &TagError{Op: op, Kind: KindCommandError, Err: err}
}

// NewFlagCommandError wraps a driver error from a flag write
func NewFlagCommandError(op string, flag byte, err error) *TagError {
	return &TagError{Op: op, Kind: KindCommandError, Flag: flag, HasFlag: true, Err: err}
}

// KindOf classifies err into the session error taxonomy
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}

	var tagErr *TagError
	if errors.As(err, &tagErr) && tagErr.Kind != KindNone {
		return tagErr.Kind
	}

	switch {
	case errors.Is(err, ErrCanceled), errors.Is(err, ErrUserCanceled),
		errors.Is(err, ErrSessionTimeout), errors.Is(err, context.Canceled),
		errors.Is(err, context.DeadlineExceeded):
		return KindCanceled
	case errors.Is(err, ErrUnsupported):
		return KindUnsupported
	case errors.Is(err, ErrMultipleTags):
		return KindMultiTagDetected
	case errors.Is(err, ErrConnect):
		return KindConnectError
	case errors.Is(err, ErrParse):
		return KindParseError
	case errors.Is(err, ErrInvalidReadMode), errors.Is(err, ErrInvalidParameter):
		return KindInvalidRequest
	default:
		return KindCommandError
	}
}

// canceledError wraps a cancellation cause so that it satisfies both
// ErrCanceled and the cause itself.
func canceledError(cause error) error {
	if cause == nil {
		return ErrCanceled
	}
	if errors.Is(cause, ErrCanceled) {
		return cause
	}
	return fmt.Errorf("%w: %w", ErrCanceled, cause)
}

func asTagError(err error) *TagError {
	var tagErr *TagError
	if errors.As(err, &tagErr) {
		return tagErr
	}
	return nil
}

// isUserCancel reports whether err stems from the user canceling the session
func isUserCancel(err error) bool {
	return errors.Is(err, ErrUserCanceled)
}
