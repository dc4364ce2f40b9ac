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

// Outcome is the terminal result of a session, produced exactly once
type Outcome struct {
	// Err is the failure cause, nil on success
	Err error `json:"-"`
	// Record is the record appended by a successful read
	Record  *ScanRecord `json:"record,omitempty"`
	Message string      `json:"message"`
	Kind    ErrorKind   `json:"kind"`
	// Flag is the byte written by a write session
	Flag    byte `json:"flag,omitempty"`
	HasFlag bool `json:"hasFlag,omitempty"`
	// Silent marks outcomes that should not raise a user-visible alert
	// (the user canceled the session).
	Silent bool `json:"silent,omitempty"`
}

// Success reports whether the session completed without error
func (o Outcome) Success() bool {
	return o.Kind == KindNone
}

// String implements fmt.Stringer
func (o Outcome) String() string {
	if o.Success() {
		return fmt.Sprintf("Success(%s)", o.Message)
	}
	return fmt.Sprintf("Failure(%s, %s)", o.Kind, o.Message)
}

// Outcome messages
const (
	MessageHoldNear      = "Hold the reader near the item."
	MessageMultipleTags  = "More than 1 tag is detected, please remove all tags and try again."
	MessageReadComplete  = "Complete read NFC Data."
	MessageWriteComplete = "Complete write NFC Data."
	MessageBarcodeError  = "barcode error"
)

func successOutcome(message string) Outcome {
	return Outcome{Kind: KindNone, Message: message}
}

func readOutcome(record ScanRecord) Outcome {
	out := successOutcome(MessageReadComplete)
	out.Record = &record
	return out
}

func writeOutcome(flag byte) Outcome {
	out := successOutcome(fmt.Sprintf("%s (%s)", MessageWriteComplete, FormatFlag(flag)))
	out.Flag = flag
	out.HasFlag = true
	return out
}

// failureOutcome builds the outcome for err. Parse failures use the generic
// barcode error message; cancellation by the user is silent.
func failureOutcome(err error) Outcome {
	out := Outcome{Kind: KindOf(err), Err: err, Message: err.Error()}

	switch out.Kind {
	case KindParseError:
		out.Message = MessageBarcodeError
	case KindCanceled:
		out.Silent = isUserCancel(err)
	case KindNone, KindUnsupported, KindMultiTagDetected, KindConnectError, KindCommandError, KindInvalidRequest:
	}

	if tagErr := asTagError(err); tagErr != nil && tagErr.HasFlag {
		out.Flag = tagErr.Flag
		out.HasFlag = true
	}
	return out
}
