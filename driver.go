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

import "context"

// Driver is the platform NFC driver that owns the radio. It polls for
// ISO15693 tags and reports detections to a SessionHandler.
type Driver interface {
	// ReadingAvailable reports whether the hardware can scan tags
	ReadingAvailable() bool

	// StartPolling begins an ISO15693 polling session. Detections and
	// invalidation are reported to handler asynchronously.
	StartPolling(ctx context.Context, handler SessionHandler) (DriverSession, error)
}

// SessionHandler receives driver callbacks for one polling session
type SessionHandler interface {
	// OnTagsDetected is called with every tag found in one polling cycle.
	// Polling is paused until RestartPolling or End is called.
	OnTagsDetected(tags []Tag)

	// OnSessionInvalidated is called when the driver ends the session on its
	// own (user cancel, timeout, tag removal, radio failure).
	OnSessionInvalidated(cause error)
}

// DriverSession is the driver side of a polling session
type DriverSession interface {
	// SetStatusMessage updates the message shown to the operator
	SetStatusMessage(text string)

	// RestartPolling resumes polling after a detection
	RestartPolling()

	// End closes the session. An empty errorMessage ends it successfully.
	End(errorMessage string)
}
