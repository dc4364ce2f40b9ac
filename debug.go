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
	"log/slog"
	"sync/atomic"
)

var (
	debugEnabled atomic.Bool
	debugLogger  atomic.Pointer[slog.Logger]
)

// SetDebugEnabled turns library debug output on or off
func SetDebugEnabled(enabled bool) {
	debugEnabled.Store(enabled)
}

// DebugEnabled reports whether library debug output is on
func DebugEnabled() bool {
	return debugEnabled.Load()
}

// SetLogger replaces the logger used for debug output. A nil logger restores
// slog.Default().
func SetLogger(logger *slog.Logger) {
	debugLogger.Store(logger)
}

func logger() *slog.Logger {
	if l := debugLogger.Load(); l != nil {
		return l
	}
	return slog.Default()
}

// Debugf logs a formatted debug message when debug output is on
func Debugf(format string, args ...any) {
	if !debugEnabled.Load() {
		return
	}
	logger().Log(context.Background(), slog.LevelDebug, fmt.Sprintf(format, args...), "component", "iso15693")
}

// Debugln logs a debug message when debug output is on
func Debugln(args ...any) {
	if !debugEnabled.Load() {
		return
	}
	logger().Log(context.Background(), slog.LevelDebug, fmt.Sprint(args...), "component", "iso15693")
}
