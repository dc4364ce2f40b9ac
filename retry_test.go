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
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRetryWithConfig(t *testing.T) {
	t.Parallel()

	errPermanent := errors.New("permanent")

	tests := []struct {
		wantErr   error
		fail      error
		name      string
		failCount int
		attempts  int
		wantCalls int
	}{
		{name: "first_try", failCount: 0, attempts: 3, wantCalls: 1},
		{name: "recovers", fail: ErrTransportRead, failCount: 2, attempts: 3, wantCalls: 3},
		{name: "exhausted", fail: ErrTransportRead, failCount: 10, attempts: 3, wantCalls: 3, wantErr: ErrTransportRead},
		{name: "permanent", fail: errPermanent, failCount: 10, attempts: 3, wantCalls: 1, wantErr: errPermanent},
		{name: "zero_attempts_runs_once", fail: ErrTransportRead, failCount: 10, attempts: 0, wantCalls: 1, wantErr: ErrTransportRead},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			calls := 0
			err := RetryWithConfig(context.Background(), fastRetryConfig(tt.attempts), func() error {
				calls++
				if calls <= tt.failCount {
					return tt.fail
				}
				return nil
			})

			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
			} else {
				require.NoError(t, err)
			}
			assert.Equal(t, tt.wantCalls, calls)
		})
	}
}

func TestRetryWithConfig_StopsOnContext(t *testing.T) {
	t.Parallel()

	config := &RetryConfig{
		MaxAttempts:       100,
		InitialBackoff:    20 * time.Millisecond,
		BackoffMultiplier: 1.0,
	}
	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	calls := 0
	err := RetryWithConfig(ctx, config, func() error {
		calls++
		return ErrTransportTimeout
	})
	require.ErrorIs(t, err, context.DeadlineExceeded)
	require.ErrorIs(t, err, ErrTransportTimeout)
	assert.Less(t, calls, 100)
}

func TestWithJitter(t *testing.T) {
	t.Parallel()

	assert.Equal(t, 10*time.Millisecond, withJitter(10*time.Millisecond, 0))
	for range 50 {
		d := withJitter(100*time.Millisecond, 0.1)
		assert.GreaterOrEqual(t, d, 90*time.Millisecond)
		assert.LessOrEqual(t, d, 110*time.Millisecond)
	}
}
