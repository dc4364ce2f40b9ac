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
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSessionConfig() *Config {
	cfg := DefaultConfig()
	cfg.MultiTagBackoff = 5 * time.Millisecond
	cfg.SessionTimeout = 0
	return cfg
}

func waitOutcome(t *testing.T, s *Session) Outcome {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	out, err := s.Wait(ctx)
	require.NoError(t, err, "session did not reach a terminal outcome")
	return out
}

// outcomeCounter counts outcome deliveries
type outcomeCounter struct {
	outcomes []Outcome
	mu       sync.Mutex
}

func (c *outcomeCounter) record(out Outcome) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.outcomes = append(c.outcomes, out)
}

func (c *outcomeCounter) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.outcomes)
}

func TestSessionState_Transitions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		from SessionState
		to   SessionState
		want bool
	}{
		{StateIdle, StatePolling, true},
		{StateIdle, StateExecuting, false},
		{StatePolling, StatePolling, true},
		{StatePolling, StateTagDetected, true},
		{StatePolling, StateExecuting, false},
		{StateTagDetected, StateConnecting, true},
		{StateConnecting, StateExecuting, true},
		{StateConnecting, StatePolling, false},
		{StateExecuting, StateTerminating, true},
		{StateExecuting, StatePolling, false},
		{StateTerminating, StateTerminal, true},
		{StateTerminal, StatePolling, false},
		{StateTerminal, StateTerminating, false},
	}

	for _, tt := range tests {
		t.Run(tt.from.String()+"_to_"+tt.to.String(), func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, tt.from.CanTransition(tt.to))
		})
	}

	for _, s := range []SessionState{StateIdle, StatePolling, StateTagDetected, StateConnecting, StateExecuting} {
		assert.True(t, s.CanTransition(StateTerminating), "%s must be cancellable", s)
		assert.False(t, s.Done())
	}
}

func TestSession_ReadSuccess(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	driver := NewMockDriver([]Tag{tag})
	counter := &outcomeCounter{}
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), counter.record)

	require.NoError(t, s.Start(context.Background()))
	out := waitOutcome(t, s)

	require.True(t, out.Success(), out.String())
	require.NotNil(t, out.Record)
	assert.Equal(t, "CD34", out.Record.RawBarcode)
	assert.Equal(t, StatusLoanable, out.Record.Status)
	assert.Equal(t, MessageReadComplete, out.Message)
	assert.Equal(t, StateTerminal, s.State())
	assert.Equal(t, 1, counter.count())
	assert.Equal(t, "connect", tag.Calls()[0])

	ds := driver.LastSession()
	ends, msg := ds.Ended()
	assert.Equal(t, 1, ends)
	assert.Empty(t, msg)
	assert.Equal(t, MessageHoldNear, ds.Messages()[0])
	assert.Contains(t, ds.Messages(), MessageReadComplete)
}

func TestSession_MultiTagRetries(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	other := scenarioATag()
	driver := NewMockDriver([]Tag{tag, other}, []Tag{tag, other}, []Tag{tag})
	cfg := testSessionConfig()
	cfg.MultiTagBackoff = 20 * time.Millisecond
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, cfg, nil)

	start := time.Now()
	require.NoError(t, s.Start(context.Background()))
	out := waitOutcome(t, s)

	require.True(t, out.Success(), out.String())
	assert.Equal(t, 2, s.Retries())
	assert.GreaterOrEqual(t, time.Since(start), 2*cfg.MultiTagBackoff)

	ds := driver.LastSession()
	assert.Equal(t, 2, ds.Restarts())
	assert.Contains(t, ds.Messages(), MessageMultipleTags)
	// the second tag of a multi-tag detection is never touched
	assert.Empty(t, other.Calls())
}

func TestSession_EmptyDetectionResumesPolling(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	driver := NewMockDriver([]Tag{}, []Tag{tag})
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), nil)

	require.NoError(t, s.Start(context.Background()))
	out := waitOutcome(t, s)

	require.True(t, out.Success(), out.String())
	assert.Equal(t, 0, s.Retries())
	assert.Equal(t, 1, driver.LastSession().Restarts())
}

func TestSession_WriteSuccess(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	driver := NewMockDriver([]Tag{tag})
	req := ScanRequest{Kind: ScanWrite, Security: SecurityAFI, Operation: OperationLoan}
	s := NewSession(driver, req, testSessionConfig(), nil)

	require.NoError(t, s.Start(context.Background()))
	out := waitOutcome(t, s)

	require.True(t, out.Success(), out.String())
	assert.Nil(t, out.Record)
	assert.Equal(t, "Complete write NFC Data. (0xC2)", out.Message)
	afi, _ := tag.AFI()
	assert.Equal(t, FlagLoanAFI, afi)
}

func TestSession_ConnectFailure(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	tag.ConnectErr = errors.New("tag connection lost")
	driver := NewMockDriver([]Tag{tag})
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), nil)

	require.NoError(t, s.Start(context.Background()))
	out := waitOutcome(t, s)

	assert.Equal(t, KindConnectError, out.Kind)
	require.ErrorIs(t, out.Err, ErrConnect)
	assert.Contains(t, out.Message, "tag connection lost")
	assert.Equal(t, []string{"connect"}, tag.Calls())

	ends, msg := driver.LastSession().Ended()
	assert.Equal(t, 1, ends)
	assert.Equal(t, out.Message, msg)
}

func TestSession_Unsupported(t *testing.T) {
	t.Parallel()

	driver := NewMockDriver()
	driver.Unavailable = true
	counter := &outcomeCounter{}
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), counter.record)

	err := s.Start(context.Background())
	require.ErrorIs(t, err, ErrUnsupported)

	out := waitOutcome(t, s)
	assert.Equal(t, KindUnsupported, out.Kind)
	assert.Equal(t, StateTerminal, s.State())
	assert.Nil(t, driver.LastSession())
	assert.Equal(t, 1, counter.count())

	require.ErrorIs(t, s.Start(context.Background()), ErrSessionEnded)
}

func TestSession_InvalidReadMode(t *testing.T) {
	t.Parallel()

	cfg := testSessionConfig()
	cfg.ReadMode = ""
	driver := NewMockDriver()
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, cfg, nil)

	require.ErrorIs(t, s.Start(context.Background()), ErrInvalidReadMode)
	assert.Nil(t, driver.LastSession())
	out := waitOutcome(t, s)
	assert.Equal(t, KindInvalidRequest, out.Kind)
	assert.False(t, out.Silent)
}

func TestSession_StartPollingError(t *testing.T) {
	t.Parallel()

	driver := NewMockDriver()
	driver.StartErr = errors.New("radio busy")
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), nil)

	require.Error(t, s.Start(context.Background()))
	out := waitOutcome(t, s)
	assert.False(t, out.Success())
	assert.Contains(t, out.Message, "radio busy")
}

func TestSession_UserCancelIsSilent(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	tag := scenarioATag()
	tag.BeforeCommand = func(ctx context.Context, op string) error {
		if op != OpReadBlock {
			return nil
		}
		select {
		case started <- struct{}{}:
		default:
		}
		<-ctx.Done()
		return ctx.Err()
	}

	driver := NewMockDriver([]Tag{tag})
	counter := &outcomeCounter{}
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), counter.record)
	require.NoError(t, s.Start(context.Background()))

	select {
	case <-started:
	case <-time.After(5 * time.Second):
		t.Fatal("pipeline never reached a block read")
	}
	s.Cancel()

	out := waitOutcome(t, s)
	assert.Equal(t, KindCanceled, out.Kind)
	assert.True(t, out.Silent)
	require.ErrorIs(t, out.Err, ErrUserCanceled)
	assert.Nil(t, out.Record)

	// the pipeline stops after the aborted read
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, []string{"connect", "get_system_info", "read_block:0"}, tag.Calls())
	assert.Equal(t, 1, counter.count())
}

func TestSession_DriverInvalidation(t *testing.T) {
	t.Parallel()

	driver := NewMockDriver()
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), nil)
	require.NoError(t, s.Start(context.Background()))
	assert.Equal(t, StatePolling, s.State())

	driver.LastSession().Invalidate(ErrSessionTimeout)
	out := waitOutcome(t, s)

	assert.Equal(t, KindCanceled, out.Kind)
	assert.False(t, out.Silent)
	require.ErrorIs(t, out.Err, ErrSessionTimeout)
}

func TestSession_Timeout(t *testing.T) {
	t.Parallel()

	cfg := testSessionConfig()
	cfg.SessionTimeout = 20 * time.Millisecond
	s := NewSession(NewMockDriver(), ScanRequest{Kind: ScanRead}, cfg, nil)
	require.NoError(t, s.Start(context.Background()))

	out := waitOutcome(t, s)
	assert.Equal(t, KindCanceled, out.Kind)
	require.ErrorIs(t, out.Err, ErrSessionTimeout)
}

func TestSession_ParentContextCanceled(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewSession(NewMockDriver(), ScanRequest{Kind: ScanRead}, testSessionConfig(), nil)
	require.NoError(t, s.Start(ctx))
	cancel()

	out := waitOutcome(t, s)
	assert.Equal(t, KindCanceled, out.Kind)
	assert.False(t, out.Silent)
}

func TestSession_LateCallbacksDropped(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	driver := NewMockDriver([]Tag{tag})
	counter := &outcomeCounter{}
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), counter.record)
	require.NoError(t, s.Start(context.Background()))
	first := waitOutcome(t, s)
	calls := len(tag.Calls())

	ds := driver.LastSession()
	ds.Detect(tag)
	ds.Detect(tag, scenarioATag())
	ds.Invalidate(ErrUserCanceled)
	s.Cancel()
	time.Sleep(20 * time.Millisecond)

	out, ended := s.Outcome()
	assert.True(t, ended)
	assert.Equal(t, first.Message, out.Message)
	assert.Equal(t, 1, counter.count())
	assert.Len(t, tag.Calls(), calls)
	assert.Equal(t, 0, s.Retries())
	ends, _ := ds.Ended()
	assert.Equal(t, 1, ends)
}

func TestSession_CancelBeforeStart(t *testing.T) {
	t.Parallel()

	driver := NewMockDriver()
	s := NewSession(driver, ScanRequest{Kind: ScanRead}, testSessionConfig(), nil)
	s.Cancel()

	out := waitOutcome(t, s)
	assert.Equal(t, KindCanceled, out.Kind)
	assert.True(t, out.Silent)
	require.ErrorIs(t, s.Start(context.Background()), ErrSessionEnded)
	assert.Nil(t, driver.LastSession())
}

func TestSessionState_Text(t *testing.T) {
	t.Parallel()

	for state := StateIdle; state <= StateTerminal; state++ {
		text, err := state.MarshalText()
		require.NoError(t, err)

		var parsed SessionState
		require.NoError(t, parsed.UnmarshalText(text))
		assert.Equal(t, state, parsed)
	}

	var state SessionState
	require.ErrorIs(t, state.UnmarshalText([]byte("Sleeping")), ErrInvalidParameter)
}
