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
	"sync"
	"testing"
	"time"

	"github.com/hsanjuan/go-ndef"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testUID = []byte{0x78, 0x56, 0x34, 0x12, 0x50, 0x01, 0x04, 0xE0}

// scenarioATag holds "AB12" and "CD34" in the first two of four 16-byte blocks
func scenarioATag() *MockTag {
	data := make([]byte, 64)
	copy(data[0:], "AB12")
	copy(data[16:], "CD34")
	tag := NewMockTag(testUID, data, 16)
	tag.SetAFI(0x07)
	return tag
}

func TestSequencer_ReadBarcode(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	q := NewSequencer(nil)

	record, err := q.ReadBarcode(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "CD34", record.RawBarcode)
	assert.Equal(t, StatusLoanable, record.Status)
	assert.False(t, record.ScannedAt.IsZero())

	assert.Equal(t, []string{
		"get_system_info",
		"read_block:0", "read_block:1", "read_block:2", "read_block:3",
		"get_system_info",
	}, tag.Calls())
	assert.Equal(t, 1, tag.MaxInFlight())
}

func TestSequencer_ReadBarcode_SingleSegment(t *testing.T) {
	t.Parallel()

	tag := NewMockTag(testUID, []byte("3100000123456"), 4)
	tag.SetAFI(0xC2)

	record, err := NewSequencer(nil).ReadBarcode(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "3100000123456", record.RawBarcode)
	assert.Equal(t, StatusOnLoan, record.Status)
}

func TestSequencer_ReadBarcode_EmptyMemory(t *testing.T) {
	t.Parallel()

	tag := NewMockTag(testUID, make([]byte, 32), 8)

	_, err := NewSequencer(nil).ReadBarcode(context.Background(), tag)
	require.ErrorIs(t, err, ErrParse)
}

func TestSequencer_ReadBarcode_StatusFromSecondSystemInfo(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	calls := 0
	var mu sync.Mutex
	tag.BeforeCommand = func(_ context.Context, op string) error {
		mu.Lock()
		defer mu.Unlock()
		if op == OpGetSystemInfo {
			calls++
			if calls == 2 {
				tag.SetAFI(FlagLoanAFI)
			}
		}
		return nil
	}

	record, err := NewSequencer(nil).ReadBarcode(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, StatusOnLoan, record.Status)
}

func TestSequencer_ReadBarcode_BlockError(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	tag.ReadErrs = map[uint8]error{2: errRadio}

	_, err := NewSequencer(nil).ReadBarcode(context.Background(), tag)
	require.ErrorIs(t, err, ErrCommand)
	// no further commands after the failed read
	assert.Equal(t, []string{
		"get_system_info", "read_block:0", "read_block:1", "read_block:2",
	}, tag.Calls())
}

func TestSequencer_ReadSerial(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	cfg := DefaultConfig()
	cfg.ReadMode = ReadModeSerial

	record, err := NewSequencer(cfg).Read(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "E004015012345678", record.RawBarcode)
	assert.Equal(t, StatusLoanable, record.Status)
	assert.Equal(t, []string{"get_system_info"}, tag.Calls())
}

func TestSequencer_ReadSerial_Formatted(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.HexFormat = HexFormat{Separator: ":", Lowercase: true}

	record, err := NewSequencer(cfg).ReadSerial(context.Background(), scenarioATag())
	require.NoError(t, err)
	assert.Equal(t, "e0:04:01:50:12:34:56:78", record.RawBarcode)
}

func TestSequencer_ReadNDEF(t *testing.T) {
	t.Parallel()

	raw, err := ndef.NewTextMessage("LIB-0042", "en").Marshal()
	require.NoError(t, err)

	memory := []byte{0xE1, 0x40, 0x08, 0x00, 0x03, byte(len(raw))}
	memory = append(memory, raw...)
	memory = append(memory, 0xFE)
	tag := NewMockTag(testUID, memory, 4)
	tag.SetAFI(0x07)

	cfg := DefaultConfig()
	cfg.ReadMode = ReadModeNDEF
	record, err := NewSequencer(cfg).Read(context.Background(), tag)
	require.NoError(t, err)
	assert.Equal(t, "LIB-0042", record.RawBarcode)
	assert.Equal(t, StatusLoanable, record.Status)
}

func TestSequencer_Read_InvalidMode(t *testing.T) {
	t.Parallel()

	cfg := DefaultConfig()
	cfg.ReadMode = ""
	tag := scenarioATag()

	_, err := NewSequencer(cfg).Read(context.Background(), tag)
	require.ErrorIs(t, err, ErrInvalidReadMode)
	assert.Empty(t, tag.Calls())
}

func TestSequencer_Run_WriteEASLoan(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	out := NewSequencer(nil).Run(context.Background(), tag,
		ScanRequest{Kind: ScanWrite, Security: SecurityEAS, Operation: OperationLoan})

	require.True(t, out.Success(), out.String())
	assert.Equal(t, "Complete write NFC Data. (0xA3)", out.Message)
	assert.True(t, out.HasFlag)
	assert.Equal(t, byte(0xA3), out.Flag)
	assert.Equal(t, []string{"select", "custom_command:0xA3"}, tag.Calls())
}

func TestSequencer_Run_WriteAFIClearFails(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	tag.WriteErr = errRadio

	out := NewSequencer(nil).Run(context.Background(), tag,
		ScanRequest{Kind: ScanWrite, Security: SecurityAFI, Operation: OperationClear})

	require.False(t, out.Success())
	assert.Equal(t, KindCommandError, out.Kind)
	assert.Contains(t, out.Message, "0x00")
	assert.True(t, out.HasFlag)
	assert.Equal(t, byte(0x00), out.Flag)
	require.ErrorIs(t, out.Err, errRadio)
}

func TestSequencer_Run_ReadAppendsNothingOnParseError(t *testing.T) {
	t.Parallel()

	tag := NewMockTag(testUID, make([]byte, 16), 4)
	out := NewSequencer(nil).Run(context.Background(), tag, ScanRequest{Kind: ScanRead})

	assert.Equal(t, KindParseError, out.Kind)
	assert.Equal(t, MessageBarcodeError, out.Message)
	assert.Nil(t, out.Record)
}

func TestSequencer_GateSerializesCommands(t *testing.T) {
	t.Parallel()

	tag := scenarioATag()
	tag.BeforeCommand = func(context.Context, string) error {
		time.Sleep(time.Millisecond)
		return nil
	}
	q := NewSequencer(nil)

	var wg sync.WaitGroup
	for range 4 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := q.ReadBarcode(context.Background(), tag)
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, tag.MaxInFlight())
}

func TestSequencer_CancelAbortsPipeline(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancelCause(context.Background())
	tag := scenarioATag()
	tag.BeforeCommand = func(_ context.Context, op string) error {
		if op == OpReadBlock {
			cancel(ErrUserCanceled)
		}
		return nil
	}

	q := NewSequencer(nil)
	_, err := q.ReadBarcode(ctx, tag)
	require.ErrorIs(t, err, ErrCanceled)
	require.ErrorIs(t, err, ErrUserCanceled)

	// first block read was issued, nothing after it
	assert.Equal(t, []string{"get_system_info", "read_block:0"}, tag.Calls())

	// gate was released
	_, err = q.ReadBarcode(context.Background(), scenarioATag())
	require.NoError(t, err)
}

func TestSequencer_CanceledBeforeStart(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tag := scenarioATag()

	out := NewSequencer(nil).Run(ctx, tag, ScanRequest{Kind: ScanRead})
	assert.Equal(t, KindCanceled, out.Kind)
	assert.False(t, out.Silent)
	assert.Empty(t, tag.Calls())
}
