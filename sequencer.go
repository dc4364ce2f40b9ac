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
	"time"
)

// ScanKind selects between reading and writing
type ScanKind int

const (
	ScanRead ScanKind = iota
	ScanWrite
)

// String implements fmt.Stringer
func (k ScanKind) String() string {
	switch k {
	case ScanRead:
		return "read"
	case ScanWrite:
		return "write"
	default:
		return fmt.Sprintf("ScanKind(%d)", int(k))
	}
}

// ScanRequest describes what a session should do with the tag it finds
type ScanRequest struct {
	Kind      ScanKind
	Operation OperationMode
	Security  SecurityMode
}

// Validate checks the request
func (r ScanRequest) Validate() error {
	if r.Kind != ScanRead && r.Kind != ScanWrite {
		return fmt.Errorf("%w: scan kind %v", ErrInvalidParameter, r.Kind)
	}
	if !r.Security.Valid() {
		return fmt.Errorf("%w: security mode %v", ErrInvalidParameter, r.Security)
	}
	if r.Kind == ScanWrite && !r.Operation.Valid() {
		return fmt.Errorf("%w: operation %v", ErrInvalidParameter, r.Operation)
	}
	return nil
}

// Sequencer runs the fixed command pipelines against one tag. Commands pass
// through a one-slot gate so at most one is in flight, and each completes
// before the next is issued.
type Sequencer struct {
	config *Config
	gate   chan struct{}
	now    func() time.Time
}

// NewSequencer creates a sequencer using config. A nil config uses the defaults.
func NewSequencer(config *Config) *Sequencer {
	if config == nil {
		config = DefaultConfig()
	}
	return &Sequencer{
		config: config,
		gate:   make(chan struct{}, 1),
		now:    time.Now,
	}
}

// do issues one command through the gate. Cancellation while waiting for the
// gate or before issuing aborts without running fn.
func (q *Sequencer) do(ctx context.Context, fn func(context.Context) error) error {
	select {
	case q.gate <- struct{}{}:
	case <-ctx.Done():
		return canceledError(context.Cause(ctx))
	}
	defer func() { <-q.gate }()

	if ctx.Err() != nil {
		return canceledError(context.Cause(ctx))
	}
	return fn(ctx)
}

func (q *Sequencer) systemInfo(ctx context.Context, tag Tag) (*SystemInfo, error) {
	var info *SystemInfo
	err := q.do(ctx, func(ctx context.Context) error {
		var err error
		info, err = GetSystemInfo(ctx, tag)
		return err
	})
	return info, err
}

// readBlocks reads blocks 0..total-1 in increasing order
func (q *Sequencer) readBlocks(ctx context.Context, tag Tag, total int) ([]Block, error) {
	blocks := make([]Block, 0, total)
	for n := 0; n < total; n++ {
		err := q.do(ctx, func(ctx context.Context) error {
			data, err := ReadBlock(ctx, tag, n, total)
			if err != nil {
				return err
			}
			blocks = append(blocks, Block{Number: n, Data: data})
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	Debugf("read %d blocks", len(blocks))
	return blocks, nil
}

// readMemory fetches system info, reads every block and then fetches system
// info again for the current AFI.
func (q *Sequencer) readMemory(ctx context.Context, tag Tag) ([]byte, Status, error) {
	info, err := q.systemInfo(ctx, tag)
	if err != nil {
		return nil, StatusUnknown, err
	}

	blocks, err := q.readBlocks(ctx, tag, info.TotalBlocks)
	if err != nil {
		return nil, StatusUnknown, err
	}

	statusInfo, err := q.systemInfo(ctx, tag)
	if err != nil {
		return nil, StatusUnknown, err
	}

	memory, err := AssembleBlocks(blocks, info.TotalBlocks)
	if err != nil {
		return nil, StatusUnknown, err
	}
	return memory, statusInfo.Status(), nil
}

// ReadBarcode runs the barcode pipeline: system info, every block in order,
// system info for status, then NUL splitting and control character removal.
func (q *Sequencer) ReadBarcode(ctx context.Context, tag Tag) (ScanRecord, error) {
	memory, status, err := q.readMemory(ctx, tag)
	if err != nil {
		return ScanRecord{}, err
	}

	barcode, err := SelectBarcodeSegment(SplitOnNull(DecodeASCIIBlock(memory)))
	if err != nil {
		return ScanRecord{}, err
	}
	return q.record(barcode, status), nil
}

// ReadSerial runs the serial pipeline: one system info round trip, the UID
// reversed and hex encoded.
func (q *Sequencer) ReadSerial(ctx context.Context, tag Tag) (ScanRecord, error) {
	info, err := q.systemInfo(ctx, tag)
	if err != nil {
		return ScanRecord{}, err
	}
	if len(info.UID) == 0 {
		return ScanRecord{}, fmt.Errorf("%w: tag reported no UID", ErrParse)
	}
	return q.record(info.SerialNumber(q.config.HexFormat), info.Status()), nil
}

// ReadNDEF reads tag memory like ReadBarcode but decodes it as an NFC Forum
// Type 5 NDEF message.
func (q *Sequencer) ReadNDEF(ctx context.Context, tag Tag) (ScanRecord, error) {
	memory, status, err := q.readMemory(ctx, tag)
	if err != nil {
		return ScanRecord{}, err
	}

	raw, err := ExtractNDEF(memory)
	if err != nil {
		return ScanRecord{}, err
	}
	text, err := DecodeNDEFText(raw)
	if err != nil {
		return ScanRecord{}, err
	}
	return q.record(text, status), nil
}

// Read runs the pipeline selected by the configured read mode
func (q *Sequencer) Read(ctx context.Context, tag Tag) (ScanRecord, error) {
	switch q.config.ReadMode {
	case ReadModeBarcode:
		return q.ReadBarcode(ctx, tag)
	case ReadModeSerial:
		return q.ReadSerial(ctx, tag)
	case ReadModeNDEF:
		return q.ReadNDEF(ctx, tag)
	default:
		return ScanRecord{}, fmt.Errorf("%w: %q", ErrInvalidReadMode, q.config.ReadMode)
	}
}

// Write resolves the flag byte for (security, op) and writes it. The flag
// is returned even on failure so it can be reported.
func (q *Sequencer) Write(ctx context.Context, tag Tag, security SecurityMode, op OperationMode) (byte, error) {
	flag := q.config.FlagTable().Lookup(security, op)
	Debugf("writing %s flag %s for %s", security, FormatFlag(flag), op)

	err := q.do(ctx, func(ctx context.Context) error {
		return WriteFlag(ctx, tag, security, flag)
	})
	return flag, err
}

// Run executes req against tag and converts the result into an Outcome
func (q *Sequencer) Run(ctx context.Context, tag Tag, req ScanRequest) Outcome {
	if req.Kind == ScanWrite {
		flag, err := q.Write(ctx, tag, req.Security, req.Operation)
		if err != nil {
			out := failureOutcome(err)
			if !out.HasFlag {
				out.Flag, out.HasFlag = flag, true
			}
			return out
		}
		return writeOutcome(flag)
	}

	record, err := q.Read(ctx, tag)
	if err != nil {
		return failureOutcome(err)
	}
	return readOutcome(record)
}

func (q *Sequencer) record(barcode string, status Status) ScanRecord {
	return ScanRecord{RawBarcode: barcode, Status: status, ScannedAt: q.now()}
}
