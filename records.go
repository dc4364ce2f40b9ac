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
	"fmt"
	"sync"
	"time"
)

// ScanRecord is the result of a successful read. Records are never mutated
// after creation.
type ScanRecord struct {
	ScannedAt  time.Time `json:"scannedAt"`
	RawBarcode string    `json:"rawBarcode"`
	Status     Status    `json:"status"`
}

// String renders the record the way the loan desk list shows it
func (r ScanRecord) String() string {
	return fmt.Sprintf("%s ::: %s", r.RawBarcode, r.Status)
}

// RecordList is the ordered, in-memory scan history. Successful reads append;
// the user removes entries by index.
type RecordList struct {
	records []ScanRecord
	mu      sync.RWMutex
}

// NewRecordList creates an empty list
func NewRecordList() *RecordList {
	return &RecordList{}
}

// Append adds a record at the end and returns its index
func (l *RecordList) Append(record ScanRecord) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.records = append(l.records, record)
	return len(l.records) - 1
}

// Remove deletes the record at index
func (l *RecordList) Remove(index int) (ScanRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if index < 0 || index >= len(l.records) {
		return ScanRecord{}, fmt.Errorf("%w: %d (have %d)", ErrRecordIndex, index, len(l.records))
	}
	removed := l.records[index]
	l.records = append(l.records[:index], l.records[index+1:]...)
	return removed, nil
}

// Len returns the number of records
func (l *RecordList) Len() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.records)
}

// All returns a copy of the records in order
func (l *RecordList) All() []ScanRecord {
	l.mu.RLock()
	defer l.mu.RUnlock()
	out := make([]ScanRecord, len(l.records))
	copy(out, l.records)
	return out
}
