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
	"strings"
)

// SecurityMode selects which flag semantics govern a session
type SecurityMode int

const (
	// SecurityAFI stores loan status in the Application Family Identifier byte
	SecurityAFI SecurityMode = iota
	// SecurityEAS toggles Electronic Article Surveillance via vendor custom commands
	SecurityEAS
)

// String implements fmt.Stringer
func (m SecurityMode) String() string {
	switch m {
	case SecurityAFI:
		return "AFI"
	case SecurityEAS:
		return "EAS"
	default:
		return fmt.Sprintf("SecurityMode(%d)", int(m))
	}
}

// Valid reports whether m is a defined security mode
func (m SecurityMode) Valid() bool {
	return m == SecurityAFI || m == SecurityEAS
}

// ParseSecurityMode parses "AFI" or "EAS" (case-insensitive)
func ParseSecurityMode(s string) (SecurityMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "AFI":
		return SecurityAFI, nil
	case "EAS":
		return SecurityEAS, nil
	default:
		return 0, fmt.Errorf("%w: unknown security mode %q", ErrInvalidParameter, s)
	}
}

// OperationMode is the loan-desk action that determines the flag to write
type OperationMode int

const (
	// OperationLoan marks the item as checked out
	OperationLoan OperationMode = iota
	// OperationReturn marks the item as back in stock
	OperationReturn
	// OperationClear resets the flag
	OperationClear
)

// String implements fmt.Stringer
func (o OperationMode) String() string {
	switch o {
	case OperationLoan:
		return "LOAN"
	case OperationReturn:
		return "RETURN"
	case OperationClear:
		return "CLEAR"
	default:
		return fmt.Sprintf("OperationMode(%d)", int(o))
	}
}

// Valid reports whether o is a defined operation
func (o OperationMode) Valid() bool {
	return o >= OperationLoan && o <= OperationClear
}

// ParseOperationMode parses "LOAN", "RETURN" or "CLEAR" (case-insensitive)
func ParseOperationMode(s string) (OperationMode, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "LOAN":
		return OperationLoan, nil
	case "RETURN":
		return OperationReturn, nil
	case "CLEAR":
		return OperationClear, nil
	default:
		return 0, fmt.Errorf("%w: unknown operation %q", ErrInvalidParameter, s)
	}
}

// Flag byte values written to tags
const (
	FlagLoanAFI   byte = 0xC2 // out of stock
	FlagReturnAFI byte = 0x07 // in stock
	FlagClearAFI  byte = 0x00
	FlagLoanEAS   byte = 0xA3 // NXP ICODE RESET EAS
	FlagReturnEAS byte = 0xA2 // NXP ICODE SET EAS
)

// FlagTable maps (SecurityMode, OperationMode) to the byte written to the tag.
// CLEAR under EAS has no agreed value and is configured explicitly.
type FlagTable struct {
	ClearEAS byte
}

// DefaultFlagTable returns the table with CLEAR/EAS resetting to 0x00
func DefaultFlagTable() FlagTable {
	return FlagTable{ClearEAS: FlagClearAFI}
}

// Lookup returns the flag byte for the given combination. Every defined
// combination has a value; undefined enum values fall back to the CLEAR byte
// of the mode.
func (t FlagTable) Lookup(security SecurityMode, op OperationMode) byte {
	if security == SecurityEAS {
		switch op {
		case OperationLoan:
			return FlagLoanEAS
		case OperationReturn:
			return FlagReturnEAS
		default:
			return t.ClearEAS
		}
	}

	switch op {
	case OperationLoan:
		return FlagLoanAFI
	case OperationReturn:
		return FlagReturnAFI
	default:
		return FlagClearAFI
	}
}

// Status is the loan status derived from a tag's AFI byte
type Status int

const (
	StatusUnknown Status = iota
	StatusLoanable
	StatusOnLoan
)

// String implements fmt.Stringer
func (s Status) String() string {
	switch s {
	case StatusLoanable:
		return "LOANABLE"
	case StatusOnLoan:
		return "ON_LOAN"
	case StatusUnknown:
		return "UNKNOWN"
	default:
		return "UNKNOWN"
	}
}

// MarshalText implements encoding.TextMarshaler
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler
func (s *Status) UnmarshalText(text []byte) error {
	for _, status := range []Status{StatusUnknown, StatusLoanable, StatusOnLoan} {
		if status.String() == string(text) {
			*s = status
			return nil
		}
	}
	return fmt.Errorf("%w: status %q", ErrInvalidParameter, text)
}

// ClassifyStatus maps an AFI byte to a loan status. present is false when the
// tag did not report an AFI.
func ClassifyStatus(afi byte, present bool) Status {
	if !present {
		return StatusUnknown
	}
	switch afi {
	case FlagReturnAFI:
		return StatusLoanable
	case FlagLoanAFI:
		return StatusOnLoan
	default:
		return StatusUnknown
	}
}
