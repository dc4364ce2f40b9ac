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

package main

import (
	"bytes"
	"errors"
	"testing"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/detection"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransportForPath(t *testing.T) {
	t.Parallel()

	tests := map[string]string{
		"/dev/ttyUSB0":    "uart",
		"COM3":            "uart",
		"/dev/i2c-1":      "i2c",
		"/dev/i2c-1:0x24": "i2c",
	}
	for path, want := range tests {
		assert.Equal(t, want, transportForPath(path), path)
	}
	assert.Equal(t, "/dev/i2c-1", i2cBus("/dev/i2c-1:0x24"))
	assert.Equal(t, "/dev/i2c-1", i2cBus("/dev/i2c-1"))
}

func TestNewTransport_Errors(t *testing.T) {
	t.Parallel()

	_, err := newTransport("uart", "")
	require.Error(t, err)

	_, err = newTransport("spi", "/dev/spidev0.0")
	require.ErrorContains(t, err, "unsupported transport type")
}

func TestPrintOutcome(t *testing.T) {
	t.Parallel()

	record := iso15693.ScanRecord{RawBarcode: "CD34", Status: iso15693.StatusLoanable}
	var buf bytes.Buffer
	require.NoError(t, printOutcome(&buf, iso15693.Outcome{
		Kind:    iso15693.KindNone,
		Message: iso15693.MessageReadComplete,
		Record:  &record,
	}))
	assert.Equal(t, "CD34 ::: LOANABLE\nComplete read NFC Data.\n", buf.String())

	buf.Reset()
	require.NoError(t, printOutcome(&buf, iso15693.Outcome{Kind: iso15693.KindCanceled, Silent: true}))
	assert.Empty(t, buf.String())

	err := printOutcome(&buf, iso15693.Outcome{
		Kind:    iso15693.KindParseError,
		Message: iso15693.MessageBarcodeError,
		Err:     errors.New("no segments"),
	})
	require.EqualError(t, err, "ParseError: barcode error")
}

func TestPrintDevices(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, printDevices(&buf, []detection.DeviceInfo{{
		Transport:  "uart",
		Path:       "/dev/ttyUSB0",
		Name:       "USB Serial (/dev/ttyUSB0)",
		Confidence: detection.High,
		Metadata:   map[string]string{"vid_pid": "1A86:7523", "serial": "", "adapter": "CH340"},
	}}))

	out := buf.String()
	assert.Contains(t, out, "TRANSPORT")
	assert.Contains(t, out, "/dev/ttyUSB0")
	assert.Contains(t, out, "high")
	assert.Contains(t, out, "adapter=CH340 vid_pid=1A86:7523")
}

func TestRootCmd_Subcommands(t *testing.T) {
	t.Parallel()

	root := newRootCmd()
	names := make([]string, 0, len(root.Commands()))
	for _, c := range root.Commands() {
		names = append(names, c.Name())
	}
	assert.ElementsMatch(t, []string{"read", "write", "serve", "detect"}, names)

	for _, name := range []string{"config", "device", "debug"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(name), name)
	}
}

func TestClearEASWarning(t *testing.T) {
	t.Parallel()

	clearEAS := iso15693.ScanRequest{
		Kind:      iso15693.ScanWrite,
		Operation: iso15693.OperationClear,
		Security:  iso15693.SecurityEAS,
	}

	cfg := iso15693.DefaultConfig()
	warning := clearEASWarning(cfg, clearEAS)
	assert.Contains(t, warning, "0x00")
	assert.Contains(t, warning, "NFC_CLEAR_EAS_BYTE")

	cfg.ClearEASByte = 0xA2
	assert.Empty(t, clearEASWarning(cfg, clearEAS))

	clearAFI := clearEAS
	clearAFI.Security = iso15693.SecurityAFI
	assert.Empty(t, clearEASWarning(iso15693.DefaultConfig(), clearAFI))

	loanEAS := clearEAS
	loanEAS.Operation = iso15693.OperationLoan
	assert.Empty(t, clearEASWarning(iso15693.DefaultConfig(), loanEAS))
}

func TestWriteCmd_HelpMentionsClearEASByte(t *testing.T) {
	t.Parallel()

	cmd := newWriteCmd(&globalFlags{})
	assert.Contains(t, cmd.Long, "clear_eas_byte")
	assert.Contains(t, cmd.Long, "NFC_CLEAR_EAS_BYTE")
}
