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

/*
Package iso15693 controls ISO15693 (NFC-V) tag scanning sessions for library
loan desks.

A session polls for tags through a platform Driver, insists on exactly one tag
in the field (several tags trigger an advisory and a retry after a short
backoff), connects, and runs a fixed command pipeline:

  - barcode read: Get System Information, every memory block in order, Get
    System Information again for the AFI status, then the barcode is cut out
    of the NUL separated block data
  - serial read: the tag UID, reversed and hex encoded
  - NDEF read: an NFC Forum Type 5 NDEF text or URI record
  - write: the loan status flag, either as the AFI byte or as an NXP EAS
    custom command

Commands within a session never overlap. Every session ends with exactly one
Outcome; successful reads also append a ScanRecord to the controller's list.

Basic Usage:

	import (
	    "github.com/ZaparooProject/go-iso15693"
	    "github.com/ZaparooProject/go-iso15693/reader"
	    "github.com/ZaparooProject/go-iso15693/transport/uart"
	)

	transport, err := uart.New("/dev/ttyUSB0")
	if err != nil {
	    log.Fatal(err)
	}
	defer transport.Close()

	driver, err := reader.New(transport)
	if err != nil {
	    log.Fatal(err)
	}

	controller, err := iso15693.NewController(driver,
	    iso15693.WithReadMode(iso15693.ReadModeBarcode),
	)
	if err != nil {
	    log.Fatal(err)
	}

	controller.OnRecordAdded(func(index int, record iso15693.ScanRecord) {
	    fmt.Println(index, record)
	})

	session, err := controller.BeginScan(ctx, controller.NewReadRequest())
	if err != nil {
	    log.Fatal(err)
	}
	outcome, _ := session.Wait(ctx)
	fmt.Println(outcome)

Writing a loan flag:

	req := controller.NewWriteRequest(iso15693.OperationLoan)
	session, err := controller.BeginScan(ctx, req)

Debug output is off by default and can be enabled with SetDebugEnabled.
*/
package iso15693
