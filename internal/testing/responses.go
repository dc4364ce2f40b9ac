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

package testing

import "github.com/ZaparooProject/go-iso15693/internal/wire"

// BuildFirmwareVersionResponse creates a GetFirmwareVersion response:
// IC, version, revision, supported protocols (bit 0 = ISO15693)
func BuildFirmwareVersionResponse() []byte {
	return []byte{wire.CmdGetFirmwareVersion + 1, 0x15, 0x01, 0x03, 0x01}
}

// BuildRFFieldResponse creates an RFField response
func BuildRFFieldResponse() []byte {
	return []byte{wire.CmdRFField + 1}
}

// BuildInventoryResponse creates an Inventory response for the given UIDs
func BuildInventoryResponse(uids ...[]byte) []byte {
	return append([]byte{wire.CmdInventory + 1}, wire.MarshalInventory(uids)...)
}

// BuildNoTagResponse creates an empty Inventory response
func BuildNoTagResponse() []byte {
	return BuildInventoryResponse()
}

// BuildTransceiveResponse wraps a tag response in a successful Transceive response
func BuildTransceiveResponse(tagResponse []byte) []byte {
	response := []byte{wire.CmdTransceive + 1, wire.StatusOK}
	return append(response, tagResponse...)
}

// BuildTransceiveStatus creates a Transceive response carrying only a status
func BuildTransceiveStatus(status byte) []byte {
	return []byte{wire.CmdTransceive + 1, status}
}
