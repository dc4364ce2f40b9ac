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

package server

import (
	"fmt"
	"os"

	"github.com/grandcat/zeroconf"
)

// ServiceType is the DNS-SD service type the agent advertises
const ServiceType = "_iso15693-agent._tcp"

// advertise registers the agent on the local network for port
func advertise(instance string, port int) (*zeroconf.Server, error) {
	if instance == "" {
		host, err := os.Hostname()
		if err != nil || host == "" {
			host = "tagctl"
		}
		instance = "ISO15693 agent on " + host
	}

	txt := []string{"version=1", "path=/ws"}
	srv, err := zeroconf.Register(instance, ServiceType, "local.", port, txt, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to register mDNS service: %w", err)
	}
	return srv, nil
}
