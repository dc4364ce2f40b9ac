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
	"log/slog"

	"github.com/ZaparooProject/go-iso15693/server"
	"github.com/spf13/cobra"
)

func newServeCmd(flags *globalFlags) *cobra.Command {
	var listen string
	var mdns bool

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve scan sessions to UI clients",
		Long: `Starts the event server. UI clients start and cancel scans over HTTP
and receive records and outcomes on the /ws websocket stream.`,
		Example: `  # Serve on the default address
  tagctl serve --device /dev/ttyUSB0

  # Serve on a custom port and advertise over mDNS
  tagctl serve --listen :9000 --mdns`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := flags.settings()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("listen") {
				s.ListenAddr = listen
			}
			if cmd.Flags().Changed("mdns") {
				s.MDNS = mdns
			}

			ctx := cmd.Context()
			r, err := openReader(ctx, s)
			if err != nil {
				return err
			}
			defer func() {
				if err := r.Close(); err != nil {
					slog.Warn("failed to close reader", "error", err)
				}
			}()

			controller, err := newController(r, s)
			if err != nil {
				return err
			}
			srv, err := server.New(server.Config{
				Controller: controller,
				Logger:     slog.Default(),
				MDNS:       s.MDNS,
			})
			if err != nil {
				return err
			}

			err = srv.ListenAndServe(ctx, s.ListenAddr)
			slog.Info("event server stopped")
			return err
		},
	}

	cmd.Flags().StringVarP(&listen, "listen", "l", ":8080", "Address to listen on")
	cmd.Flags().BoolVar(&mdns, "mdns", false, "Advertise the server over mDNS")
	return cmd
}
