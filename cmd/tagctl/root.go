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
	"os"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/internal/config"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	device     string
	debug      bool
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	cmd := &cobra.Command{
		Use:   "tagctl",
		Short: "Read and write ISO15693 library tags",
		Long: `tagctl drives an ISO15693 bridge reader over UART or I2C.

It reads barcodes, serial numbers or NDEF text from library item tags,
writes loan status through AFI or EAS, and can serve scan sessions to UI
clients over HTTP and websockets.`,
		SilenceUsage: true,
		PersistentPreRun: func(*cobra.Command, []string) {
			// Load .env file if present (ignore errors)
			_ = godotenv.Load()

			level := slog.LevelInfo
			if flags.debug {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
			slog.SetDefault(logger)
			iso15693.SetLogger(logger)
			iso15693.SetDebugEnabled(flags.debug)
		},
	}

	cmd.PersistentFlags().StringVarP(&flags.configPath, "config", "c", "", "YAML config file")
	cmd.PersistentFlags().StringVarP(&flags.device, "device", "d", "",
		"Reader device path (e.g. /dev/ttyUSB0, COM3 or /dev/i2c-1); empty auto-detects")
	cmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "Enable debug output")

	cmd.AddCommand(
		newReadCmd(flags),
		newWriteCmd(flags),
		newServeCmd(flags),
		newDetectCmd(),
	)
	return cmd
}

// settings loads the config file and environment, then applies flags
func (f *globalFlags) settings() (*config.Settings, error) {
	s, err := config.Load(f.configPath)
	if err != nil {
		return nil, err
	}
	if f.device != "" {
		s.Device = f.device
		s.Transport = transportForPath(f.device)
	}
	return s, nil
}
