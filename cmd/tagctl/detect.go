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
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/ZaparooProject/go-iso15693/detection"
	"github.com/spf13/cobra"
)

func newDetectCmd() *cobra.Command {
	var mode string
	var timeout time.Duration
	var ignore []string

	cmd := &cobra.Command{
		Use:   "detect",
		Short: "List attached readers",
		Example: `  # Probe likely USB serial adapters and the default I2C address
  tagctl detect

  # Only look at names and descriptors
  tagctl detect --mode passive`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			m, err := detection.ParseMode(mode)
			if err != nil {
				return err
			}
			opts := detection.DefaultOptions()
			opts.Mode = m
			opts.Timeout = timeout
			opts.IgnorePaths = ignore

			devices, err := detection.DetectAll(cmd.Context(), &opts)
			if err != nil {
				return err
			}
			return printDevices(cmd.OutOrStdout(), devices)
		},
	}

	cmd.Flags().StringVar(&mode, "mode", "safe", "Detection mode: passive, safe or full")
	cmd.Flags().DurationVar(&timeout, "timeout", 5*time.Second, "Detection timeout")
	cmd.Flags().StringSliceVar(&ignore, "ignore", nil, "Device paths to skip")
	return cmd
}

func printDevices(out io.Writer, devices []detection.DeviceInfo) error {
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TRANSPORT\tPATH\tCONFIDENCE\tNAME\tDETAILS")
	for _, d := range devices {
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			d.Transport, d.Path, d.Confidence, d.Name, formatMetadata(d.Metadata))
	}
	return tw.Flush()
}

func formatMetadata(meta map[string]string) string {
	keys := make([]string, 0, len(meta))
	for k, v := range meta {
		if v != "" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + meta[k]
	}
	return strings.Join(parts, " ")
}
