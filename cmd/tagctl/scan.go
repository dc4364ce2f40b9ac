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
	"context"
	"fmt"
	"io"
	"log/slog"

	iso15693 "github.com/ZaparooProject/go-iso15693"
	"github.com/ZaparooProject/go-iso15693/internal/config"
	"github.com/ZaparooProject/go-iso15693/internal/wire"
	"github.com/spf13/cobra"
)

func newReadCmd(flags *globalFlags) *cobra.Command {
	var readMode string

	cmd := &cobra.Command{
		Use:   "read",
		Short: "Read one tag and print its record",
		Example: `  # Read the barcode from the next tag
  tagctl read --device /dev/ttyUSB0

  # Use the tag UID instead of tag memory
  tagctl read --read-mode serial`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := flags.settings()
			if err != nil {
				return err
			}
			if readMode != "" {
				mode, err := iso15693.ParseReadMode(readMode)
				if err != nil {
					return err
				}
				s.Session.ReadMode = mode
			}

			return runScan(cmd.Context(), cmd.OutOrStdout(), s, func(c *iso15693.Controller) iso15693.ScanRequest {
				return c.NewReadRequest()
			})
		},
	}

	cmd.Flags().StringVar(&readMode, "read-mode", "", "Read pipeline: barcode, serial or ndef (default from config)")
	return cmd
}

func newWriteCmd(flags *globalFlags) *cobra.Command {
	var op, security string

	cmd := &cobra.Command{
		Use:   "write",
		Short: "Write loan status to one tag",
		Long: `Write loan status to one tag.

Under AFI the status is written as the tag's AFI byte. Under EAS, loan and
return send the NXP ICODE EAS custom commands. Clear under EAS sends the
clear_eas_byte setting (NFC_CLEAR_EAS_BYTE) as a custom command code. It
defaults to 0x00, which tags reject, so set it to the command your tags
expect before using --op clear --security eas.`,
		Example: `  # Check an item out
  tagctl write --op loan

  # Check an item back in using EAS
  tagctl write --op return --security eas`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := flags.settings()
			if err != nil {
				return err
			}
			operation, err := iso15693.ParseOperationMode(op)
			if err != nil {
				return err
			}
			var mode *iso15693.SecurityMode
			if security != "" {
				m, err := iso15693.ParseSecurityMode(security)
				if err != nil {
					return err
				}
				mode = &m
			}

			return runScan(cmd.Context(), cmd.OutOrStdout(), s, func(c *iso15693.Controller) iso15693.ScanRequest {
				req := c.NewWriteRequest(operation)
				if mode != nil {
					req.Security = *mode
				}
				if warning := clearEASWarning(c.Config(), req); warning != "" {
					slog.Warn(warning)
				}
				return req
			})
		},
	}

	cmd.Flags().StringVar(&op, "op", "", "Operation: loan, return or clear")
	cmd.Flags().StringVar(&security, "security", "", "Security mode: afi or eas (default from config)")
	_ = cmd.MarkFlagRequired("op")
	return cmd
}

// clearEASWarning explains why a clear under EAS will be rejected by the
// tag, or returns "" when the configured byte is a custom command code.
func clearEASWarning(cfg *iso15693.Config, req iso15693.ScanRequest) string {
	if req.Security != iso15693.SecurityEAS || req.Operation != iso15693.OperationClear {
		return ""
	}
	code := cfg.ClearEASByte
	if code >= wire.CustomCommandMin && code <= wire.CustomCommandMax {
		return ""
	}
	return fmt.Sprintf("clear under EAS sends %s, which is not a custom command code; set clear_eas_byte or %s",
		iso15693.FormatFlag(code), config.EnvClearEASByte)
}

// runScan opens the reader, runs one session and prints its outcome
func runScan(
	ctx context.Context,
	out io.Writer,
	s *config.Settings,
	request func(*iso15693.Controller) iso15693.ScanRequest,
) error {
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

	session, err := controller.BeginScan(ctx, request(controller))
	if err != nil {
		return err
	}
	_, _ = fmt.Fprintln(out, s.Session.AlertMessage)

	outcome, err := session.Wait(ctx)
	if err != nil {
		controller.Cancel()
		return err
	}
	return printOutcome(out, outcome)
}

// printOutcome writes the outcome for a terminal user. Silent outcomes
// (user cancellation) print nothing and are not errors.
func printOutcome(out io.Writer, outcome iso15693.Outcome) error {
	switch {
	case outcome.Success():
		if outcome.Record != nil {
			_, _ = fmt.Fprintln(out, outcome.Record.String())
		}
		_, _ = fmt.Fprintln(out, outcome.Message)
		return nil
	case outcome.Silent:
		return nil
	default:
		return fmt.Errorf("%s: %s", outcome.Kind, outcome.Message)
	}
}
