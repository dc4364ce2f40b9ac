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
	"context"
	"errors"
	"fmt"
)

// MaxBlocks is the largest block count addressable by Read Single Block
const MaxBlocks = 256

// Command operation names used in errors and logs
const (
	OpConnect       = "connect"
	OpGetSystemInfo = "get_system_info"
	OpReadBlock     = "read_block"
	OpWriteFlag     = "write_flag"
	OpSelect        = "select"
	OpCustomCommand = "custom_command"
)

// commandErr converts a driver failure into a TagError, or into a
// cancellation if ctx ended while the command was in flight.
func commandErr(ctx context.Context, op string, err error) error {
	if ctx.Err() != nil {
		return canceledError(context.Cause(ctx))
	}
	return NewCommandError(op, err)
}

// GetSystemInfo runs Get System Information. It must succeed before any block
// read since TotalBlocks bounds the read loop.
func GetSystemInfo(ctx context.Context, tag Tag) (*SystemInfo, error) {
	info, err := tag.GetSystemInfo(ctx)
	if err != nil {
		return nil, commandErr(ctx, OpGetSystemInfo, err)
	}
	if info == nil {
		return nil, NewCommandError(OpGetSystemInfo, errors.New("empty response"))
	}
	if info.TotalBlocks < 0 || info.TotalBlocks > MaxBlocks {
		return nil, NewCommandError(OpGetSystemInfo,
			fmt.Errorf("block count %d out of range", info.TotalBlocks))
	}
	Debugf("system info: %s", info)
	return info, nil
}

// ReadBlock reads block number block of a tag with totalBlocks blocks.
// Out-of-range block numbers are rejected without being issued.
func ReadBlock(ctx context.Context, tag Tag, block, totalBlocks int) ([]byte, error) {
	if block < 0 || block >= totalBlocks || block >= MaxBlocks {
		return nil, fmt.Errorf("%w: block %d of %d", ErrInvalidParameter, block, totalBlocks)
	}

	data, err := tag.ReadSingleBlock(ctx, uint8(block))
	if err != nil {
		return nil, commandErr(ctx, OpReadBlock, fmt.Errorf("block %d: %w", block, err))
	}
	return data, nil
}

// WriteFlag writes flag under the given security mode. Under AFI this is a
// single Write AFI; under EAS the tag is selected and then sent a custom
// command whose command code is the flag byte, with no parameters. A failure
// at either EAS step is reported as one error carrying the flag.
func WriteFlag(ctx context.Context, tag Tag, mode SecurityMode, flag byte) error {
	switch mode {
	case SecurityAFI:
		if err := tag.WriteAFI(ctx, flag); err != nil {
			return flagErr(ctx, flag, fmt.Errorf("write AFI: %w", err))
		}
		return nil
	case SecurityEAS:
		if err := tag.Select(ctx); err != nil {
			return flagErr(ctx, flag, fmt.Errorf("%s: %w", OpSelect, err))
		}
		if _, err := tag.CustomCommand(ctx, flag, nil); err != nil {
			return flagErr(ctx, flag, fmt.Errorf("%s: %w", OpCustomCommand, err))
		}
		return nil
	default:
		return fmt.Errorf("%w: security mode %v", ErrInvalidParameter, mode)
	}
}

func flagErr(ctx context.Context, flag byte, err error) error {
	if ctx.Err() != nil {
		return canceledError(context.Cause(ctx))
	}
	return NewFlagCommandError(OpWriteFlag, flag, err)
}
