// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package childio is used by programs running inside the sandbox to
// open the channels their launcher configured.
//
//	in, err := childio.Open(3)
//	conn := packet.NewConn(in, out, 0)
//
// On Linux a slot number is the descriptor number. On Windows the
// handle is looked up in the SANDBOX_HANDLES table, with slots 0, 1 and
// 2 mapping to the standard handles.
package childio

import (
	"errors"
	"fmt"
	"os"
)

// ErrNotProvided is returned when the launcher did not configure the
// requested slot.
var ErrNotProvided = errors.New("channel slot not provided by the launcher")

// Open returns the file for slot. Each slot should be opened once;
// closing the returned file closes the channel.
func Open(slot int) (*os.File, error) {
	if slot < 0 {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrNotProvided)
	}
	switch slot {
	case 0:
		return standard(os.Stdin, slot)
	case 1:
		return standard(os.Stdout, slot)
	case 2:
		return standard(os.Stderr, slot)
	}
	return openSlot(slot)
}

func standard(file *os.File, slot int) (*os.File, error) {
	if file == nil {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrNotProvided)
	}
	if _, err := file.Stat(); err != nil {
		return nil, fmt.Errorf("slot %d: %w: %v", slot, ErrNotProvided, err)
	}
	return file, nil
}
