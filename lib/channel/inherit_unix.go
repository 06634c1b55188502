// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package channel

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// Inherit resolves a KeepInChild slot to the parent's descriptor with
// the same number. The standard streams are shared with the process;
// any other descriptor is duplicated so the table can close its copy.
func Inherit(slot int) (*os.File, bool, error) {
	var stat unix.Stat_t
	if err := unix.Fstat(slot, &stat); err != nil {
		return nil, false, fmt.Errorf("descriptor %d is not open in the parent: %w", slot, err)
	}
	switch slot {
	case 0:
		return os.Stdin, false, nil
	case 1:
		return os.Stdout, false, nil
	case 2:
		return os.Stderr, false, nil
	}
	duplicate, err := unix.FcntlInt(uintptr(slot), unix.F_DUPFD_CLOEXEC, 0)
	if err != nil {
		return nil, false, fmt.Errorf("duplicating descriptor %d: %w", slot, err)
	}
	return os.NewFile(uintptr(duplicate), fmt.Sprintf("inherited-%d", slot)), true, nil
}
