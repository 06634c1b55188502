// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build unix

package childio

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

func openSlot(slot int) (*os.File, error) {
	if _, err := unix.FcntlInt(uintptr(slot), unix.F_GETFD, 0); err != nil {
		return nil, fmt.Errorf("slot %d: %w: %v", slot, ErrNotProvided, err)
	}
	unix.CloseOnExec(slot)
	return os.NewFile(uintptr(slot), fmt.Sprintf("channel-%d", slot)), nil
}
