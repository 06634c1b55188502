// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package childio

import (
	"fmt"
	"os"

	"golang.org/x/sys/windows"

	"github.com/grackle-zero/grackle/lib/handletable"
)

func openSlot(slot int) (*os.File, error) {
	entries, err := handletable.Parse(os.Getenv(handletable.EnvName))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", handletable.EnvName, err)
	}
	value, ok := handletable.Lookup(entries, uint32(slot))
	if !ok {
		return nil, fmt.Errorf("slot %d: %w", slot, ErrNotProvided)
	}
	handle := windows.Handle(value)
	if _, err := windows.GetFileType(handle); err != nil {
		return nil, fmt.Errorf("slot %d: handle %#x: %w: %v", slot, value, ErrNotProvided, err)
	}
	if err := windows.SetHandleInformation(handle, windows.HANDLE_FLAG_INHERIT, 0); err != nil {
		return nil, fmt.Errorf("slot %d: clearing inherit flag: %w", slot, err)
	}
	return os.NewFile(uintptr(handle), fmt.Sprintf("channel-%d", slot)), nil
}
