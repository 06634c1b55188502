// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package channel

import (
	"fmt"
	"os"
)

// Inherit resolves a KeepInChild slot. Only the standard streams have a
// meaning on Windows; other slot numbers are not descriptors.
func Inherit(slot int) (*os.File, bool, error) {
	var file *os.File
	switch slot {
	case 0:
		file = os.Stdin
	case 1:
		file = os.Stdout
	case 2:
		file = os.Stderr
	default:
		return nil, false, fmt.Errorf("slot %d cannot be inherited on windows", slot)
	}
	if file == nil {
		return nil, false, fmt.Errorf("standard stream %d is not available", slot)
	}
	return file, false, nil
}
