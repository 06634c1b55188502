// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix && !windows

package channel

import (
	"fmt"
	"os"
	"runtime"
)

// Inherit is not supported on this platform.
func Inherit(slot int) (*os.File, bool, error) {
	return nil, false, fmt.Errorf("inheriting slot %d is not supported on %s", slot, runtime.GOOS)
}
