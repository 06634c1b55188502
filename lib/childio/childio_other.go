// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !unix && !windows

package childio

import (
	"fmt"
	"os"
)

func openSlot(slot int) (*os.File, error) {
	return nil, fmt.Errorf("slot %d: %w", slot, ErrNotProvided)
}
