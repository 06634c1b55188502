// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"fmt"

	"github.com/landlock-lsm/go-landlock/landlock"
	ll "github.com/landlock-lsm/go-landlock/landlock/syscall"
)

// minLandlockABI is the oldest Landlock ABI that still gives
// filesystem containment. Anything older means the LSM is absent.
const minLandlockABI = 1

// landlockABI returns the kernel's Landlock ABI version.
func landlockABI() (int, error) {
	version, err := ll.LandlockGetABIVersion()
	if err != nil {
		return 0, fmt.Errorf("landlock unavailable: %w", err)
	}
	return version, nil
}

// restrictFilesystem confines every thread of the calling process to
// reading and executing paths. Every other filesystem access is denied.
// On kernels with Landlock ABI 4 or later, TCP bind and connect are
// denied as well. Older ABIs are used as far as they go, but never below
// minLandlockABI.
func restrictFilesystem(paths []string) error {
	version, err := landlockABI()
	if err != nil {
		return err
	}
	if version < minLandlockABI {
		return fmt.Errorf("landlock ABI %d is below the required %d", version, minLandlockABI)
	}
	readExecute := landlock.AccessFSSet(ll.AccessFSExecute | ll.AccessFSReadFile)
	if err := landlock.V4.BestEffort().Restrict(landlock.PathAccess(readExecute, paths...)); err != nil {
		return fmt.Errorf("applying landlock ruleset: %w", err)
	}
	return nil
}
