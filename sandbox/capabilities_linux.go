// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"errors"
	"fmt"

	seccomp "github.com/elastic/go-seccomp-bpf"
)

// DetectCapabilities checks Landlock and seccomp support.
func DetectCapabilities() *Capabilities {
	caps := newCapabilities()

	version, err := landlockABI()
	if err != nil {
		caps.LandlockError = err.Error()
	} else {
		caps.LandlockABI = version
		caps.NetworkRestricted = version >= 4
	}
	caps.SeccompSupported = seccomp.Supported()

	switch {
	case caps.LandlockABI < minLandlockABI:
		caps.Reason = "landlock is not enabled in this kernel (need Linux 5.13+ with lsm=landlock)"
		if caps.LandlockError != "" {
			caps.Reason += ": " + caps.LandlockError
		}
	case !caps.SeccompSupported:
		caps.Reason = "seccomp filters are not supported by this kernel"
	}
	return caps
}

// checkKernelSupport fails unless every restriction can be installed.
func checkKernelSupport() error {
	caps := DetectCapabilities()
	if !caps.CanRunSandbox() {
		return errors.New(caps.SkipReason())
	}
	if _, _, err := allowedSyscalls(); err != nil {
		return fmt.Errorf("seccomp architecture: %w", err)
	}
	return nil
}
