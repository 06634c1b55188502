// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "runtime"

// Capabilities describes the restriction features available on this
// system.
type Capabilities struct {
	// Platform is GOOS/GOARCH.
	Platform string

	// LandlockABI is the kernel's Landlock ABI version, or 0.
	LandlockABI int

	// LandlockError explains a zero LandlockABI.
	LandlockError string

	// SeccompSupported is true if seccomp filters can be loaded.
	SeccompSupported bool

	// NetworkRestricted is true if the filesystem LSM also denies TCP
	// bind and connect (Landlock ABI 4 or later). Sockets are denied by
	// the syscall filter regardless.
	NetworkRestricted bool

	// AppContainerSupported is true on Windows versions that provide
	// AppContainer profiles.
	AppContainerSupported bool

	// Reason explains why sandboxing cannot run. It is empty when it
	// can.
	Reason string
}

func newCapabilities() *Capabilities {
	return &Capabilities{Platform: runtime.GOOS + "/" + runtime.GOARCH}
}

// CanRunSandbox returns true if every restriction the backend requires
// is available. Launching fails closed when it is false.
func (c *Capabilities) CanRunSandbox() bool {
	return c.Reason == ""
}

// SkipReason returns a human-readable reason why sandboxing is not
// available, or the empty string if it is.
func (c *Capabilities) SkipReason() string {
	return c.Reason
}
