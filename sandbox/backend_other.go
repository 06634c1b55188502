// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux && !windows

package sandbox

import (
	"context"
	"fmt"
	"runtime"
)

// unsupportedBackend refuses every launch, so the sandbox fails closed
// on platforms without a restriction mechanism.
type unsupportedBackend struct{}

func newBackend(Config) (backend, error) {
	return unsupportedBackend{}, nil
}

func (unsupportedBackend) name() string {
	return "unsupported"
}

func (unsupportedBackend) check(*LaunchConfig) error {
	return nil
}

func (unsupportedBackend) start(context.Context, *startRequest) (process, error) {
	return nil, newError(KindRestriction, "start", fmt.Errorf("%w (%s)", ErrUnsupportedPlatform, runtime.GOOS))
}

// DetectCapabilities reports that no restriction backend exists.
func DetectCapabilities() *Capabilities {
	caps := newCapabilities()
	caps.Reason = fmt.Sprintf("no sandbox backend for %s", runtime.GOOS)
	return caps
}
