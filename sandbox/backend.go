// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"log/slog"

	"github.com/grackle-zero/grackle/lib/channel"
)

// backend is the platform restriction mechanism. Exactly one
// implementation is compiled in.
type backend interface {
	// name identifies the mechanism in logs.
	name() string

	// check rejects configurations the platform cannot honor. It runs
	// before any resource is acquired.
	check(launch *LaunchConfig) error

	// start creates the child, installs every restriction, and returns
	// only once the restrictions are confirmed and the target program
	// has been allowed to run. On error no unrestricted code ran and
	// any partially created process has been reaped.
	start(ctx context.Context, request *startRequest) (process, error)
}

// startRequest carries a validated launch to the backend.
type startRequest struct {
	executable string
	argv       []string
	dir        string
	env        map[string]string
	table      *channel.Table
	logger     *slog.Logger
}

// process is a running child as seen by the platform layer.
type process interface {
	pid() int

	// wait blocks until the child exits and reaps it. It is called at
	// most once.
	wait() (ExitStatus, error)

	// exited reports without blocking whether the child has exited.
	// It does not reap.
	exited() (bool, error)

	// kill forcibly stops the child. Killing an exited child is not an
	// error. A child stopped this way reports Killed from wait.
	kill() error
}
