// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
)

// Termination says how a child ended.
type Termination int

const (
	// Exited means the child returned an exit code.
	Exited Termination = iota

	// Signaled means the child was killed by a signal it did not
	// handle, such as SIGSYS from a kernel-enforced restriction.
	Signaled

	// Killed means the child was stopped by Terminate or by
	// cancellation of the launch context.
	Killed
)

func (t Termination) String() string {
	switch t {
	case Exited:
		return "exited"
	case Signaled:
		return "signaled"
	case Killed:
		return "killed"
	}
	return fmt.Sprintf("Termination(%d)", int(t))
}

// ExitStatus is the final status of a child process.
type ExitStatus struct {
	Termination Termination

	// Code is the exit code when Termination is Exited. On Windows it
	// is also set for Killed children.
	Code int

	// Signal is the signal number when Termination is Signaled, or
	// the signal used when Killed on Linux.
	Signal int
}

// Success reports whether the child exited with code zero.
func (s ExitStatus) Success() bool {
	return s.Termination == Exited && s.Code == 0
}

// ShellCode maps the status to the conventional shell exit code: the
// exit code itself, or 128 plus the signal number.
func (s ExitStatus) ShellCode() int {
	if s.Termination != Exited && s.Signal > 0 {
		return 128 + s.Signal
	}
	return s.Code
}

func (s ExitStatus) String() string {
	switch s.Termination {
	case Exited:
		return fmt.Sprintf("exit status %d", s.Code)
	case Signaled:
		return fmt.Sprintf("signal %d", s.Signal)
	default:
		if s.Signal > 0 {
			return fmt.Sprintf("killed (signal %d)", s.Signal)
		}
		return fmt.Sprintf("killed (exit status %d)", s.Code)
	}
}

// ExitError reports a child that did not exit successfully. Run does
// not return it; callers that want a non-zero exit to be an error wrap
// the status with [ExitStatus.Err].
type ExitError struct {
	Status ExitStatus
}

func (e *ExitError) Error() string {
	return "sandboxed process failed: " + e.Status.String()
}

// ExitCode returns the shell exit code of the failed child.
func (e *ExitError) ExitCode() int {
	return e.Status.ShellCode()
}

// Err returns nil for a successful status and an *ExitError otherwise.
func (s ExitStatus) Err() error {
	if s.Success() {
		return nil
	}
	return &ExitError{Status: s}
}

// IsExitError reports whether err wraps an *ExitError and returns its
// shell exit code.
func IsExitError(err error) (int, bool) {
	var exitError *ExitError
	if errors.As(err, &exitError) {
		return exitError.ExitCode(), true
	}
	return 0, false
}
