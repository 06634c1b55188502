// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import "fmt"

// State is the lifecycle phase of a launch. States only move forward.
type State int

const (
	// StateConfiguring: the launch configuration is being validated and
	// channels are being created. No process exists.
	StateConfiguring State = iota

	// StateSpawning: the OS process exists but the target program has
	// not started running.
	StateSpawning

	// StateRestrictionApplied: every restriction is in force and
	// confirmed. The target program is now allowed to run.
	StateRestrictionApplied

	// StateCommunicating: the handler is exchanging data with the child.
	StateCommunicating

	// StateExited: the child has been reaped and its status is known.
	StateExited
)

func (s State) String() string {
	switch s {
	case StateConfiguring:
		return "configuring"
	case StateSpawning:
		return "spawning"
	case StateRestrictionApplied:
		return "restriction-applied"
	case StateCommunicating:
		return "communicating"
	case StateExited:
		return "exited"
	}
	return fmt.Sprintf("State(%d)", int(s))
}
