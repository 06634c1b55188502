// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package sandbox runs an untrusted program with operating system
// restrictions in force from its first instruction, and connects it to
// the launching process through a fixed set of byte-stream channels.
//
// A launch is described by a [LaunchConfig]: the program, its
// arguments, its complete environment, and a [channel.Set] assigning a
// mode to each descriptor slot. [Sandbox.Run] validates the
// configuration, creates the pipes, starts the child under restriction,
// calls the [Handler] exactly once with a [Child], closes every stream
// the handler did not take, and waits for the child to exit. Both the
// handler's error and the exit status are returned.
//
// Each launch moves through [State] values in order: configuring,
// spawning, restriction-applied, communicating, exited. The target
// program is never allowed to run before every restriction is
// confirmed. If any restriction cannot be installed, the launch fails
// with a [KindRestriction] error and the child is killed and reaped.
//
// On Linux the restrictions are a Landlock ruleset that allows only
// reading and executing the program and its shared libraries, and a
// seccomp filter that allows a fixed list of system calls (no sockets,
// no credential changes). They are installed by a helper: the launching
// binary re-executed with an environment marker, which must call
// [MaybeRunHelper] at the top of main. The helper restricts itself,
// confirms over a status pipe, and execs the target.
//
// On Windows the child runs under a restricted token inside an
// AppContainer, in a kill-on-close job object. Inherited handles for
// slots other than 0-2 are announced in the SANDBOX_HANDLES environment
// variable (see package handletable); children read them with package
// childio.
//
// Errors carry a [Kind] and match the sentinels [ErrConfiguration],
// [ErrResource], [ErrRestriction], and [ErrCommunication] with
// errors.Is. Packet framing errors come from package packet.
package sandbox
