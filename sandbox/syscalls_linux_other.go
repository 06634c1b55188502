// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux && !amd64

package sandbox

// archSyscalls is empty on architectures that only have the generic
// syscall table.
var archSyscalls []string
