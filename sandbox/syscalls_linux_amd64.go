// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

// archSyscalls are the legacy entry points that x86-64 C libraries
// still call alongside the generic ones.
var archSyscalls = []string{
	"open", "stat", "lstat", "access", "readlink", "getdents",
	"pipe", "dup2", "poll", "select", "epoll_wait", "epoll_create",
	"arch_prctl", "time", "getpgrp",
}
