// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package probe

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"unsafe"

	"golang.org/x/sys/unix"
)

// Each of these reaches a kernel permission check that a working
// sandbox answers with EPERM before the call does anything. Any other
// outcome, including an ordinary error from further along, means the
// call got past the restrictions.
func platformBattery() []Probe {
	return []Probe{
		{
			Name:          "terminal-tiocsti",
			Description:   "Push a byte into a terminal's input queue with TIOCSTI",
			Category:      "terminal",
			Severity:      "high",
			ExpectBlocked: true,
			DefaultTarget: "0",
			Run: func(ctx context.Context, target string) error {
				fd, err := strconv.Atoi(target)
				if err != nil {
					return fmt.Errorf("target %q is not a descriptor number", target)
				}
				input := byte(0)
				_, _, errno := unix.Syscall(unix.SYS_IOCTL, uintptr(fd), unix.TIOCSTI, uintptr(unsafe.Pointer(&input)))
				return permissionOnly(errno)
			},
		},
		{
			Name:          "privilege-setuid",
			Description:   "Call setuid, even to the current user",
			Category:      "privilege",
			Severity:      "critical",
			ExpectBlocked: true,
			Run: func(ctx context.Context, target string) error {
				_, _, errno := unix.RawSyscall(unix.SYS_SETUID, uintptr(os.Getuid()), 0, 0)
				return permissionOnly(errno)
			},
		},
		{
			Name:          "privilege-mount",
			Description:   "Mount a tmpfs",
			Category:      "privilege",
			Severity:      "critical",
			ExpectBlocked: true,
			DefaultTarget: "/nonexistent/grackle-mount",
			Run: func(ctx context.Context, target string) error {
				return permissionOnly(unix.Mount("none", target, "tmpfs", 0, ""))
			},
		},
		{
			Name:          "process-host-pids",
			Description:   "Signal another process (the launcher by default)",
			Category:      "process",
			Severity:      "high",
			ExpectBlocked: true,
			Run: func(ctx context.Context, target string) error {
				pid, err := targetPID(target)
				if err != nil {
					return err
				}
				return permissionOnly(unix.Kill(pid, 0))
			},
		},
		{
			Name:          "process-ptrace",
			Description:   "Read another process's memory with ptrace",
			Category:      "process",
			Severity:      "critical",
			ExpectBlocked: true,
			Run: func(ctx context.Context, target string) error {
				pid, err := targetPID(target)
				if err != nil {
					return err
				}
				_, _, errno := unix.Syscall6(unix.SYS_PTRACE, unix.PTRACE_PEEKDATA, uintptr(pid), 0, 0, 0, 0)
				return permissionOnly(errno)
			},
		},
	}
}

// permissionOnly keeps permission failures and treats everything else
// as having reached the operation.
func permissionOnly(err error) error {
	var errno unix.Errno
	if errors.As(err, &errno) && errno == 0 {
		return nil
	}
	if errors.Is(err, unix.EPERM) || errors.Is(err, unix.EACCES) {
		return err
	}
	return nil
}

func targetPID(target string) (int, error) {
	if target == "" {
		return os.Getppid(), nil
	}
	pid, err := strconv.Atoi(target)
	if err != nil {
		return 0, fmt.Errorf("target %q is not a process ID", target)
	}
	return pid, nil
}
