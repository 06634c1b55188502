// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"math"
	"slices"

	seccomp "github.com/elastic/go-seccomp-bpf"
	"github.com/elastic/go-seccomp-bpf/arch"
	"golang.org/x/sys/unix"
)

// baseSyscalls is what a dynamically linked program, the Go runtime and
// the C library need to start, allocate, run threads, and use the
// descriptors they were given. Nothing here creates sockets, changes
// credentials, mounts, traces, or signals other processes. ioctl and
// clone are allowed separately, with argument rules.
var baseSyscalls = []string{
	// Descriptor I/O.
	"read", "write", "readv", "writev", "pread64", "pwrite64", "preadv", "pwritev",
	"close", "close_range", "lseek", "fcntl", "dup", "dup3",
	"fsync", "fdatasync",

	// Path operations. Landlock decides which paths succeed.
	"openat", "newfstatat", "fstat", "statx", "readlinkat", "faccessat", "faccessat2",
	"getdents64", "getcwd", "chdir", "fchdir", "fadvise64",

	// Memory.
	"mmap", "munmap", "mprotect", "mremap", "madvise", "brk", "mincore", "msync",

	// Signals within the process.
	"rt_sigaction", "rt_sigprocmask", "rt_sigreturn", "rt_sigpending",
	"rt_sigtimedwait", "rt_sigsuspend", "sigaltstack", "tgkill", "tkill",

	// Threads and synchronization.
	"futex", "futex_waitv", "set_tid_address", "set_robust_list", "get_robust_list",
	"rseq", "membarrier", "clone3", "sched_yield", "sched_getaffinity", "getcpu",

	// Process lifecycle.
	"execve", "execveat", "exit", "exit_group", "wait4", "waitid", "restart_syscall",

	// Identity queries.
	"getpid", "gettid", "getppid", "getpgid", "getuid", "geteuid", "getgid", "getegid",
	"getresuid", "getresgid", "getgroups", "capget",

	// Time.
	"nanosleep", "clock_gettime", "clock_getres", "clock_nanosleep", "gettimeofday",
	"timer_create", "timer_settime", "timer_gettime", "timer_delete", "setitimer", "getitimer",

	// Limits and system information.
	"prlimit64", "getrlimit", "getrusage", "getrandom", "uname", "sysinfo", "umask",

	// Readiness and in-process wakeups.
	"pipe2", "eventfd2", "epoll_create1", "epoll_ctl", "epoll_pwait", "epoll_pwait2",
	"ppoll", "pselect6",
}

// allowedSyscalls returns the allow-list for the running architecture
// and the names dropped because this architecture does not have them.
func allowedSyscalls() (allowed, unknown []string, err error) {
	info, err := arch.GetInfo("")
	if err != nil {
		return nil, nil, err
	}
	candidates := append(slices.Clone(baseSyscalls), archSyscalls...)
	for _, name := range candidates {
		if _, ok := info.SyscallNames[name]; !ok {
			unknown = append(unknown, name)
			continue
		}
		if !slices.Contains(allowed, name) {
			allowed = append(allowed, name)
		}
	}
	return allowed, unknown, nil
}

// cloneNamespaceFlags are the clone flags that create namespaces.
const cloneNamespaceFlags = unix.CLONE_NEWNS | unix.CLONE_NEWCGROUP | unix.CLONE_NEWUTS |
	unix.CLONE_NEWIPC | unix.CLONE_NEWUSER | unix.CLONE_NEWPID | unix.CLONE_NEWNET

// conditionalSyscalls are allowed only when one of their argument rule
// sets matches. Rule sets for the same name are alternatives; the
// conditions inside one set must all hold.
//
// The kernel truncates the ioctl request to 32 bits, so a request with
// junk in the upper word must not slip past the comparisons. The first
// set takes zero-extended requests, the second takes sign-extended
// ones, whose low word has the top bit set and so can never be TIOCSTI
// or TIOCLINUX.
//
// clone3 passes its flags in memory, where a filter cannot see them;
// it stays unconditionally allowed because the C library only falls
// back to clone on ENOSYS.
func conditionalSyscalls() []seccomp.NameWithConditions {
	return []seccomp.NameWithConditions{
		{Name: "ioctl", Conditions: seccomp.ArgumentConditions{
			{Argument: 1, Operation: seccomp.LessOrEqual, Value: math.MaxUint32},
			{Argument: 1, Operation: seccomp.NotEqual, Value: unix.TIOCSTI},
			{Argument: 1, Operation: seccomp.NotEqual, Value: unix.TIOCLINUX},
		}},
		{Name: "ioctl", Conditions: seccomp.ArgumentConditions{
			{Argument: 1, Operation: seccomp.GreaterOrEqual, Value: 0xffffffff80000000},
		}},
		{Name: "clone", Conditions: seccomp.ArgumentConditions{
			{Argument: 0, Operation: seccomp.BitsNotSet, Value: cloneNamespaceFlags},
		}},
	}
}
