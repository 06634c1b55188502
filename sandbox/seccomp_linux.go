// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"fmt"

	seccomp "github.com/elastic/go-seccomp-bpf"
)

// syscallPolicy allows names, plus the conditionalSyscalls calls whose
// arguments pass their rules, and fails everything else with EPERM, so
// a denied call is an ordinary error in the child rather than a fatal
// signal.
func syscallPolicy(names []string) *seccomp.Policy {
	return &seccomp.Policy{
		DefaultAction: seccomp.ActionErrno,
		Syscalls: []seccomp.SyscallGroup{{
			Action:             seccomp.ActionAllow,
			Names:              names,
			NamesWithCondtions: conditionalSyscalls(),
		}},
	}
}

// installSyscallFilter loads the filter on every thread of the calling
// process. It also sets no_new_privs.
func installSyscallFilter(names []string) error {
	if len(names) == 0 {
		return fmt.Errorf("empty syscall allow-list")
	}
	filter := seccomp.Filter{
		NoNewPrivs: true,
		Flag:       seccomp.FilterFlagTSync,
		Policy:     *syscallPolicy(names),
	}
	if err := seccomp.LoadFilter(filter); err != nil {
		return fmt.Errorf("loading seccomp filter: %w", err)
	}
	return nil
}

// validateSyscallPolicy compiles the policy without loading it.
func validateSyscallPolicy(names []string) error {
	if _, err := syscallPolicy(names).Assemble(); err != nil {
		return fmt.Errorf("assembling seccomp policy: %w", err)
	}
	return nil
}
