// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/grackle-zero/grackle/lib/codec"
)

// The helper is this same binary, re-executed with helperEnv set. It
// receives its launch plan on descriptor 3, reports on descriptor 4,
// and finds channel ends from descriptor 5 upward. It restricts itself
// and then execs the target, so the target's first instruction already
// runs confined.
const (
	helperEnv = "GRACKLE_SANDBOX_HELPER"

	helperConfigFD       = 3
	helperStatusFD       = 4
	helperFirstChannelFD = 5

	helperArgv0 = "grackle-sandbox-helper"
)

// Helper exit codes, chosen to be unlikely from a real program.
const (
	helperExitSetup       = 253
	helperExitExec        = 254
	helperExitRestriction = 255
)

// Helper stages, reported back to the parent.
const (
	stageReadPlan   = "read-plan"
	stageRemap      = "remap-descriptors"
	stageChdir      = "chdir"
	stageLandlock   = "landlock"
	stageSeccomp    = "seccomp"
	stageRestricted = "restricted"
	stageExec       = "exec"
)

// launchPlan is everything the helper needs, sent by the parent.
type launchPlan struct {
	Executable string      `cbor:"executable"`
	Argv       []string    `cbor:"argv"`
	Env        []string    `cbor:"env"`
	Dir        string      `cbor:"dir,omitempty"`
	Mappings   []fdMapping `cbor:"mappings"`
	ReadPaths  []string    `cbor:"read_paths"`
	Syscalls   []string    `cbor:"syscalls"`
}

// helperReport is one status message from the helper. A report with
// Restricted set confirms that every restriction is installed; any
// other report is a failure.
type helperReport struct {
	Stage      string `cbor:"stage"`
	Restricted bool   `cbor:"restricted,omitempty"`
	Message    string `cbor:"message,omitempty"`
	Errno      int    `cbor:"errno,omitempty"`
}

// MaybeRunHelper turns the process into the sandbox helper when it was
// started as one, and never returns in that case. Programs that launch
// sandboxed children call it first thing in main (and tests in
// TestMain); otherwise it returns false immediately.
func MaybeRunHelper() bool {
	if os.Getenv(helperEnv) != "1" {
		return false
	}
	os.Exit(runHelper())
	return true
}

func runHelper() int {
	configFile := os.NewFile(helperConfigFD, "launch-plan")
	var plan launchPlan
	err := codec.NewDecoder(configFile).Decode(&plan)
	configFile.Close()
	if err != nil {
		return writeReport(helperStatusFD, stageReadPlan, err, helperExitSetup)
	}

	statusFD, err := remapDescriptors(plan.Mappings, helperStatusFD)
	if err != nil {
		return writeReport(statusFD, stageRemap, err, helperExitSetup)
	}
	if plan.Dir != "" {
		if err := unix.Chdir(plan.Dir); err != nil {
			return writeReport(statusFD, stageChdir, fmt.Errorf("%s: %w", plan.Dir, err), helperExitSetup)
		}
	}
	if err := restrictFilesystem(plan.ReadPaths); err != nil {
		return writeReport(statusFD, stageLandlock, err, helperExitRestriction)
	}
	if err := installSyscallFilter(plan.Syscalls); err != nil {
		return writeReport(statusFD, stageSeccomp, err, helperExitRestriction)
	}
	if err := encodeReport(statusFD, helperReport{Stage: stageRestricted, Restricted: true}); err != nil {
		return helperExitSetup
	}

	err = syscall.Exec(plan.Executable, plan.Argv, plan.Env)
	return writeReport(statusFD, stageExec, err, helperExitExec)
}

func writeReport(fd int, stage string, err error, code int) int {
	report := helperReport{Stage: stage, Message: err.Error()}
	var errno syscall.Errno
	if errors.As(err, &errno) {
		report.Errno = int(errno)
	}
	_ = encodeReport(fd, report)
	return code
}

func encodeReport(fd int, report helperReport) error {
	data, err := codec.Marshal(report)
	if err != nil {
		return err
	}
	for len(data) > 0 {
		n, err := unix.Write(fd, data)
		if err == unix.EINTR {
			continue
		}
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}
