// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build linux

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
	"syscall"

	"golang.org/x/sys/unix"
)

type linuxProcess struct {
	process *os.Process
	killed  atomic.Bool
}

func (p *linuxProcess) pid() int {
	return p.process.Pid
}

func (p *linuxProcess) wait() (ExitStatus, error) {
	state, err := p.process.Wait()
	if err != nil {
		return ExitStatus{}, err
	}
	waitStatus, ok := state.Sys().(syscall.WaitStatus)
	if !ok {
		return ExitStatus{Code: state.ExitCode()}, nil
	}
	switch {
	case waitStatus.Exited():
		return ExitStatus{Termination: Exited, Code: waitStatus.ExitStatus()}, nil
	case waitStatus.Signaled():
		status := ExitStatus{Termination: Signaled, Code: -1, Signal: int(waitStatus.Signal())}
		if p.killed.Load() {
			status.Termination = Killed
		}
		return status, nil
	}
	return ExitStatus{}, fmt.Errorf("unexpected wait status %#x", uint32(waitStatus))
}

// exited peeks with WNOWAIT so the child stays reapable by wait.
func (p *linuxProcess) exited() (bool, error) {
	var info unix.Siginfo
	err := unix.Waitid(unix.P_PID, p.process.Pid, &info, unix.WEXITED|unix.WNOHANG|unix.WNOWAIT, nil)
	if errors.Is(err, unix.ECHILD) {
		return true, nil
	}
	if err != nil {
		return false, err
	}
	return info.Signo != 0, nil
}

// kill stops the child's whole process group, including anything the
// target forked.
func (p *linuxProcess) kill() error {
	p.killed.Store(true)
	_ = unix.Kill(-p.process.Pid, unix.SIGKILL)
	err := p.process.Kill()
	if errors.Is(err, os.ErrProcessDone) {
		return nil
	}
	return err
}
