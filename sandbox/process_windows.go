// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build windows

package sandbox

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sys/windows"
)

// killedExitCode is the exit code given to processes stopped by kill.
const killedExitCode = 255

type windowsProcess struct {
	process   windows.Handle
	job       windows.Handle
	processID uint32
	container *appContainer

	killed atomic.Bool

	// mu guards the handles against kill racing close. Once closed is
	// set the handle values may belong to unrelated objects.
	mu     sync.Mutex
	closed bool
}

func (p *windowsProcess) pid() int {
	return int(p.processID)
}

func (p *windowsProcess) wait() (ExitStatus, error) {
	defer p.close()
	event, err := windows.WaitForSingleObject(p.process, windows.INFINITE)
	if err != nil {
		return ExitStatus{}, err
	}
	if event != windows.WAIT_OBJECT_0 {
		return ExitStatus{}, fmt.Errorf("unexpected wait result %#x", event)
	}
	var code uint32
	if err := windows.GetExitCodeProcess(p.process, &code); err != nil {
		return ExitStatus{}, err
	}
	status := ExitStatus{Termination: Exited, Code: int(code)}
	if p.killed.Load() {
		status.Termination = Killed
	}
	return status, nil
}

func (p *windowsProcess) exited() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return true, nil
	}
	event, err := windows.WaitForSingleObject(p.process, 0)
	if err != nil {
		return false, err
	}
	return event == windows.WAIT_OBJECT_0, nil
}

func (p *windowsProcess) kill() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.killed.Store(true)
	err := windows.TerminateJobObject(p.job, killedExitCode)
	if errors.Is(err, windows.ERROR_ACCESS_DENIED) {
		// Already exiting.
		return nil
	}
	return err
}

// close releases the handles and the AppContainer profile. It is
// called once the process has been waited for.
func (p *windowsProcess) close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	windows.CloseHandle(p.job)
	windows.CloseHandle(p.process)
	if p.container != nil {
		_ = p.container.delete()
	}
}
