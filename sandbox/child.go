// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/grackle-zero/grackle/lib/channel"
)

// Child is a running sandboxed process and the parent ends of its
// piped channels. Each stream can be taken once. Wait reaps the child
// and is safe to call repeatedly and concurrently.
type Child struct {
	proc       process
	executable string

	mu      sync.Mutex
	streams map[int]*channel.Pipe
	state   State

	waitOnce sync.Once
	status   ExitStatus
	waitErr  error
	done     chan struct{}
}

func newChild(proc process, executable string, streams map[int]*channel.Pipe) *Child {
	return &Child{
		proc:       proc,
		executable: executable,
		streams:    streams,
		state:      StateRestrictionApplied,
		done:       make(chan struct{}),
	}
}

// Pid returns the operating system process ID.
func (c *Child) Pid() int {
	return c.proc.pid()
}

// Executable returns the resolved path of the running program.
func (c *Child) Executable() string {
	return c.executable
}

// State returns the current lifecycle state.
func (c *Child) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// advance moves the child forward. Moving backward is ignored.
func (c *Child) advance(next State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if next > c.state {
		c.state = next
	}
}

// TakeStreamToChild returns the write end of the ToChild pipe at slot.
// It succeeds at most once per slot; later calls and calls for slots
// not configured as ToChild return ErrNoSuchStream.
func (c *Child) TakeStreamToChild(slot int) (*os.File, error) {
	return c.take(slot, channel.ToChild)
}

// TakeStreamFromChild returns the read end of the FromChild pipe at
// slot, under the same rules as TakeStreamToChild.
func (c *Child) TakeStreamFromChild(slot int) (*os.File, error) {
	return c.take(slot, channel.FromChild)
}

func (c *Child) take(slot int, mode channel.Mode) (*os.File, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	pipe, ok := c.streams[slot]
	if !ok || pipe.Mode != mode {
		return nil, fmt.Errorf("slot %d (%v): %w", slot, mode, ErrNoSuchStream)
	}
	delete(c.streams, slot)
	return pipe.Parent, nil
}

// closeStreams closes every stream nobody took.
func (c *Child) closeStreams() error {
	c.mu.Lock()
	streams := c.streams
	c.streams = nil
	c.mu.Unlock()

	var errs []error
	for slot, pipe := range streams {
		if err := pipe.Parent.Close(); err != nil {
			errs = append(errs, fmt.Errorf("closing slot %d: %w", slot, err))
		}
	}
	return errors.Join(errs...)
}

// Wait blocks until the child exits and returns its status. After the
// first call returns, later calls return the same result immediately.
func (c *Child) Wait() (ExitStatus, error) {
	c.waitOnce.Do(func() {
		status, err := c.proc.wait()
		c.mu.Lock()
		c.state = StateExited
		c.mu.Unlock()
		if err != nil {
			err = newError(KindResource, "wait for child", err)
		}
		c.status, c.waitErr = status, err
		close(c.done)
	})
	return c.status, c.waitErr
}

// ExitStatus reports the exit status without blocking. The boolean is
// false while the child is still running.
func (c *Child) ExitStatus() (ExitStatus, bool, error) {
	select {
	case <-c.done:
		return c.status, true, c.waitErr
	default:
	}
	exited, err := c.proc.exited()
	if err != nil {
		return ExitStatus{}, false, newError(KindResource, "poll child", err)
	}
	if !exited {
		return ExitStatus{}, false, nil
	}
	status, err := c.Wait()
	return status, true, err
}

// Done returns a channel closed once Wait has reaped the child.
func (c *Child) Done() <-chan struct{} {
	return c.done
}

// Terminate forcibly stops the child and reaps it. Terminating a child
// that already exited returns its recorded status.
func (c *Child) Terminate() (ExitStatus, error) {
	select {
	case <-c.done:
		return c.status, c.waitErr
	default:
	}
	if err := c.proc.kill(); err != nil {
		return ExitStatus{}, newError(KindResource, "terminate child", err)
	}
	return c.Wait()
}
