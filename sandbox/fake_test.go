// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
)

// fakeProcess is a process that exits when told to.
type fakeProcess struct {
	id     int
	exit   chan ExitStatus
	waits  atomic.Int32
	killed atomic.Bool

	mu     sync.Mutex
	status *ExitStatus
}

func newFakeProcess(id int) *fakeProcess {
	return &fakeProcess{id: id, exit: make(chan ExitStatus, 1)}
}

func (p *fakeProcess) finish(status ExitStatus) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == nil {
		p.status = &status
		p.exit <- status
	}
}

func (p *fakeProcess) pid() int { return p.id }

func (p *fakeProcess) wait() (ExitStatus, error) {
	p.waits.Add(1)
	status := <-p.exit
	return status, nil
}

func (p *fakeProcess) exited() (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status != nil, nil
}

func (p *fakeProcess) kill() error {
	p.killed.Store(true)
	p.finish(ExitStatus{Termination: Killed, Signal: 9})
	return nil
}

// fakeBackend hands out fakeProcesses and records what it was asked.
type fakeBackend struct {
	mu       sync.Mutex
	requests []*startRequest
	next     *fakeProcess
	startErr error
	checkErr error
}

func (b *fakeBackend) name() string { return "fake" }

func (b *fakeBackend) check(*LaunchConfig) error { return b.checkErr }

func (b *fakeBackend) start(ctx context.Context, request *startRequest) (process, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.requests = append(b.requests, request)
	if b.startErr != nil {
		return nil, b.startErr
	}
	if b.next == nil {
		b.next = newFakeProcess(4242)
	}
	return b.next, nil
}

func newFakeSandbox(b *fakeBackend) *Sandbox {
	return &Sandbox{logger: slog.New(slog.NewTextHandler(io.Discard, nil)), backend: b}
}

var errHandler = errors.New("handler failed")
