// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/grackle-zero/grackle/lib/channel"
	"github.com/grackle-zero/grackle/lib/testutil"
)

func newTestChild(t *testing.T, proc *fakeProcess, set channel.Set) *Child {
	t.Helper()
	table, err := channel.Open(set, nil)
	if err != nil {
		t.Fatalf("channel.Open: %v", err)
	}
	if err := table.CloseChildEnds(); err != nil {
		t.Fatalf("CloseChildEnds: %v", err)
	}
	child := newChild(proc, "/bin/example", table.DetachParentEnds())
	t.Cleanup(func() { _ = child.closeStreams() })
	return child
}

func TestTakeStreamOnce(t *testing.T) {
	child := newTestChild(t, newFakeProcess(1), channel.Basic(channel.ToChild, channel.FromChild, channel.Closed))

	stdin, err := child.TakeStreamToChild(0)
	if err != nil {
		t.Fatalf("TakeStreamToChild(0): %v", err)
	}
	defer stdin.Close()
	if _, err := child.TakeStreamToChild(0); !errors.Is(err, ErrNoSuchStream) {
		t.Fatalf("second TakeStreamToChild(0) = %v, want ErrNoSuchStream", err)
	}

	if _, err := child.TakeStreamToChild(1); !errors.Is(err, ErrNoSuchStream) {
		t.Fatalf("TakeStreamToChild on a FromChild slot = %v, want ErrNoSuchStream", err)
	}
	stdout, err := child.TakeStreamFromChild(1)
	if err != nil {
		t.Fatalf("TakeStreamFromChild(1) after a mismatched take: %v", err)
	}
	defer stdout.Close()

	for _, slot := range []int{2, 3, 70000} {
		if _, err := child.TakeStreamFromChild(slot); !errors.Is(err, ErrNoSuchStream) {
			t.Errorf("TakeStreamFromChild(%d) = %v, want ErrNoSuchStream", slot, err)
		}
	}
}

func TestTakeStreamConcurrent(t *testing.T) {
	child := newTestChild(t, newFakeProcess(1), channel.Basic(channel.Closed, channel.FromChild))

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		winners []*os.File
	)
	for range 16 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if file, err := child.TakeStreamFromChild(1); err == nil {
				mu.Lock()
				winners = append(winners, file)
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if len(winners) != 1 {
		t.Fatalf("%d goroutines took the stream, want 1", len(winners))
	}
	winners[0].Close()
}

func TestWaitIdempotent(t *testing.T) {
	proc := newFakeProcess(1)
	child := newTestChild(t, proc, channel.Set{})

	if _, done, err := child.ExitStatus(); done || err != nil {
		t.Fatalf("ExitStatus before exit = done %v, err %v", done, err)
	}

	proc.finish(ExitStatus{Termination: Exited, Code: 5})
	first, err := child.Wait()
	if err != nil {
		t.Fatalf("Wait: %v", err)
	}
	second, err := child.Wait()
	if err != nil || second != first {
		t.Fatalf("second Wait = %v, %v; want %v", second, err, first)
	}
	status, done, err := child.ExitStatus()
	if !done || err != nil || status != first {
		t.Fatalf("ExitStatus after Wait = %v, %v, %v", status, done, err)
	}
	if proc.waits.Load() != 1 {
		t.Fatalf("process reaped %d times", proc.waits.Load())
	}
	testutil.RequireClosed(t, child.Done(), time.Second, "Done after Wait")
}

func TestExitStatusReapsExitedChild(t *testing.T) {
	proc := newFakeProcess(1)
	child := newTestChild(t, proc, channel.Set{})
	proc.finish(ExitStatus{Termination: Signaled, Signal: 31})

	status, done, err := child.ExitStatus()
	if !done || err != nil {
		t.Fatalf("ExitStatus = done %v, err %v", done, err)
	}
	if status.Termination != Signaled || status.Signal != 31 {
		t.Fatalf("status = %v", status)
	}
	if child.State() != StateExited {
		t.Fatalf("state = %v, want exited", child.State())
	}
}

func TestConcurrentWaiters(t *testing.T) {
	proc := newFakeProcess(1)
	child := newTestChild(t, proc, channel.Set{})

	results := make(chan ExitStatus, 4)
	for range 4 {
		go func() {
			status, _ := child.Wait()
			results <- status
		}()
	}
	proc.finish(ExitStatus{Termination: Exited, Code: 2})
	for range 4 {
		status := testutil.RequireReceive(t, results, 5*time.Second, "concurrent Wait")
		if status.Code != 2 {
			t.Errorf("waiter saw %v", status)
		}
	}
	if proc.waits.Load() != 1 {
		t.Fatalf("process reaped %d times", proc.waits.Load())
	}
}

func TestTerminateAfterExitKeepsStatus(t *testing.T) {
	proc := newFakeProcess(1)
	child := newTestChild(t, proc, channel.Set{})
	proc.finish(ExitStatus{Termination: Exited, Code: 0})
	if _, err := child.Wait(); err != nil {
		t.Fatal(err)
	}
	status, err := child.Terminate()
	if err != nil || !status.Success() {
		t.Fatalf("Terminate after exit = %v, %v", status, err)
	}
	if proc.killed.Load() {
		t.Fatal("Terminate killed an already reaped child")
	}
}
