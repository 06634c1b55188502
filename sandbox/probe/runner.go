// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/grackle-zero/grackle/lib/channel"
	"github.com/grackle-zero/grackle/sandbox"
)

// Outcome is how far a child got through the handshake.
type Outcome struct {
	// Ready is true once the child answered the go signal.
	Ready bool

	// Completed is true if the child reported that its action
	// succeeded.
	Completed bool
}

// Exchange drives the parent side of the handshake. The child's stdin
// must be ToChild and its stdout FromChild. End-of-stream at any point
// is not an error; it just stops the outcome where it is.
func Exchange(child *sandbox.Child) (Outcome, error) {
	var outcome Outcome
	stdin, err := child.TakeStreamToChild(0)
	if err != nil {
		return outcome, err
	}
	defer stdin.Close()
	stdout, err := child.TakeStreamFromChild(1)
	if err != nil {
		return outcome, err
	}
	defer stdout.Close()

	if _, err := stdin.Write([]byte{SignalGo}); err != nil {
		// The child may already be gone; its exit status tells why.
		return outcome, nil
	}
	signal := make([]byte, 1)
	for _, expected := range []byte{SignalReady, SignalCompleted} {
		if _, err := io.ReadFull(stdout, signal); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return outcome, nil
			}
			return outcome, err
		}
		if signal[0] != expected {
			return outcome, fmt.Errorf("handshake: got %q, want %q", signal[0], expected)
		}
		if expected == SignalReady {
			outcome.Ready = true
		} else {
			outcome.Completed = true
		}
	}
	return outcome, nil
}

// Result is the verdict for one probe.
type Result struct {
	Probe   *Probe
	Outcome Outcome
	Status  sandbox.ExitStatus

	// Passed is true when the sandbox behaved as expected: blocked
	// probes were blocked and control probes completed.
	Passed bool

	// Detail carries the child's stderr or the launch error.
	Detail string
}

// Runner launches probes under a Sandbox.
type Runner struct {
	// Sandbox launches each probe.
	Sandbox *sandbox.Sandbox

	// Command is the binary that dispatches to Main when EnvName is
	// set in its environment.
	Command string

	// Args are passed to Command before any probe-specific arguments.
	Args []string

	// Env is added to every probe's environment.
	Env map[string]string

	// Channels overrides the default layout of a to-child stdin and
	// from-child stdout and stderr. Slots 0 and 1 must keep those modes
	// for the handshake, and slot 2 must be from-child.
	Channels channel.Set

	// Timeout bounds each probe. Defaults to 30 seconds.
	Timeout time.Duration

	results []Result
}

// Run launches one probe with its default target.
func (r *Runner) Run(ctx context.Context, p *Probe) Result {
	return r.RunTarget(ctx, p, "")
}

// RunTarget launches one probe against target.
func (r *Runner) RunTarget(ctx context.Context, p *Probe, target string) Result {
	timeout := r.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	env := map[string]string{EnvName: p.Name}
	for key, value := range r.Env {
		env[key] = value
	}
	if target != "" {
		env[EnvTarget] = target
	}

	result := Result{Probe: p}
	var stderrText string
	status, err := r.Sandbox.Run(ctx, sandbox.LaunchConfig{
		Command:  r.Command,
		Args:     r.Args,
		Env:      env,
		Channels: r.channels(),
	}, sandbox.HandlerFunc(func(ctx context.Context, child *sandbox.Child) error {
		stderr, err := child.TakeStreamFromChild(2)
		if err != nil {
			return err
		}
		defer stderr.Close()
		collected := make(chan string, 1)
		go func() {
			data, _ := io.ReadAll(io.LimitReader(stderr, 4096))
			collected <- strings.TrimSpace(string(data))
		}()
		outcome, exchangeErr := Exchange(child)
		result.Outcome = outcome
		if _, waitErr := child.Wait(); waitErr != nil {
			return errors.Join(exchangeErr, waitErr)
		}
		stderrText = <-collected
		return exchangeErr
	}))
	result.Status = status
	if err != nil {
		result.Detail = err.Error()
		return result
	}
	result.Detail = stderrText

	if p.ExpectBlocked {
		result.Passed = result.Outcome.Ready && !result.Outcome.Completed && !status.Success()
	} else {
		result.Passed = result.Outcome.Completed && status.Success()
	}
	if !result.Outcome.Ready && result.Detail == "" {
		result.Detail = "probe exited before the handshake: " + status.String()
	}
	return result
}

func (r *Runner) channels() channel.Set {
	if r.Channels.Len() > 0 {
		return r.Channels
	}
	return channel.Basic(channel.ToChild, channel.FromChild, channel.FromChild)
}

// RunAll launches every probe and records the results.
func (r *Runner) RunAll(ctx context.Context) []Result {
	return r.RunCategory(ctx)
}

// RunCategory launches the probes in any of categories, or all probes
// when none are given.
func (r *Runner) RunCategory(ctx context.Context, categories ...string) []Result {
	r.results = r.results[:0]
	for i := range Probes {
		p := &Probes[i]
		if len(categories) > 0 && !slices.Contains(categories, p.Category) {
			continue
		}
		r.results = append(r.results, r.Run(ctx, p))
	}
	return r.results
}

// Summary counts the recorded results.
func (r *Runner) Summary() (passed, failed int) {
	for _, result := range r.results {
		if result.Passed {
			passed++
		} else {
			failed++
		}
	}
	return passed, failed
}

// HasFailures returns true if any probe escaped or any control failed.
func (r *Runner) HasFailures() bool {
	_, failed := r.Summary()
	return failed > 0
}

// Results returns the recorded results.
func (r *Runner) Results() []Result {
	return r.results
}
