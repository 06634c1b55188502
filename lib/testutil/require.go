// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import "time"

// Fataler is the part of testing.TB the wait helpers use.
type Fataler interface {
	Helper()
	Fatalf(format string, args ...any)
}

// RequireReceive returns the next value from ch, failing the test if
// none arrives within timeout or ch is closed first. what names the
// event in the failure message.
//
//	status := testutil.RequireReceive(t, results, 5*time.Second, "exit status")
func RequireReceive[T any](t Fataler, ch <-chan T, timeout time.Duration, what string) T {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case v, ok := <-ch:
		if !ok {
			t.Fatalf("%s: channel closed with no value", what)
		}
		return v
	case <-timer.C:
		t.Fatalf("%s: nothing received after %v", what, timeout)
	}
	var zero T
	return zero
}

// RequireClosed fails the test unless ch is closed within timeout.
// Child.Done and similar readiness channels signal by closing.
func RequireClosed(t Fataler, ch <-chan struct{}, timeout time.Duration, what string) {
	t.Helper()
	timer := time.NewTimer(timeout) //nolint:realclock test hang prevention
	defer timer.Stop()
	select {
	case <-ch:
	case <-timer.C:
		t.Fatalf("%s: channel still open after %v", what, timeout)
	}
}
