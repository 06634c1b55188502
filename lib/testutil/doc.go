// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for Grackle packages.
//
// [RequireReceive] and [RequireClosed] bound every wait on a channel
// with a timeout. A child that hangs under restriction fails the test
// instead of the run.
//
// [SelfBinary] returns the running test binary. Sandbox tests re-execute
// it as the helper and as the confined program.
//
// [UniqueID] generates monotonically increasing identifiers for test
// payloads.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
