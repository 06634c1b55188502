// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package channel describes which descriptor slots a sandboxed child
// receives and how each one is wired.
//
// A [Set] is an ordered list of [Slot] values. Each slot names a child
// descriptor number (0, 1 and 2 are the standard streams) and a [Mode]:
//
//   - [ToChild]: a fresh pipe; the parent keeps the write end.
//   - [FromChild]: a fresh pipe; the parent keeps the read end.
//   - [KeepInChild]: the parent's own descriptor with the same number
//     is passed through unchanged.
//   - [Closed]: the slot is guaranteed not to be open in the child.
//
// A [Table] holds the descriptors materialized for a Set. The sandbox
// backends hand the child ends to the new process, close them in the
// parent once the child is running, and give the parent ends to the
// caller's handler.
package channel
