// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers. It is the one
// place, besides CLI output, that writes to stderr directly: before the
// structured logger exists, and when main exits after an unrecoverable
// error.
//
// An error that carries an exit code (a sandboxed child that failed) is
// not printed; the launcher exits with the child's code instead, so
// "grackle run" composes in shell pipelines.
package process
