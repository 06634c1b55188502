// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package sandbox

// MaybeRunHelper returns false. Only the Linux backend re-executes a
// helper.
func MaybeRunHelper() bool {
	return false
}
