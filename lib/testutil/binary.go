// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// SelfBinary returns the resolved path of the running test binary. Tests
// that launch sandboxed children use it as both the helper and the
// target, dispatching on environment variables in TestMain.
func SelfBinary(t *testing.T) string {
	t.Helper()
	path, err := os.Executable()
	if err != nil {
		t.Fatalf("locating test binary: %v", err)
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		t.Fatalf("resolving test binary %s: %v", path, err)
	}
	return resolved
}

// WriteFile creates a file with contents under a fresh temporary
// directory and returns its path.
func WriteFile(t *testing.T, name, contents string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(contents), 0o600); err != nil {
		t.Fatalf("writing %s: %v", path, err)
	}
	return path
}
