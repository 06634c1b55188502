// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"os"
	"path/filepath"
	"runtime/debug"
	"strings"
	"testing"
)

func TestInfoUsesLinkerValues(t *testing.T) {
	commit, dirty := GitCommit, GitDirty
	t.Cleanup(func() { GitCommit, GitDirty = commit, dirty })

	GitCommit, GitDirty = "abc1234", "true"
	if got := Info(); !strings.Contains(got, "(abc1234+dirty,") {
		t.Errorf("Info() = %q, want dirty commit marker", got)
	}
	GitDirty = "false"
	if got := Info(); !strings.Contains(got, "(abc1234,") {
		t.Errorf("Info() = %q, want clean commit", got)
	}
	if !strings.HasPrefix(Full(), Info()) {
		t.Errorf("Full() = %q does not start with Info()", Full())
	}
}

func TestVCSStamp(t *testing.T) {
	revision, dirty := vcsStamp([]debug.BuildSetting{
		{Key: "vcs", Value: "git"},
		{Key: "vcs.revision", Value: "0123456789abcdef0123"},
		{Key: "vcs.modified", Value: "true"},
	})
	if revision != "0123456789ab" || !dirty {
		t.Errorf("vcsStamp = %q, %v", revision, dirty)
	}
	revision, dirty = vcsStamp(nil)
	if revision != "unknown" || dirty {
		t.Errorf("vcsStamp(nil) = %q, %v", revision, dirty)
	}
}

func TestSameBinary(t *testing.T) {
	digest, executable, err := SelfDigest()
	if err != nil {
		t.Fatalf("SelfDigest: %v", err)
	}
	if !strings.HasPrefix(digest.String(), "blake3:") {
		t.Errorf("digest = %s", digest)
	}

	same, err := SameBinary(executable)
	if err != nil || !same {
		t.Fatalf("SameBinary(self) = %v, %v", same, err)
	}

	other := filepath.Join(t.TempDir(), "other")
	if err := os.WriteFile(other, []byte("#!/bin/sh\n"), 0o755); err != nil {
		t.Fatal(err)
	}
	same, err = SameBinary(other)
	if err != nil || same {
		t.Fatalf("SameBinary(other) = %v, %v", same, err)
	}
	if _, err := SameBinary(filepath.Join(t.TempDir(), "absent")); err == nil {
		t.Fatal("SameBinary of a missing file succeeded")
	}
}
