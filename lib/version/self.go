// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/grackle-zero/grackle/lib/binhash"
)

// SelfDigest returns the BLAKE3 digest and path of the running binary.
// On Linux os.Executable reads /proc/self/exe, which names the original
// binary even if it was replaced on disk after start.
func SelfDigest() (binhash.Digest, string, error) {
	executable, err := os.Executable()
	if err != nil {
		return binhash.Digest{}, "", fmt.Errorf("resolving own executable path: %w", err)
	}
	digest, err := binhash.HashFile(executable)
	if err != nil {
		return binhash.Digest{}, "", fmt.Errorf("hashing own binary at %s: %w", executable, err)
	}
	return digest, executable, nil
}

// SameBinary reports whether path has the same content as the running
// binary. A sandbox helper configured by path must be the same build,
// since the launch plan format is not versioned.
func SameBinary(path string) (bool, error) {
	self, _, err := SelfDigest()
	if err != nil {
		return false, err
	}
	resolved, err := filepath.EvalSymlinks(path)
	if err != nil {
		return false, fmt.Errorf("resolving %s: %w", path, err)
	}
	other, err := binhash.HashFile(resolved)
	if err != nil {
		return false, fmt.Errorf("hashing %s: %w", resolved, err)
	}
	return self == other, nil
}
