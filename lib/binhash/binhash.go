// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package binhash

import (
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/zeebo/blake3"
)

// DigestSize is the length of a BLAKE3-256 digest.
const DigestSize = 32

const prefix = "blake3:"

// Digest is a BLAKE3-256 digest.
type Digest [DigestSize]byte

func (d Digest) String() string {
	return prefix + hex.EncodeToString(d[:])
}

// Short returns the first 12 hex characters, for human-facing output.
func (d Digest) Short() string {
	return hex.EncodeToString(d[:6])
}

// HashFile returns the digest of the file at path.
func HashFile(path string) (Digest, error) {
	file, err := os.Open(path)
	if err != nil {
		return Digest{}, fmt.Errorf("opening %s for hashing: %w", path, err)
	}
	defer file.Close()
	return HashReader(file)
}

// HashReader returns the digest of everything read from r.
func HashReader(r io.Reader) (Digest, error) {
	hasher := blake3.New()
	if _, err := io.Copy(hasher, r); err != nil {
		return Digest{}, fmt.Errorf("hashing: %w", err)
	}
	var digest Digest
	copy(digest[:], hasher.Sum(nil))
	return digest, nil
}

// ParseDigest parses "blake3:<hex>" or bare 64-character hex.
func ParseDigest(text string) (Digest, error) {
	var digest Digest
	decoded, err := hex.DecodeString(strings.TrimPrefix(text, prefix))
	if err != nil {
		return digest, fmt.Errorf("parsing digest: %w", err)
	}
	if len(decoded) != DigestSize {
		return digest, fmt.Errorf("digest is %d bytes, want %d", len(decoded), DigestSize)
	}
	copy(digest[:], decoded)
	return digest, nil
}
