// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package binhash computes BLAKE3 digests of executables.
//
// The sandbox logs the digest of every binary it launches so an audit
// trail records exactly which bytes ran under restriction, not just a
// path that may since have been replaced.
//
//   - [HashFile] streams a file through BLAKE3 with constant memory.
//   - [Digest.String] is the canonical "blake3:<hex>" form used in logs.
//   - [ParseDigest] accepts that form or bare hex.
package binhash
