// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package version provides build version information for Grackle
// binaries.
//
// Four package-level variables are injected at build time via
// -ldflags -X:
//
//	go build -ldflags "-X github.com/grackle-zero/grackle/lib/version.GitCommit=$(git rev-parse --short HEAD)"
//
// Without them, [Info] reports the VCS revision that "go build"
// stamps into binaries built from a checkout.
//
// [SelfDigest] identifies the running binary by content, and
// [SameBinary] checks that a separately configured sandbox helper is
// the same build as the launcher.
package version
