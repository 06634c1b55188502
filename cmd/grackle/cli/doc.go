// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package cli is the small command framework behind the grackle binary:
// a tree of [Command] values with pflag flag sets, "did you mean"
// suggestions, a terminal-aware slog logger, and lipgloss report styles.
package cli
