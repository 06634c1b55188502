// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the grackle command's configuration.
//
// Configuration comes from a single file named by either the --config
// flag or the GRACKLE_CONFIG environment variable. There is no search
// path and no ~/.config discovery; without either, [Resolve] returns
// [Default]. Files ending in .json or .jsonc are JSON with comments and
// trailing commas; everything else is YAML. Unknown keys are rejected
// in both formats so a typo cannot silently weaken a launch.
//
// After loading, ${VAR} and ${VAR:-default} are expanded in path fields
// and environment values. Nothing else reads the environment, except
// run.pass_env, which names the variables a launch copies from grackle's
// own environment.
//
// The library API (package sandbox) takes no configuration from files
// or the environment; this package only feeds the CLI.
package config
