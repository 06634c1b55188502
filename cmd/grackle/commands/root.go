// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Package commands defines the grackle command tree.
package commands

import (
	"github.com/spf13/pflag"

	"github.com/grackle-zero/grackle/cmd/grackle/cli"
	"github.com/grackle-zero/grackle/lib/config"
)

// Root returns the top-level grackle command.
func Root() *cli.Command {
	return &cli.Command{
		Name:    "grackle",
		Summary: "Run untrusted programs under operating system restrictions",
		Description: `grackle runs a program with Landlock and seccomp (Linux) or a restricted
token and AppContainer (Windows) in force before its first instruction,
and connects it to the caller only through the configured channels.`,
		Subcommands: []*cli.Command{
			runCommand(),
			checkCommand(),
			testCommand(),
			versionCommand(),
		},
	}
}

// configFlag registers --config on flagSet.
func configFlag(flagSet *pflag.FlagSet, path *string) {
	flagSet.StringVar(path, "config", "", "config file (YAML, or JSON with comments); defaults to $"+config.EnvName)
}
