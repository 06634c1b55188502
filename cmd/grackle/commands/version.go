// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/pflag"

	"github.com/grackle-zero/grackle/cmd/grackle/cli"
	"github.com/grackle-zero/grackle/lib/version"
)

func versionCommand() *cli.Command {
	var full bool
	return &cli.Command{
		Name:    "version",
		Summary: "Print version information",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("version", pflag.ContinueOnError)
			flagSet.BoolVar(&full, "full", false, "include Go version, platform, and binary digest")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if !full {
				fmt.Fprintln(os.Stdout, version.Info())
				return nil
			}
			fmt.Fprintln(os.Stdout, version.Full())
			digest, path, err := version.SelfDigest()
			if err != nil {
				return err
			}
			fmt.Fprintf(os.Stdout, "  Binary: %s\n  Digest: %s\n", path, digest)
			return nil
		},
	}
}
