// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/spf13/pflag"

	"github.com/grackle-zero/grackle/cmd/grackle/cli"
	"github.com/grackle-zero/grackle/lib/config"
	"github.com/grackle-zero/grackle/sandbox"
	"github.com/grackle-zero/grackle/sandbox/probe"
)

func testCommand() *cli.Command {
	var (
		configPath string
		categories []string
		timeout    time.Duration
	)
	return &cli.Command{
		Name:    "test",
		Summary: "Run escape probes inside the sandbox",
		Description: `Launch grackle itself under restriction once per probe. Each probe tries
one escape (reading a host file, opening a socket, spawning a shell) and
must be blocked; control probes must succeed. Exits 1 if any probe
escaped or a control failed.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			flagSet.StringSliceVar(&categories, "category", nil, "only run these categories: control, filesystem, network, process, privilege, terminal")
			flagSet.DurationVar(&timeout, "timeout", 0, "per-probe timeout (default from config)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := config.Resolve(configPath)
			if err != nil {
				return err
			}
			if len(categories) == 0 {
				categories = cfg.Test.Categories
			}
			if timeout == 0 {
				timeout = cfg.Test.TestTimeout()
			}

			if caps := sandbox.DetectCapabilities(); !caps.CanRunSandbox() {
				return fmt.Errorf("cannot run probes: %s", caps.SkipReason())
			}
			self, err := os.Executable()
			if err != nil {
				return fmt.Errorf("locating grackle binary: %w", err)
			}
			logger := cli.NewCommandLogger().With("command", "test")
			s, err := sandbox.New(sandbox.Config{Logger: logger, HelperPath: cfg.Sandbox.HelperPath})
			if err != nil {
				return err
			}

			runner := &probe.Runner{Sandbox: s, Command: self, Timeout: timeout}
			runner.RunCategory(ctx, categories...)
			if len(runner.Results()) == 0 {
				return fmt.Errorf("no probes in categories %s", strings.Join(categories, ", "))
			}
			writeResults(os.Stdout, runner)
			if runner.HasFailures() {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

func writeResults(w io.Writer, runner *probe.Runner) {
	styles := cli.NewStyles(w)
	for _, result := range runner.Results() {
		line := styles.Verdict(result.Passed) + "  " + styles.Label.Render(result.Probe.Name) +
			styles.Faint.Render(result.Probe.Category+", "+result.Status.String())
		fmt.Fprintln(w, line)
		if !result.Passed && result.Detail != "" {
			fmt.Fprintln(w, "      "+result.Detail)
		}
	}
	passed, failed := runner.Summary()
	fmt.Fprintf(w, "\n%d passed, %d failed\n", passed, failed)
}
