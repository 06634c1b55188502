// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"io"
	"os"
	"strconv"

	"github.com/spf13/pflag"

	"github.com/grackle-zero/grackle/cmd/grackle/cli"
	"github.com/grackle-zero/grackle/lib/config"
	"github.com/grackle-zero/grackle/lib/version"
	"github.com/grackle-zero/grackle/sandbox"
)

func checkCommand() *cli.Command {
	var configPath string
	return &cli.Command{
		Name:    "check",
		Summary: "Report whether this system can run sandboxed programs",
		Description: `Detect the kernel restriction features grackle needs and report whether
launches will succeed. Exits 1 when they will not; grackle never falls
back to running a program unrestricted.`,
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("check", pflag.ContinueOnError)
			configFlag(flagSet, &configPath)
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			cfg, err := config.Resolve(configPath)
			if err != nil {
				return err
			}
			if ok := writeCheck(os.Stdout, sandbox.DetectCapabilities(), cfg); !ok {
				return &cli.ExitError{Code: 1}
			}
			return nil
		},
	}
}

// writeCheck renders the capability report and returns whether
// launches can run under cfg.
func writeCheck(w io.Writer, caps *sandbox.Capabilities, cfg *config.Config) bool {
	styles := cli.NewStyles(w)
	ready := caps.CanRunSandbox()
	reason := caps.SkipReason()
	if ready && cfg.Sandbox.RequireNetworkRestriction && !caps.NetworkRestricted {
		ready = false
		reason = "sandbox.require_network_restriction is set but Landlock ABI " +
			strconv.Itoa(caps.LandlockABI) + " cannot restrict TCP (need ABI 4)"
	}

	fmt.Fprintln(w, styles.Heading.Render("Platform"))
	fmt.Fprint(w, styles.Row("platform", caps.Platform))
	switch {
	case caps.LandlockABI > 0 || caps.LandlockError != "":
		landlock := strconv.Itoa(caps.LandlockABI)
		if caps.LandlockError != "" {
			landlock = styles.Faint.Render(caps.LandlockError)
		}
		fmt.Fprint(w, styles.Row("landlock ABI", landlock))
		fmt.Fprint(w, styles.Row("seccomp", styles.Verdict(caps.SeccompSupported)))
		fmt.Fprint(w, styles.Row("network restricted", styles.Verdict(caps.NetworkRestricted)))
	case caps.AppContainerSupported:
		fmt.Fprint(w, styles.Row("appcontainer", styles.Verdict(true)))
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, styles.Heading.Render("Launch defaults"))
	for _, line := range cfg.Describe() {
		fmt.Fprintln(w, "  "+line)
	}
	if cfg.Sandbox.HelperPath != "" {
		same, err := version.SameBinary(cfg.Sandbox.HelperPath)
		switch {
		case err != nil:
			fmt.Fprint(w, styles.Row("helper", styles.Fail.Render(err.Error())))
			ready, reason = false, "sandbox.helper_path cannot be verified"
		case !same:
			fmt.Fprint(w, styles.Row("helper", styles.Fail.Render("different build than this grackle")))
			ready, reason = false, "sandbox.helper_path must be the same build as grackle"
		}
	}

	fmt.Fprintln(w)
	fmt.Fprint(w, styles.Row(styles.Heading.Render("sandbox"), styles.Verdict(ready)))
	if !ready {
		fmt.Fprintln(w, "  "+reason)
	}
	return ready
}
