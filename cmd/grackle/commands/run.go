// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package commands

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/pflag"

	"github.com/grackle-zero/grackle/cmd/grackle/cli"
	"github.com/grackle-zero/grackle/lib/channel"
	"github.com/grackle-zero/grackle/lib/config"
	"github.com/grackle-zero/grackle/lib/version"
	"github.com/grackle-zero/grackle/sandbox"
)

type runFlags struct {
	configPath string
	dir        string
	env        []string
	passEnv    []string
	stdin      string
	stdout     string
	stderr     string
	channels   []string
	relay      bool
	framed     bool
	maxPacket  int
}

func runCommand() *cli.Command {
	var flags runFlags
	return &cli.Command{
		Name:    "run",
		Summary: "Run a program under restriction",
		Usage:   "grackle run [flags] COMMAND [ARG...]",
		Description: `Run COMMAND with every restriction in force before its first instruction.
The child sees only the environment given by --env, --pass-env, and the
config file, and only the descriptor slots configured as channels.
grackle exits with the child's exit code, or 128 plus the signal number.`,
		Examples: []cli.Example{
			{Description: "Filter a file through an untrusted parser", Command: "grackle run --relay ./parser < input.json"},
			{Description: "Exchange one packet per line", Command: "grackle run --framed --max-packet 65536 ./worker"},
			{Description: "Give the child an extra output pipe on descriptor 3", Command: "grackle run --channel 3:from-child ./tool"},
		},
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.SetInterspersed(false)
			configFlag(flagSet, &flags.configPath)
			flagSet.StringVar(&flags.dir, "dir", "", "working directory of the child")
			flagSet.StringArrayVarP(&flags.env, "env", "e", nil, "set KEY=VALUE in the child (repeatable)")
			flagSet.StringSliceVar(&flags.passEnv, "pass-env", nil, "copy these variables from grackle's environment")
			flagSet.StringVar(&flags.stdin, "stdin", "", "mode of slot 0: keep, to-child, closed")
			flagSet.StringVar(&flags.stdout, "stdout", "", "mode of slot 1: keep, from-child, closed")
			flagSet.StringVar(&flags.stderr, "stderr", "", "mode of slot 2: keep, from-child, closed")
			flagSet.StringArrayVarP(&flags.channels, "channel", "c", nil, "extra slot as N:MODE (repeatable)")
			flagSet.BoolVar(&flags.relay, "relay", false, "pipe slots 0-2 through grackle instead of handing over its streams")
			flagSet.BoolVar(&flags.framed, "framed", false, "with --relay: one line of input per packet in, one packet per line out")
			flagSet.IntVar(&flags.maxPacket, "max-packet", 0, "largest packet payload in --framed mode (default from config)")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			if len(args) == 0 {
				return fmt.Errorf("COMMAND is required\n\nRun 'grackle run --help' for usage.")
			}
			cfg, err := config.Resolve(flags.configPath)
			if err != nil {
				return err
			}
			launch, err := flags.launchConfig(cfg, args, os.LookupEnv)
			if err != nil {
				return err
			}
			return runLaunch(ctx, cfg, launch, flags)
		},
	}
}

// launchConfig merges the config file with the command line.
func (f *runFlags) launchConfig(cfg *config.Config, args []string, lookup func(string) (string, bool)) (sandbox.LaunchConfig, error) {
	run := cfg.Run
	for _, override := range []struct {
		flag   string
		target *string
	}{{f.stdin, &run.Stdin}, {f.stdout, &run.Stdout}, {f.stderr, &run.Stderr}} {
		if override.flag != "" {
			*override.target = override.flag
		}
	}
	if f.framed {
		f.relay = true
	}
	if f.relay {
		run.Stdin, run.Stdout, run.Stderr = "to-child", "from-child", "from-child"
	}
	if f.dir != "" {
		run.Dir = f.dir
	}
	if f.maxPacket > 0 {
		run.MaxPacket = f.maxPacket
	}
	f.maxPacket = run.MaxPacket
	run.PassEnv = append(append([]string(nil), run.PassEnv...), f.passEnv...)

	set, err := run.ChannelSet()
	if err != nil {
		return sandbox.LaunchConfig{}, err
	}
	for _, text := range f.channels {
		slot, err := channel.ParseSlot(text)
		if err != nil {
			return sandbox.LaunchConfig{}, err
		}
		if _, exists := set.Mode(slot.Number); exists {
			return sandbox.LaunchConfig{}, fmt.Errorf("--channel %s: slot %d is already configured", text, slot.Number)
		}
		set = set.With(slot.Number, slot.Mode)
	}

	env := run.Environment(lookup)
	for _, pair := range f.env {
		key, value, ok := strings.Cut(pair, "=")
		if !ok {
			return sandbox.LaunchConfig{}, fmt.Errorf("--env %q: expected KEY=VALUE", pair)
		}
		env[key] = value
	}

	return sandbox.LaunchConfig{
		Command:  args[0],
		Args:     args[1:],
		Dir:      run.Dir,
		Env:      env,
		Channels: set,
	}, nil
}

func runLaunch(ctx context.Context, cfg *config.Config, launch sandbox.LaunchConfig, flags runFlags) error {
	logger := cli.NewCommandLogger().With("command", "run")

	if cfg.Sandbox.RequireNetworkRestriction {
		if caps := sandbox.DetectCapabilities(); !caps.NetworkRestricted {
			return fmt.Errorf("sandbox.require_network_restriction is set but this kernel cannot restrict TCP (Landlock ABI %d)", caps.LandlockABI)
		}
	}
	if cfg.Sandbox.HelperPath != "" {
		if same, err := version.SameBinary(cfg.Sandbox.HelperPath); err != nil || !same {
			logger.Warn("sandbox helper is not this grackle build", "helper", cfg.Sandbox.HelperPath, "error", err)
		}
	}

	s, err := sandbox.New(sandbox.Config{Logger: logger, HelperPath: cfg.Sandbox.HelperPath})
	if err != nil {
		return err
	}
	handler := &relay{
		framed:    flags.framed,
		maxPacket: flags.maxPacket,
		stdin:     os.Stdin,
		stdout:    os.Stdout,
		stderr:    os.Stderr,
		logger:    logger,
	}
	status, err := s.Run(ctx, launch, handler)
	if err != nil {
		return err
	}
	return status.Err()
}
