// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Command grackle runs untrusted programs under operating system
// restrictions. The same binary also serves as its own sandbox helper
// and as the child in "grackle test".
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/grackle-zero/grackle/cmd/grackle/commands"
	"github.com/grackle-zero/grackle/lib/process"
	"github.com/grackle-zero/grackle/sandbox"
	"github.com/grackle-zero/grackle/sandbox/probe"
)

func main() {
	if sandbox.MaybeRunHelper() {
		return
	}
	if name := os.Getenv(probe.EnvName); name != "" {
		os.Exit(probe.Main(name, os.Getenv(probe.EnvTarget), os.Stdin, os.Stdout, os.Stderr))
	}
	if err := run(); err != nil {
		process.Fatal(err)
	}
}

func run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return commands.Root().Execute(ctx, os.Args[1:])
}
