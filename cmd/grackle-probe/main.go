// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

// Command grackle-probe performs one escape probe, for running under
// sandboxes other than grackle's own. The probe is named by the first
// argument or by GRACKLE_PROBE, and its target by the second argument
// or GRACKLE_PROBE_TARGET. It speaks the probe handshake on stdin and
// stdout.
package main

import (
	"fmt"
	"os"

	"github.com/grackle-zero/grackle/sandbox/probe"
)

func main() {
	name, target := os.Getenv(probe.EnvName), os.Getenv(probe.EnvTarget)
	if len(os.Args) > 1 {
		name = os.Args[1]
	}
	if len(os.Args) > 2 {
		target = os.Args[2]
	}
	if name == "" || name == "-h" || name == "--help" {
		fmt.Fprintln(os.Stderr, "usage: grackle-probe PROBE [TARGET]")
		for _, p := range probe.Probes {
			fmt.Fprintf(os.Stderr, "  %-16s %s\n", p.Name, p.Description)
		}
		os.Exit(2)
	}
	os.Exit(probe.Main(name, target, os.Stdin, os.Stdout, os.Stderr))
}
