// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package cli

import (
	"bytes"
	"context"
	"strings"
	"testing"

	"github.com/spf13/pflag"
)

func TestExecuteDispatchesToSubcommand(t *testing.T) {
	var called string
	var receivedArgs []string
	root := &Command{
		Name: "grackle",
		Subcommands: []*Command{
			{Name: "check", Run: func(ctx context.Context, args []string) error { called = "check"; return nil }},
			{Name: "run", Run: func(ctx context.Context, args []string) error {
				called = "run"
				receivedArgs = args
				return nil
			}},
		},
	}
	if err := root.Execute(context.Background(), []string{"run", "/bin/true"}); err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if called != "run" || len(receivedArgs) != 1 || receivedArgs[0] != "/bin/true" {
		t.Fatalf("called %q with %v", called, receivedArgs)
	}
}

func TestExecuteParsesFlagsAndStopsAtCommand(t *testing.T) {
	var dir string
	var receivedArgs []string
	command := &Command{
		Name: "run",
		Flags: func() *pflag.FlagSet {
			flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
			flagSet.SetInterspersed(false)
			flagSet.StringVar(&dir, "dir", "", "working directory")
			return flagSet
		},
		Run: func(ctx context.Context, args []string) error {
			receivedArgs = args
			return nil
		},
	}
	err := command.Execute(context.Background(), []string{"--dir", "/srv", "ls", "--dir", "x"})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if dir != "/srv" {
		t.Errorf("dir = %q", dir)
	}
	if strings.Join(receivedArgs, " ") != "ls --dir x" {
		t.Errorf("args = %v", receivedArgs)
	}
}

func TestExecuteSuggestions(t *testing.T) {
	root := &Command{
		Name: "grackle",
		Subcommands: []*Command{
			{Name: "check", Run: func(ctx context.Context, args []string) error { return nil }},
			{
				Name: "test",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("test", pflag.ContinueOnError)
					flagSet.String("category", "", "")
					return flagSet
				},
				Run: func(ctx context.Context, args []string) error { return nil },
			},
		},
	}
	err := root.Execute(context.Background(), []string{"chek"})
	if err == nil || !strings.Contains(err.Error(), `did you mean "check"`) {
		t.Errorf("unknown command error = %v", err)
	}
	err = root.Execute(context.Background(), []string{"test", "--categry", "network"})
	if err == nil || !strings.Contains(err.Error(), "did you mean --category") {
		t.Errorf("unknown flag error = %v", err)
	}
	err = root.Execute(context.Background(), []string{"zzzzzzzz"})
	if err == nil || strings.Contains(err.Error(), "did you mean") {
		t.Errorf("far-off command error = %v", err)
	}
}

func TestLevenshtein(t *testing.T) {
	tests := []struct {
		a, b string
		want int
	}{
		{"", "", 0},
		{"run", "", 3},
		{"check", "chek", 1},
		{"test", "tset", 2},
		{"version", "version", 0},
	}
	for _, test := range tests {
		if got := levenshtein(test.a, test.b); got != test.want {
			t.Errorf("levenshtein(%q, %q) = %d, want %d", test.a, test.b, got, test.want)
		}
	}
}

func TestPrintHelpListsCommandsAndFlags(t *testing.T) {
	root := &Command{
		Name:    "grackle",
		Summary: "Run programs under restriction",
		Subcommands: []*Command{
			{
				Name:    "run",
				Summary: "Run a program",
				Flags: func() *pflag.FlagSet {
					flagSet := pflag.NewFlagSet("run", pflag.ContinueOnError)
					flagSet.Bool("relay", false, "relay stdio through pipes")
					return flagSet
				},
			},
		},
	}
	var buffer bytes.Buffer
	root.PrintHelp(&buffer)
	if !strings.Contains(buffer.String(), "run") || !strings.Contains(buffer.String(), "Run a program") {
		t.Errorf("root help = %q", buffer.String())
	}
	buffer.Reset()
	root.Subcommands[0].PrintHelp(&buffer)
	if !strings.Contains(buffer.String(), "--relay") {
		t.Errorf("run help = %q", buffer.String())
	}
}

func TestNewLoggerLevel(t *testing.T) {
	var buffer bytes.Buffer
	newLogger(&buffer, false, false).Debug("hidden")
	if buffer.Len() != 0 {
		t.Errorf("debug record written at info level: %q", buffer.String())
	}
	newLogger(&buffer, false, true).Debug("shown")
	if !strings.Contains(buffer.String(), `"msg":"shown"`) {
		t.Errorf("JSON debug record = %q", buffer.String())
	}
}
