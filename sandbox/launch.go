// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"errors"
	"fmt"
	"os/exec"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grackle-zero/grackle/lib/channel"
)

// ChildArgv0 replaces the program name in the child's argument vector
// so the child cannot learn its host path from argv[0].
const ChildArgv0 = "sandboxed"

// LaunchConfig describes one program to run under restriction.
type LaunchConfig struct {
	// Command is the program to run. A name without a path separator
	// is looked up in the parent's PATH.
	Command string

	// Args are the arguments after argv[0].
	Args []string

	// Dir is the child's working directory. Empty means the parent's.
	Dir string

	// Env is the child's complete environment. Nothing is inherited
	// from the parent.
	Env map[string]string

	// Channels configures the child's descriptor slots. Slots that are
	// not listed are closed in the child.
	Channels channel.Set
}

// validate checks everything that can be checked without touching the
// operating system.
func (c *LaunchConfig) validate() error {
	if strings.TrimSpace(c.Command) == "" {
		return configurationError("validate", "command is empty")
	}
	if strings.ContainsRune(c.Command, 0) {
		return configurationError("validate", "command contains a NUL byte")
	}
	for i, arg := range c.Args {
		if strings.ContainsRune(arg, 0) {
			return configurationError("validate", "argument %d contains a NUL byte", i+1)
		}
	}
	if strings.ContainsRune(c.Dir, 0) {
		return configurationError("validate", "working directory contains a NUL byte")
	}
	for key, value := range c.Env {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			return configurationError("validate", "invalid environment variable name %q", key)
		}
		if strings.ContainsRune(value, 0) {
			return configurationError("validate", "environment variable %s contains a NUL byte", key)
		}
	}
	if err := c.Channels.Validate(); err != nil {
		return newError(KindConfiguration, "validate channels", err)
	}
	return nil
}

// resolveCommand returns the absolute path of the program to run.
func resolveCommand(command string) (string, error) {
	var path string
	if strings.ContainsRune(command, filepath.Separator) || strings.ContainsRune(command, '/') {
		path = command
	} else {
		found, err := exec.LookPath(command)
		if err != nil && !errors.Is(err, exec.ErrDot) {
			return "", newError(KindConfiguration, "resolve command", err)
		}
		path = found
	}
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", newError(KindConfiguration, "resolve command", err)
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return "", newError(KindConfiguration, "resolve command", fmt.Errorf("%s: %w", command, err))
	}
	return resolved, nil
}

// environ returns the environment as sorted KEY=VALUE strings.
func environ(env map[string]string) []string {
	list := make([]string, 0, len(env))
	for key, value := range env {
		list = append(list, key+"="+value)
	}
	sort.Strings(list)
	return list
}

// argv returns the child's argument vector.
func (c *LaunchConfig) argv() []string {
	return append([]string{ChildArgv0}, c.Args...)
}
