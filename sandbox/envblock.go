// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package sandbox

import (
	"sort"
	"strings"
	"unicode/utf16"

	"github.com/grackle-zero/grackle/lib/handletable"
)

// childEnvironment is the environment of a Windows child: the caller's
// variables, the defaults from [withDefaults], and the handle table
// when channels beyond the standard three are inherited. It has no
// Windows dependencies so the result can be checked on any platform.
func childEnvironment(env map[string]string, systemRoot, containerFolder string, extra []handletable.Entry) map[string]string {
	merged := withDefaults(env, systemRoot, containerFolder)
	if len(extra) > 0 {
		merged[handletable.EnvName] = handletable.Encode(extra)
	}
	return merged
}

// environmentBlock builds a CREATE_UNICODE_ENVIRONMENT block: each
// NAME=VALUE terminated by NUL, sorted case-insensitively by name,
// with a final NUL.
func environmentBlock(env map[string]string) []uint16 {
	names := make([]string, 0, len(env))
	for name := range env {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		return strings.ToUpper(names[i]) < strings.ToUpper(names[j])
	})
	var block []uint16
	for _, name := range names {
		block = append(block, utf16.Encode([]rune(name+"="+env[name]))...)
		block = append(block, 0)
	}
	if len(block) == 0 {
		block = append(block, 0)
	}
	return append(block, 0)
}

// withDefaults returns env with the variables a Windows process needs
// to start filled in when missing, and the temporary and local data
// directories pointed at the AppContainer folder.
func withDefaults(env map[string]string, systemRoot, containerFolder string) map[string]string {
	merged := make(map[string]string, len(env)+6)
	has := func(name string) bool {
		for existing := range merged {
			if strings.EqualFold(existing, name) {
				return true
			}
		}
		return false
	}
	for name, value := range env {
		merged[name] = value
	}
	defaults := []struct{ name, value string }{
		{"SystemRoot", systemRoot},
		{"windir", systemRoot},
		{"Path", systemRoot + `\system32;` + systemRoot},
	}
	if containerFolder != "" {
		defaults = append(defaults,
			struct{ name, value string }{"LOCALAPPDATA", containerFolder},
			struct{ name, value string }{"TEMP", containerFolder},
			struct{ name, value string }{"TMP", containerFolder},
		)
	}
	for _, variable := range defaults {
		if !has(variable.name) {
			merged[variable.name] = variable.value
		}
	}
	return merged
}
