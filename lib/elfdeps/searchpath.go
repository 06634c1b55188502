// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package elfdeps

import (
	"bufio"
	"debug/elf"
	"os"
	"path/filepath"
	"strings"
)

// DefaultConfigPath is the loader configuration consulted for extra
// library directories.
const DefaultConfigPath = "/etc/ld.so.conf"

// maxConfigIncludes bounds recursion through "include" directives.
const maxConfigIncludes = 8

// multiarchTriplets maps ELF machines to Debian-style multiarch
// directory names.
var multiarchTriplets = map[elf.Machine]string{
	elf.EM_X86_64:  "x86_64-linux-gnu",
	elf.EM_AARCH64: "aarch64-linux-gnu",
	elf.EM_386:     "i386-linux-gnu",
	elf.EM_ARM:     "arm-linux-gnueabihf",
	elf.EM_RISCV:   "riscv64-linux-gnu",
	elf.EM_PPC64:   "powerpc64le-linux-gnu",
	elf.EM_S390:    "s390x-linux-gnu",
}

// platformNames gives the $PLATFORM expansion per machine.
var platformNames = map[elf.Machine]string{
	elf.EM_X86_64:  "x86_64",
	elf.EM_AARCH64: "aarch64",
	elf.EM_386:     "i686",
	elf.EM_ARM:     "v7l",
	elf.EM_RISCV:   "riscv64",
	elf.EM_PPC64:   "ppc64le",
	elf.EM_S390:    "s390x",
}

// MultiarchTriplet returns the multiarch directory name for machine.
func MultiarchTriplet(machine elf.Machine) (string, bool) {
	triplet, ok := multiarchTriplets[machine]
	return triplet, ok
}

// DefaultDirectories returns the loader's built-in search directories
// for an object of the given class and machine.
func DefaultDirectories(class elf.Class, machine elf.Machine) []string {
	var directories []string
	if triplet, ok := multiarchTriplets[machine]; ok {
		directories = append(directories, "/lib/"+triplet, "/usr/lib/"+triplet)
	}
	if class == elf.ELFCLASS64 {
		directories = append(directories, "/lib64", "/usr/lib64")
	} else {
		directories = append(directories, "/lib32", "/usr/lib32")
	}
	return append(directories, "/lib", "/usr/lib", "/usr/local/lib")
}

// searchPath returns the ordered directories searched for the
// DT_NEEDED entries of file, located at path.
func (r *Resolver) searchPath(file *elf.File, path string) []string {
	origin := filepath.Dir(path)
	expand := func(entries []string) []string {
		var directories []string
		for _, entry := range entries {
			for _, directory := range strings.Split(entry, ":") {
				if directory == "" {
					continue
				}
				directory = expandTokens(directory, origin, file)
				if !strings.HasPrefix(directory, origin) {
					directory = r.rooted(directory)
				}
				directories = append(directories, directory)
			}
		}
		return directories
	}

	runpath, _ := file.DynString(elf.DT_RUNPATH)
	var directories []string
	if len(runpath) == 0 {
		rpath, _ := file.DynString(elf.DT_RPATH)
		directories = append(directories, expand(rpath)...)
	}
	directories = append(directories, expand(runpath)...)
	for _, directory := range r.configured() {
		directories = append(directories, r.rooted(directory))
	}
	for _, directory := range DefaultDirectories(file.Class, file.Machine) {
		directories = append(directories, r.rooted(directory))
	}
	return directories
}

// expandTokens substitutes the dynamic string tokens understood by the
// loader.
func expandTokens(directory, origin string, file *elf.File) string {
	lib := "lib"
	if file.Class == elf.ELFCLASS64 {
		lib = "lib64"
	}
	replacer := strings.NewReplacer(
		"${ORIGIN}", origin, "$ORIGIN", origin,
		"${LIB}", lib, "$LIB", lib,
		"${PLATFORM}", platformNames[file.Machine], "$PLATFORM", platformNames[file.Machine],
	)
	return replacer.Replace(directory)
}

// configured returns the directories listed in the loader
// configuration, reading it once.
func (r *Resolver) configured() []string {
	if r.configLoaded {
		return r.configDirectories
	}
	r.configLoaded = true
	path := r.ConfigPath
	if path == "" {
		path = r.rooted(DefaultConfigPath)
	}
	r.configDirectories = parseConfig(path, r, 0)
	return r.configDirectories
}

// parseConfig reads an ld.so.conf file. Unreadable files contribute
// nothing, matching ldconfig.
func parseConfig(path string, r *Resolver, depth int) []string {
	if depth > maxConfigIncludes {
		return nil
	}
	file, err := os.Open(path)
	if err != nil {
		return nil
	}
	defer file.Close()

	var directories []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if index := strings.IndexByte(line, '#'); index >= 0 {
			line = line[:index]
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if pattern, ok := strings.CutPrefix(line, "include"); ok && (pattern == "" || pattern[0] == ' ' || pattern[0] == '\t') {
			pattern = strings.TrimSpace(pattern)
			if !filepath.IsAbs(pattern) {
				pattern = filepath.Join(filepath.Dir(path), pattern)
			} else {
				pattern = r.rooted(pattern)
			}
			matches, _ := filepath.Glob(pattern)
			for _, match := range matches {
				directories = append(directories, parseConfig(match, r, depth+1)...)
			}
			continue
		}
		if strings.HasPrefix(line, "hwcap ") {
			continue
		}
		directories = append(directories, line)
	}
	return directories
}
