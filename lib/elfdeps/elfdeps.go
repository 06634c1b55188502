// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package elfdeps

import (
	"bufio"
	"bytes"
	"debug/elf"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
)

// LoaderCache is the dynamic loader's cache, read by ld.so at startup.
const LoaderCache = "/etc/ld.so.cache"

// maxScriptDepth bounds "#!" interpreter chains.
const maxScriptDepth = 4

// ErrMissingLibrary is wrapped by Discover when a DT_NEEDED entry
// cannot be located.
var ErrMissingLibrary = errors.New("required shared library not found")

// Library is one resolved DT_NEEDED entry.
type Library struct {
	// Name is the DT_NEEDED string, for example "libc.so.6".
	Name string

	// Path is the resolved location with symlinks evaluated.
	Path string

	// NeededBy is the path of the first object that required it.
	NeededBy string
}

// Result is the loading closure of an executable.
type Result struct {
	// Executable is the absolute, symlink-free path of the program.
	Executable string

	// Interpreters lists program interpreters: PT_INTERP of ELF
	// objects and "#!" lines of scripts.
	Interpreters []string

	Libraries []Library

	// LoaderCache is set when the executable is dynamically linked and
	// the cache exists.
	LoaderCache string
}

// Paths returns every file the executable needs, sorted and unique.
func (r *Result) Paths() []string {
	set := map[string]bool{r.Executable: true}
	for _, interpreter := range r.Interpreters {
		set[interpreter] = true
	}
	for _, library := range r.Libraries {
		set[library.Path] = true
	}
	if r.LoaderCache != "" {
		set[r.LoaderCache] = true
	}
	paths := make([]string, 0, len(set))
	for path := range set {
		paths = append(paths, path)
	}
	sort.Strings(paths)
	return paths
}

// Resolver locates shared libraries. The zero value uses the host's
// ld.so.conf and default directories.
type Resolver struct {
	// Root is prepended to every absolute path consulted. Empty means "/".
	Root string

	// ConfigPath overrides /etc/ld.so.conf.
	ConfigPath string

	configDirectories []string
	configLoaded      bool
}

// Discover resolves the loading closure of executable using a default
// Resolver.
func Discover(executable string) (*Result, error) {
	return (&Resolver{}).Discover(executable)
}

// Discover resolves the loading closure of executable.
func (r *Resolver) Discover(executable string) (*Result, error) {
	path, err := r.canonical(executable)
	if err != nil {
		return nil, fmt.Errorf("resolving executable %s: %w", executable, err)
	}
	result := &Result{Executable: path}

	state := &walk{resolver: r, result: result, visited: map[string]bool{}}
	if err := state.object(path, 0); err != nil {
		return nil, err
	}
	if len(state.missing) > 0 {
		sort.Strings(state.missing)
		return nil, fmt.Errorf("%w: %s", ErrMissingLibrary, strings.Join(state.missing, ", "))
	}
	if state.dynamic {
		if _, err := os.Stat(r.rooted(LoaderCache)); err == nil {
			result.LoaderCache = r.rooted(LoaderCache)
		}
	}
	return result, nil
}

type walk struct {
	resolver *Resolver
	result   *Result
	visited  map[string]bool
	missing  []string
	dynamic  bool
}

// object adds path's own dependencies. depth counts "#!" hops.
func (w *walk) object(path string, depth int) error {
	if w.visited[path] {
		return nil
	}
	w.visited[path] = true

	file, err := elf.Open(path)
	if err != nil {
		var formatError *elf.FormatError
		if errors.As(err, &formatError) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return w.script(path, depth)
		}
		return fmt.Errorf("reading %s: %w", path, err)
	}
	defer file.Close()

	if interpreter := programInterpreter(file); interpreter != "" {
		resolved, err := w.resolver.canonical(w.resolver.rooted(interpreter))
		if err != nil {
			return fmt.Errorf("%s: program interpreter %s: %w", path, interpreter, err)
		}
		w.dynamic = true
		w.addInterpreter(resolved)
	}

	needed, err := file.ImportedLibraries()
	if err != nil {
		return fmt.Errorf("%s: reading DT_NEEDED: %w", path, err)
	}
	if len(needed) == 0 {
		return nil
	}
	w.dynamic = true
	searchPath := w.resolver.searchPath(file, path)
	for _, name := range needed {
		library, found := w.resolver.locate(name, searchPath, file)
		if !found {
			w.missing = append(w.missing, fmt.Sprintf("%s (needed by %s)", name, path))
			continue
		}
		if w.visited[library] {
			continue
		}
		w.result.Libraries = append(w.result.Libraries, Library{Name: name, Path: library, NeededBy: path})
		if err := w.object(library, depth); err != nil {
			return err
		}
	}
	return nil
}

// script handles a non-ELF executable. Files without a "#!" line are
// accepted as-is; the kernel will refuse to execute them.
func (w *walk) script(path string, depth int) error {
	interpreter, err := readShebang(path)
	if err != nil {
		return fmt.Errorf("reading %s: %w", path, err)
	}
	if interpreter == "" {
		return nil
	}
	if depth >= maxScriptDepth {
		return fmt.Errorf("%s: interpreter chain deeper than %d", path, maxScriptDepth)
	}
	resolved, err := w.resolver.canonical(w.resolver.rooted(interpreter))
	if err != nil {
		return fmt.Errorf("%s: script interpreter %s: %w", path, interpreter, err)
	}
	w.addInterpreter(resolved)
	return w.object(resolved, depth+1)
}

func (w *walk) addInterpreter(path string) {
	for _, existing := range w.result.Interpreters {
		if existing == path {
			return
		}
	}
	w.result.Interpreters = append(w.result.Interpreters, path)
}

func programInterpreter(file *elf.File) string {
	for _, program := range file.Progs {
		if program.Type != elf.PT_INTERP {
			continue
		}
		data, err := io.ReadAll(program.Open())
		if err != nil {
			return ""
		}
		return string(bytes.TrimRight(data, "\x00"))
	}
	return ""
}

// readShebang returns the interpreter named on a "#!" first line, or ""
// when the file has none.
func readShebang(path string) (string, error) {
	file, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer file.Close()

	line, err := bufio.NewReader(io.LimitReader(file, 256)).ReadString('\n')
	if err != nil && err != io.EOF {
		return "", err
	}
	if !strings.HasPrefix(line, "#!") {
		return "", nil
	}
	fields := strings.Fields(strings.TrimPrefix(line, "#!"))
	if len(fields) == 0 {
		return "", nil
	}
	return fields[0], nil
}

func (r *Resolver) rooted(path string) string {
	if r.Root == "" || !filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(r.Root, path)
}

func (r *Resolver) canonical(path string) (string, error) {
	absolute, err := filepath.Abs(path)
	if err != nil {
		return "", err
	}
	resolved, err := filepath.EvalSymlinks(absolute)
	if err != nil {
		return "", err
	}
	info, err := os.Stat(resolved)
	if err != nil {
		return "", err
	}
	if !info.Mode().IsRegular() {
		return "", fmt.Errorf("%s is not a regular file", resolved)
	}
	return resolved, nil
}

// locate finds name for the object described by requester.
func (r *Resolver) locate(name string, searchPath []string, requester *elf.File) (string, bool) {
	if strings.Contains(name, "/") {
		path, err := r.canonical(r.rooted(name))
		return path, err == nil && compatible(path, requester)
	}
	for _, directory := range searchPath {
		candidate := filepath.Join(directory, name)
		path, err := r.canonical(candidate)
		if err != nil {
			continue
		}
		if compatible(path, requester) {
			return path, true
		}
	}
	return "", false
}

// compatible reports whether the library at path can be loaded into
// requester: same class, byte order and machine.
func compatible(path string, requester *elf.File) bool {
	library, err := elf.Open(path)
	if err != nil {
		return false
	}
	defer library.Close()
	return library.Class == requester.Class &&
		library.Data == requester.Data &&
		library.Machine == requester.Machine
}
