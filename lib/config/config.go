// Copyright 2026 The Grackle Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/tidwall/jsonc"
	"gopkg.in/yaml.v3"

	"github.com/grackle-zero/grackle/lib/channel"
	"github.com/grackle-zero/grackle/lib/packet"
)

// EnvName is the environment variable naming the config file when no
// --config flag is given.
const EnvName = "GRACKLE_CONFIG"

// Config is the configuration of the grackle command.
type Config struct {
	// Run configures launches made by "grackle run".
	Run RunConfig `yaml:"run" json:"run"`

	// Sandbox configures the restriction backend.
	Sandbox SandboxConfig `yaml:"sandbox" json:"sandbox"`

	// Test configures "grackle test".
	Test TestConfig `yaml:"test" json:"test"`
}

// RunConfig describes the default launch. Command-line flags override
// individual fields.
type RunConfig struct {
	// Dir is the child's working directory. Empty means the current
	// directory of grackle itself.
	Dir string `yaml:"dir" json:"dir"`

	// Env is set in the child verbatim.
	Env map[string]string `yaml:"env" json:"env"`

	// PassEnv names variables copied from grackle's own environment
	// when set there. Env wins on conflict.
	PassEnv []string `yaml:"pass_env" json:"pass_env"`

	// Stdin, Stdout and Stderr are channel modes for slots 0-2:
	// "keep" hands grackle's own stream to the child, "to-child" and
	// "from-child" relay through a pipe, "closed" leaves the slot empty.
	Stdin  string `yaml:"stdin" json:"stdin"`
	Stdout string `yaml:"stdout" json:"stdout"`
	Stderr string `yaml:"stderr" json:"stderr"`

	// Channels adds slots above 2, keyed by descriptor number.
	Channels map[int]string `yaml:"channels" json:"channels"`

	// MaxPacket is the payload limit for framed relaying.
	MaxPacket int `yaml:"max_packet" json:"max_packet"`
}

// SandboxConfig configures the restriction backend.
type SandboxConfig struct {
	// HelperPath is the binary re-executed to install restrictions on
	// Linux. Empty means grackle itself.
	HelperPath string `yaml:"helper_path" json:"helper_path"`

	// RequireNetworkRestriction refuses to launch unless the kernel's
	// Landlock ABI also denies TCP, in addition to the syscall filter.
	RequireNetworkRestriction bool `yaml:"require_network_restriction" json:"require_network_restriction"`
}

// TestConfig configures the escape probe suite.
type TestConfig struct {
	// Timeout bounds each probe, as a Go duration string.
	Timeout string `yaml:"timeout" json:"timeout"`

	// Categories limits the suite. Empty runs every probe.
	Categories []string `yaml:"categories" json:"categories"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Run: RunConfig{
			Stdin:     "keep",
			Stdout:    "keep",
			Stderr:    "keep",
			PassEnv:   []string{"TERM", "LANG"},
			MaxPacket: packet.DefaultMaxPayload,
		},
		Test: TestConfig{
			Timeout: "30s",
		},
	}
}

// Load loads configuration from the GRACKLE_CONFIG environment
// variable. There is no search path: if GRACKLE_CONFIG is not set,
// Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv(EnvName)
	if configPath == "" {
		return nil, fmt.Errorf("%s environment variable not set; "+
			"set it to the path of your grackle config file, or use --config flag", EnvName)
	}
	return LoadFile(configPath)
}

// Resolve loads flagPath if set, then GRACKLE_CONFIG if set, and
// otherwise returns Default. It is the single entry point for commands
// whose config file is optional.
func Resolve(flagPath string) (*Config, error) {
	if flagPath != "" {
		return LoadFile(flagPath)
	}
	if os.Getenv(EnvName) != "" {
		return Load()
	}
	return Default(), nil
}

// LoadFile loads configuration from path over the defaults. Files
// ending in .json or .jsonc are JSON with comments; anything else is
// YAML. Unknown keys are errors in both.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	cfg := Default()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".jsonc":
		err = cfg.decodeJSON(data)
	default:
		err = cfg.decodeYAML(data)
	}
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	cfg.expandVariables()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return cfg, nil
}

func (c *Config) decodeYAML(data []byte) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func (c *Config) decodeJSON(data []byte) error {
	decoder := json.NewDecoder(bytes.NewReader(jsonc.ToJSON(data)))
	decoder.DisallowUnknownFields()
	return decoder.Decode(c)
}

// expandVariables expands ${VAR} and ${VAR:-default} in path fields and
// in Env values.
func (c *Config) expandVariables() {
	c.Run.Dir = expandVars(c.Run.Dir)
	c.Sandbox.HelperPath = expandVars(c.Sandbox.HelperPath)
	for key, value := range c.Run.Env {
		c.Run.Env[key] = expandVars(value)
	}
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

func expandVars(s string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if value := os.Getenv(parts[1]); value != "" {
			return value
		}
		return parts[2]
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	for name, mode := range map[string]string{"run.stdin": c.Run.Stdin, "run.stdout": c.Run.Stdout, "run.stderr": c.Run.Stderr} {
		if _, err := channel.ParseMode(mode); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", name, err))
		}
	}
	for slot, mode := range c.Run.Channels {
		if slot < 3 || slot > channel.MaxSlot {
			errs = append(errs, fmt.Errorf("run.channels: slot %d must be between 3 and %d (use run.stdin/stdout/stderr for 0-2)", slot, channel.MaxSlot))
		}
		if _, err := channel.ParseMode(mode); err != nil {
			errs = append(errs, fmt.Errorf("run.channels[%d]: %w", slot, err))
		}
	}
	if c.Run.MaxPacket <= 0 || uint64(c.Run.MaxPacket) > math.MaxUint32 {
		errs = append(errs, fmt.Errorf("run.max_packet must be between 1 and %d", uint64(math.MaxUint32)))
	}
	for key := range c.Run.Env {
		if key == "" || strings.ContainsAny(key, "=\x00") {
			errs = append(errs, fmt.Errorf("run.env: invalid variable name %q", key))
		}
	}
	if c.Test.Timeout != "" {
		if timeout, err := time.ParseDuration(c.Test.Timeout); err != nil || timeout <= 0 {
			errs = append(errs, fmt.Errorf("test.timeout: %q is not a positive duration", c.Test.Timeout))
		}
	}

	return errors.Join(errs...)
}

// ChannelSet returns the channel set described by the run section.
func (r *RunConfig) ChannelSet() (channel.Set, error) {
	modes := make(map[int]channel.Mode, len(r.Channels)+3)
	for slot, name := range []string{r.Stdin, r.Stdout, r.Stderr} {
		mode, err := channel.ParseMode(name)
		if err != nil {
			return channel.Set{}, fmt.Errorf("slot %d: %w", slot, err)
		}
		modes[slot] = mode
	}
	for slot, name := range r.Channels {
		mode, err := channel.ParseMode(name)
		if err != nil {
			return channel.Set{}, fmt.Errorf("slot %d: %w", slot, err)
		}
		modes[slot] = mode
	}
	return channel.FromMap(modes), nil
}

// Environment returns the child's environment: PassEnv entries found
// by lookup, overridden by Env.
func (r *RunConfig) Environment(lookup func(string) (string, bool)) map[string]string {
	env := make(map[string]string, len(r.Env)+len(r.PassEnv))
	for _, name := range r.PassEnv {
		if value, ok := lookup(name); ok {
			env[name] = value
		}
	}
	for key, value := range r.Env {
		env[key] = value
	}
	return env
}

// TestTimeout returns the per-probe timeout, or zero for none.
func (t *TestConfig) TestTimeout() time.Duration {
	timeout, err := time.ParseDuration(t.Timeout)
	if err != nil {
		return 0
	}
	return timeout
}

// Describe returns a stable, human-readable summary of the settings
// that shape a launch, for "grackle check".
func (c *Config) Describe() []string {
	lines := []string{
		fmt.Sprintf("stdio: %s %s %s", c.Run.Stdin, c.Run.Stdout, c.Run.Stderr),
		fmt.Sprintf("max packet: %d bytes", c.Run.MaxPacket),
	}
	if len(c.Run.Channels) > 0 {
		slots := make([]int, 0, len(c.Run.Channels))
		for slot := range c.Run.Channels {
			slots = append(slots, slot)
		}
		sort.Ints(slots)
		for _, slot := range slots {
			lines = append(lines, fmt.Sprintf("slot %d: %s", slot, c.Run.Channels[slot]))
		}
	}
	if c.Sandbox.HelperPath != "" {
		lines = append(lines, "helper: "+c.Sandbox.HelperPath)
	}
	return lines
}
