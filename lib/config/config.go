// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"errors"
	"fmt"
	"net"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"time"

	"gopkg.in/yaml.v3"
)

// Environment represents the deployment environment.
type Environment string

const (
	// Development is for local development machines.
	Development Environment = "development"
	// Staging is for pre-production testing.
	Staging Environment = "staging"
	// Production is for production deployments.
	Production Environment = "production"
)

// Config is the configuration of a gateway host.
type Config struct {
	// Environment identifies the deployment type (development, staging, production).
	Environment Environment `yaml:"environment"`

	// Paths configures directory locations.
	Paths PathsConfig `yaml:"paths"`

	// Host configures the listening endpoint.
	Host HostConfig `yaml:"host"`

	// Runner configures how scripts are started.
	Runner RunnerConfig `yaml:"runner"`

	// EnvironmentOverrides contains per-environment overrides.
	// These are applied after the base config is loaded.
	Development *ConfigOverrides `yaml:"development,omitempty"`
	Staging     *ConfigOverrides `yaml:"staging,omitempty"`
	Production  *ConfigOverrides `yaml:"production,omitempty"`
}

// ConfigOverrides contains fields that can be overridden per environment.
type ConfigOverrides struct {
	Paths  *PathsConfig  `yaml:"paths,omitempty"`
	Host   *HostConfig   `yaml:"host,omitempty"`
	Runner *RunnerConfig `yaml:"runner,omitempty"`
}

// PathsConfig configures directory locations.
type PathsConfig struct {
	// Root is the base directory for gateway data.
	Root string `yaml:"root"`

	// Displays holds display fixtures. Relative display names are
	// resolved against it.
	Displays string `yaml:"displays"`

	// Scripts holds the scripts attached to widgets. Relative script
	// names are resolved against it.
	Scripts string `yaml:"scripts"`
}

// HostConfig configures the gateway endpoint.
type HostConfig struct {
	// Address is the TCP listen address. It must be a loopback address.
	// Default: 127.0.0.1:0 (ephemeral port)
	Address string `yaml:"address"`

	// Display is the fixture loaded at startup.
	Display string `yaml:"display"`

	// Widget is the widget whose table scripts receive by default.
	Widget string `yaml:"widget"`

	// CallbackQueue is the number of value notifications buffered per
	// session before new ones are dropped.
	// Default: 64 (development), 16 (production)
	CallbackQueue int `yaml:"callback_queue"`
}

// RunnerConfig configures script execution.
type RunnerConfig struct {
	// Interpreter runs scripts. Empty runs each script as an
	// executable, which is how Go scripts built on script.Run (such as
	// scriptgate-writepv) are started.
	// Default: empty
	Interpreter string `yaml:"interpreter"`

	// Timeout bounds one script run, as a Go duration. Empty or "0"
	// means no limit.
	// Default: none (development), 60s (production)
	Timeout string `yaml:"timeout"`
}

// Default returns the default configuration.
// These defaults are used as a base before loading the config file.
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	defaultRoot := filepath.Join(homeDir, ".cache", "scriptgate")

	return &Config{
		Environment: Development,
		Paths: PathsConfig{
			Root:     defaultRoot,
			Displays: filepath.Join(defaultRoot, "displays"),
			Scripts:  filepath.Join(defaultRoot, "scripts"),
		},
		Host: HostConfig{
			Address:       "127.0.0.1:0",
			CallbackQueue: 64,
		},
	}
}

// Load loads configuration from the SCRIPTGATE_CONFIG environment
// variable. If it is not set, Load fails.
func Load() (*Config, error) {
	configPath := os.Getenv("SCRIPTGATE_CONFIG")
	if configPath == "" {
		return nil, fmt.Errorf("SCRIPTGATE_CONFIG environment variable not set; " +
			"set it to the path of your scriptgate.yaml config file, or use --config flag")
	}

	return LoadFile(configPath)
}

// LoadFile loads configuration from a specific file path.
//
// Environment variables do not override config values. The only
// expansion performed is ${HOME} and similar path variables.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	if err := cfg.loadFile(path); err != nil {
		return nil, err
	}

	cfg.applyEnvironmentOverrides()
	cfg.expandVariables()

	return cfg, nil
}

// loadFile loads a single configuration file, merging into the current config.
func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parsing %s: %w", path, err)
	}
	return nil
}

// applyEnvironmentOverrides applies the environment-specific overrides.
func (c *Config) applyEnvironmentOverrides() {
	var overrides *ConfigOverrides

	switch c.Environment {
	case Development:
		overrides = c.Development
	case Staging:
		overrides = c.Staging
	case Production:
		overrides = c.Production
		if overrides == nil {
			c.applyProductionDefaults()
		}
	}

	if overrides == nil {
		return
	}

	if overrides.Paths != nil {
		if overrides.Paths.Root != "" {
			c.Paths.Root = overrides.Paths.Root
		}
		if overrides.Paths.Displays != "" {
			c.Paths.Displays = overrides.Paths.Displays
		}
		if overrides.Paths.Scripts != "" {
			c.Paths.Scripts = overrides.Paths.Scripts
		}
	}

	if overrides.Host != nil {
		if overrides.Host.Address != "" {
			c.Host.Address = overrides.Host.Address
		}
		if overrides.Host.Display != "" {
			c.Host.Display = overrides.Host.Display
		}
		if overrides.Host.Widget != "" {
			c.Host.Widget = overrides.Host.Widget
		}
		if overrides.Host.CallbackQueue != 0 {
			c.Host.CallbackQueue = overrides.Host.CallbackQueue
		}
	}

	if overrides.Runner != nil {
		if overrides.Runner.Interpreter != "" {
			c.Runner.Interpreter = overrides.Runner.Interpreter
		}
		if overrides.Runner.Timeout != "" {
			c.Runner.Timeout = overrides.Runner.Timeout
		}
	}
}

// applyProductionDefaults tightens values the file left at their
// development defaults. A queue explicitly set to the default length is
// indistinguishable from an unset one and is tightened too.
func (c *Config) applyProductionDefaults() {
	defaults := Default()
	if c.Host.CallbackQueue == defaults.Host.CallbackQueue {
		c.Host.CallbackQueue = 16
	}
	if c.Runner.Timeout == defaults.Runner.Timeout {
		c.Runner.Timeout = "60s"
	}
}

// expandVariables expands ${VAR} and ${VAR:-default} patterns in paths.
func (c *Config) expandVariables() {
	vars := map[string]string{
		"SCRIPTGATE_ROOT": c.Paths.Root,
		"HOME":            os.Getenv("HOME"),
	}

	c.Paths.Root = expandVars(c.Paths.Root, vars)
	vars["SCRIPTGATE_ROOT"] = c.Paths.Root

	c.Paths.Displays = expandVars(c.Paths.Displays, vars)
	c.Paths.Scripts = expandVars(c.Paths.Scripts, vars)
	c.Host.Display = expandVars(c.Host.Display, vars)
}

var varPattern = regexp.MustCompile(`\$\{([^}:]+)(?::-([^}]*))?\}`)

// expandVars expands ${VAR} and ${VAR:-default} patterns.
func expandVars(s string, vars map[string]string) string {
	return varPattern.ReplaceAllStringFunc(s, func(match string) string {
		parts := varPattern.FindStringSubmatch(match)
		if len(parts) < 2 {
			return match
		}

		name := parts[1]
		defaultValue := ""
		if len(parts) >= 3 {
			defaultValue = parts[2]
		}

		// Check provided vars first, then environment.
		if value, ok := vars[name]; ok && value != "" {
			return value
		}
		if value := os.Getenv(name); value != "" {
			return value
		}
		return defaultValue
	})
}

// Validate checks the configuration for errors.
func (c *Config) Validate() error {
	var errs []error

	if !slices.Contains([]Environment{Development, Staging, Production}, c.Environment) {
		errs = append(errs, fmt.Errorf("invalid environment: %s", c.Environment))
	}

	if c.Paths.Root == "" {
		errs = append(errs, fmt.Errorf("paths.root is required"))
	}

	if err := validateLoopback(c.Host.Address); err != nil {
		errs = append(errs, fmt.Errorf("host.address: %w", err))
	}

	if c.Host.CallbackQueue <= 0 {
		errs = append(errs, fmt.Errorf("host.callback_queue must be positive, got %d", c.Host.CallbackQueue))
	}

	if _, err := c.RunTimeout(); err != nil {
		errs = append(errs, err)
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

func validateLoopback(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("%q is not a loopback address", address)
	}
	return nil
}

// RunTimeout parses Runner.Timeout. Zero means no limit.
func (c *Config) RunTimeout() (time.Duration, error) {
	if c.Runner.Timeout == "" {
		return 0, nil
	}
	timeout, err := time.ParseDuration(c.Runner.Timeout)
	if err != nil {
		return 0, fmt.Errorf("runner.timeout: %w", err)
	}
	if timeout < 0 {
		return 0, fmt.Errorf("runner.timeout must not be negative, got %s", c.Runner.Timeout)
	}
	return timeout, nil
}

// DisplayPath resolves a display fixture name. Absolute paths are
// returned unchanged; relative names are joined to Paths.Displays.
func (c *Config) DisplayPath(name string) string {
	return resolve(c.Paths.Displays, name)
}

// ScriptPath resolves a script name the same way against Paths.Scripts.
func (c *Config) ScriptPath(name string) string {
	return resolve(c.Paths.Scripts, name)
}

func resolve(dir, name string) string {
	if name == "" || filepath.IsAbs(name) || dir == "" {
		return name
	}
	return filepath.Join(dir, name)
}

// EnsurePaths creates all configured directories if they don't exist.
func (c *Config) EnsurePaths() error {
	paths := []string{
		c.Paths.Root,
		c.Paths.Displays,
		c.Paths.Scripts,
	}

	for _, path := range paths {
		if path == "" {
			continue
		}
		if err := os.MkdirAll(path, 0755); err != nil {
			return fmt.Errorf("creating %s: %w", path, err)
		}
	}

	return nil
}
