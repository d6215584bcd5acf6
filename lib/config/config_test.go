// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "scriptgate.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	return configPath
}

func TestDefault(t *testing.T) {
	cfg := Default()

	if cfg.Environment != Development {
		t.Errorf("expected environment=development, got %s", cfg.Environment)
	}

	if cfg.Host.Address != "127.0.0.1:0" {
		t.Errorf("expected address=127.0.0.1:0, got %s", cfg.Host.Address)
	}

	if cfg.Host.CallbackQueue != 64 {
		t.Errorf("expected callback_queue=64, got %d", cfg.Host.CallbackQueue)
	}

	if cfg.Runner.Interpreter != "" {
		t.Errorf("expected scripts to run as executables by default, got interpreter %s", cfg.Runner.Interpreter)
	}

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config does not validate: %v", err)
	}
}

func TestLoad_RequiresScriptgateConfig(t *testing.T) {
	t.Setenv("SCRIPTGATE_CONFIG", "")

	_, err := Load()
	if err == nil {
		t.Fatal("expected error when SCRIPTGATE_CONFIG not set, got nil")
	}

	expectedMsg := "SCRIPTGATE_CONFIG environment variable not set"
	if !strings.HasPrefix(err.Error(), expectedMsg) {
		t.Errorf("expected error message to start with %q, got %q", expectedMsg, err.Error())
	}
}

func TestLoad_WithScriptgateConfig(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging
paths:
  root: /test/root
host:
  display: panel.yaml
`)
	t.Setenv("SCRIPTGATE_CONFIG", configPath)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}

	if cfg.Environment != Staging {
		t.Errorf("expected environment=staging, got %s", cfg.Environment)
	}

	if cfg.Paths.Root != "/test/root" {
		t.Errorf("expected root=/test/root, got %s", cfg.Paths.Root)
	}

	if cfg.Host.Display != "panel.yaml" {
		t.Errorf("expected display=panel.yaml, got %s", cfg.Host.Display)
	}
}

func TestLoadFile(t *testing.T) {
	configPath := writeConfig(t, `
environment: staging

paths:
  root: /custom/root
  displays: /custom/displays

host:
  address: 127.0.0.1:25333
  widget: gauge
  callback_queue: 8

runner:
  interpreter: /usr/bin/python3.12
  timeout: 15s
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Displays != "/custom/displays" {
		t.Errorf("expected displays=/custom/displays, got %s", cfg.Paths.Displays)
	}

	if cfg.Host.Address != "127.0.0.1:25333" {
		t.Errorf("expected address=127.0.0.1:25333, got %s", cfg.Host.Address)
	}

	if cfg.Host.Widget != "gauge" {
		t.Errorf("expected widget=gauge, got %s", cfg.Host.Widget)
	}

	if cfg.Host.CallbackQueue != 8 {
		t.Errorf("expected callback_queue=8, got %d", cfg.Host.CallbackQueue)
	}

	if cfg.Runner.Interpreter != "/usr/bin/python3.12" {
		t.Errorf("expected interpreter=/usr/bin/python3.12, got %s", cfg.Runner.Interpreter)
	}

	timeout, err := cfg.RunTimeout()
	if err != nil || timeout != 15*time.Second {
		t.Errorf("RunTimeout = %v, %v; want 15s", timeout, err)
	}
}

func TestLoadFile_Errors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for a missing file")
	}

	configPath := writeConfig(t, "host: [not, a, mapping]\n")
	if _, err := LoadFile(configPath); err == nil {
		t.Error("expected error for malformed YAML")
	}
}

func TestEnvironmentOverrides(t *testing.T) {
	configPath := writeConfig(t, `
environment: production

paths:
  root: /default/root

host:
  callback_queue: 64

production:
  paths:
    root: /prod/root
  host:
    callback_queue: 4
  runner:
    timeout: 5m
`)

	cfg, err := LoadFile(configPath)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/prod/root" {
		t.Errorf("expected root=/prod/root, got %s", cfg.Paths.Root)
	}

	if cfg.Host.CallbackQueue != 4 {
		t.Errorf("expected callback_queue=4 from production override, got %d", cfg.Host.CallbackQueue)
	}

	if cfg.Runner.Timeout != "5m" {
		t.Errorf("expected timeout=5m, got %s", cfg.Runner.Timeout)
	}
}

func TestProductionDefaults(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, "environment: production\n"))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Host.CallbackQueue != 16 {
		t.Errorf("expected callback_queue=16 in production, got %d", cfg.Host.CallbackQueue)
	}

	if timeout, _ := cfg.RunTimeout(); timeout != time.Minute {
		t.Errorf("expected a 60s run timeout in production, got %v", timeout)
	}
}

func TestProductionDefaultsKeepExplicitValues(t *testing.T) {
	cfg, err := LoadFile(writeConfig(t, `
environment: production
host:
  callback_queue: 100
runner:
  timeout: 5m
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Host.CallbackQueue != 100 {
		t.Errorf("explicit callback_queue replaced by production default: got %d", cfg.Host.CallbackQueue)
	}
	if timeout, _ := cfg.RunTimeout(); timeout != 5*time.Minute {
		t.Errorf("explicit timeout replaced by production default: got %v", timeout)
	}
}

func TestEnvVarsDoNotOverride(t *testing.T) {
	// Only ${...} expansion consults the environment.
	t.Setenv("SCRIPTGATE_ROOT", "/env/root")
	t.Setenv("SCRIPTGATE_ENVIRONMENT", "staging")

	cfg, err := LoadFile(writeConfig(t, `
environment: development
paths:
  root: /file/root
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Environment != Development {
		t.Errorf("expected environment=development from file, got %s", cfg.Environment)
	}

	if cfg.Paths.Root != "/file/root" {
		t.Errorf("expected root=/file/root from file, got %s", cfg.Paths.Root)
	}
}

func TestPathExpansion(t *testing.T) {
	t.Setenv("HOME", "/home/operator")

	cfg, err := LoadFile(writeConfig(t, `
paths:
  root: ${HOME}/gate
  displays: ${SCRIPTGATE_ROOT}/displays
  scripts: ${SCRIPTS_DIR:-/opt/scripts}
host:
  display: ${SCRIPTGATE_ROOT}/displays/panel.yaml
`))
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}

	if cfg.Paths.Root != "/home/operator/gate" {
		t.Errorf("root = %s", cfg.Paths.Root)
	}
	if cfg.Paths.Displays != "/home/operator/gate/displays" {
		t.Errorf("displays = %s", cfg.Paths.Displays)
	}
	if cfg.Paths.Scripts != "/opt/scripts" {
		t.Errorf("scripts = %s", cfg.Paths.Scripts)
	}
	if cfg.Host.Display != "/home/operator/gate/displays/panel.yaml" {
		t.Errorf("host.display = %s", cfg.Host.Display)
	}
}

func TestExpandVars(t *testing.T) {
	tests := []struct {
		input    string
		vars     map[string]string
		expected string
	}{
		{
			input:    "${HOME}/scriptgate",
			vars:     map[string]string{"HOME": "/home/user"},
			expected: "/home/user/scriptgate",
		},
		{
			input:    "${MISSING_SCRIPTGATE_VAR:-default}",
			vars:     map[string]string{},
			expected: "default",
		},
		{
			input:    "${PRESENT:-default}",
			vars:     map[string]string{"PRESENT": "value"},
			expected: "value",
		},
		{
			input:    "${A}/${B}",
			vars:     map[string]string{"A": "first", "B": "second"},
			expected: "first/second",
		},
		{
			input:    "no variables here",
			vars:     map[string]string{},
			expected: "no variables here",
		},
	}

	for _, tt := range tests {
		result := expandVars(tt.input, tt.vars)
		if result != tt.expected {
			t.Errorf("expandVars(%q) = %q, want %q", tt.input, result, tt.expected)
		}
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid default config",
			modify:  func(c *Config) {},
			wantErr: false,
		},
		{
			name: "invalid environment",
			modify: func(c *Config) {
				c.Environment = "invalid"
			},
			wantErr: true,
		},
		{
			name: "empty root path",
			modify: func(c *Config) {
				c.Paths.Root = ""
			},
			wantErr: true,
		},
		{
			name: "non-loopback address",
			modify: func(c *Config) {
				c.Host.Address = "0.0.0.0:25333"
			},
			wantErr: true,
		},
		{
			name: "address without port",
			modify: func(c *Config) {
				c.Host.Address = "127.0.0.1"
			},
			wantErr: true,
		},
		{
			name: "ipv6 loopback",
			modify: func(c *Config) {
				c.Host.Address = "[::1]:0"
			},
			wantErr: false,
		},
		{
			name: "zero callback queue",
			modify: func(c *Config) {
				c.Host.CallbackQueue = 0
			},
			wantErr: true,
		},
		{
			name: "empty interpreter",
			modify: func(c *Config) {
				c.Runner.Interpreter = ""
			},
			wantErr: false,
		},
		{
			name: "unparseable timeout",
			modify: func(c *Config) {
				c.Runner.Timeout = "soon"
			},
			wantErr: true,
		},
		{
			name: "negative timeout",
			modify: func(c *Config) {
				c.Runner.Timeout = "-1s"
			},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(cfg)

			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestResolvePaths(t *testing.T) {
	cfg := Default()
	cfg.Paths.Displays = "/srv/displays"
	cfg.Paths.Scripts = "/srv/scripts"

	if got := cfg.DisplayPath("panel.yaml"); got != "/srv/displays/panel.yaml" {
		t.Errorf("DisplayPath(relative) = %s", got)
	}
	if got := cfg.DisplayPath("/tmp/panel.yaml"); got != "/tmp/panel.yaml" {
		t.Errorf("DisplayPath(absolute) = %s", got)
	}
	if got := cfg.ScriptPath("write_pv.py"); got != "/srv/scripts/write_pv.py" {
		t.Errorf("ScriptPath = %s", got)
	}
	if got := cfg.ScriptPath(""); got != "" {
		t.Errorf("ScriptPath(empty) = %q", got)
	}
}

func TestEnsurePaths(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := Default()
	cfg.Paths.Root = filepath.Join(tmpDir, "scriptgate")
	cfg.Paths.Displays = filepath.Join(cfg.Paths.Root, "displays")
	cfg.Paths.Scripts = filepath.Join(cfg.Paths.Root, "scripts")

	if err := cfg.EnsurePaths(); err != nil {
		t.Fatalf("EnsurePaths failed: %v", err)
	}

	for _, path := range []string{cfg.Paths.Root, cfg.Paths.Displays, cfg.Paths.Scripts} {
		info, err := os.Stat(path)
		if err != nil {
			t.Errorf("path %s not created: %v", path, err)
			continue
		}
		if !info.IsDir() {
			t.Errorf("path %s is not a directory", path)
		}
	}
}
