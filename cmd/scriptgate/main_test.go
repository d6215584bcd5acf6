// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/bureau-foundation/scriptgate/host"
	"github.com/bureau-foundation/scriptgate/lib/process"
)

const panelDisplay = `
name: panel
pvs:
  - name: loc://level
    value: 42
  - name: loc://empty
widgets:
  - name: tank
    type: meter
    properties:
      label: Tank
    pvs: [loc://level, loc://empty]
`

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{
		Level: slog.LevelError,
	}))
}

func startPanel(t *testing.T) (*host.Server, *host.Display) {
	t.Helper()
	display, err := host.ParseDisplay([]byte(panelDisplay), "yaml", testLogger())
	if err != nil {
		t.Fatalf("ParseDisplay: %v", err)
	}
	server := host.NewServer(host.Options{Logger: testLogger()})
	if err := server.Start(context.Background()); err != nil {
		t.Fatalf("starting host: %v", err)
	}
	t.Cleanup(func() { server.Close() })
	table, err := display.TableFor(server.Registry(), "tank")
	if err != nil {
		t.Fatalf("TableFor: %v", err)
	}
	server.SetTable(table)
	return server, display
}

func newTestClient(port int) (*client, *bytes.Buffer) {
	var out bytes.Buffer
	return &client{
		port:     port,
		timeout:  200 * time.Millisecond,
		interval: 10 * time.Millisecond,
		out:      &out,
		logger:   testLogger(),
	}, &out
}

func runCommand(t *testing.T, c *client, out *bytes.Buffer, args ...string) string {
	t.Helper()
	out.Reset()
	if err := c.dispatch(context.Background(), args[0], args[1:]); err != nil {
		t.Fatalf("scriptgate %s: %v", strings.Join(args, " "), err)
	}
	return out.String()
}

func TestCommandsAgainstHost(t *testing.T) {
	server, display := startPanel(t)
	c, out := newTestClient(server.Port())

	table := runCommand(t, c, out, "table")
	for _, key := range []string{"widget\t", "pvs\t[2]", "PVUtil\t", "ScriptUtil\t"} {
		if !strings.Contains(table, key) {
			t.Errorf("table output missing %q:\n%s", key, table)
		}
	}

	if got := runCommand(t, c, out, "read", "loc://level"); got != "42\n" {
		t.Errorf("read = %q, want 42", got)
	}

	runCommand(t, c, out, "write", "loc://level", "7.5")
	level, _ := display.PV("loc://level")
	if level.Value() != 7.5 {
		t.Errorf("PV after write = %v, want 7.5", level.Value())
	}

	if got := runCommand(t, c, out, "get", "label"); got != "Tank\n" {
		t.Errorf("get = %q, want Tank", got)
	}
	runCommand(t, c, out, "set", "label", "Reservoir")
	tank, _ := display.Widget("tank")
	if value, _ := tank.Property("label"); value != "Reservoir" {
		t.Errorf("label after set = %v", value)
	}

	c.pretty = true
	if got := runCommand(t, c, out, "read", "loc://level"); got != "loc://level = 7.5\n" {
		t.Errorf("pretty read = %q", got)
	}

	c.raw = true
	if got := runCommand(t, c, out, "table"); !strings.Contains(got, "39999(") {
		t.Errorf("raw table does not show handle tags: %s", got)
	}
}

func TestAwaitTimesOutWithExitCode(t *testing.T) {
	server, _ := startPanel(t)
	c, _ := newTestClient(server.Port())

	err := c.dispatch(context.Background(), "await", []string{"loc://empty"})
	var exit *process.ExitError
	if !errors.As(err, &exit) || exit.Code != exitTimeout {
		t.Fatalf("await of an empty PV: err = %v, want exit code %d", err, exitTimeout)
	}
}

func TestAwaitReturnsValue(t *testing.T) {
	server, display := startPanel(t)
	c, out := newTestClient(server.Port())
	c.timeout = 5 * time.Second

	empty, _ := display.PV("loc://empty")
	go func() {
		time.Sleep(50 * time.Millisecond)
		empty.Write("ready")
	}()
	if got := runCommand(t, c, out, "await", "loc://empty"); got != "ready\n" {
		t.Errorf("await = %q, want ready", got)
	}
}

func TestCommandErrors(t *testing.T) {
	server, _ := startPanel(t)
	c, _ := newTestClient(server.Port())
	ctx := context.Background()

	tests := []struct {
		command string
		args    []string
		want    string
	}{
		{"read", nil, "usage"},
		{"write", []string{"loc://level"}, "usage"},
		{"read", []string{"loc://missing"}, "no PV"},
		{"reboot", nil, "unknown command"},
	}
	for _, tt := range tests {
		err := c.dispatch(ctx, tt.command, tt.args)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Errorf("%s %v: err = %v, want containing %q", tt.command, tt.args, err, tt.want)
		}
	}

	c.port = 0
	if err := c.dispatch(ctx, "table", nil); err == nil || !strings.Contains(err.Error(), "no host port") {
		t.Errorf("table without port: err = %v", err)
	}
}

func TestParseValue(t *testing.T) {
	tests := []struct {
		text string
		want any
	}{
		{"3.5", 3.5},
		{"10", 10.0},
		{"true", true},
		{"open", "open"},
		{"", ""},
	}
	for _, tt := range tests {
		if got := parseValue(tt.text); got != tt.want {
			t.Errorf("parseValue(%q) = %#v, want %#v", tt.text, got, tt.want)
		}
	}
}

func TestEnvPort(t *testing.T) {
	t.Setenv("SCRIPTGATE_PORT", "25333")
	if got := envPort(); got != 25333 {
		t.Errorf("envPort = %d, want 25333", got)
	}
	t.Setenv("SCRIPTGATE_PORT", "later")
	if got := envPort(); got != 0 {
		t.Errorf("envPort with garbage = %d, want 0", got)
	}
}
