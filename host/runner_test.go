// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/bureau-foundation/scriptgate/lib/wire"
)

func requireShell(t *testing.T) string {
	t.Helper()
	shell, err := exec.LookPath("sh")
	if err != nil {
		t.Skip("no sh on PATH")
	}
	return shell
}

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("writing script: %v", err)
	}
	return path
}

func TestRunnerPassesPortAndInstallsTable(t *testing.T) {
	shell := requireShell(t)
	server, display := startPanel(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "port.txt")
	script := writeScript(t, dir, "record.sh", fmt.Sprintf("echo \"$1\" > %q\n", output))

	table, err := display.TableFor(server.Registry(), "alarm")
	if err != nil {
		t.Fatalf("TableFor: %v", err)
	}
	runner := &Runner{Server: server, Interpreter: shell, Logger: testLogger()}
	if err := runner.Run(context.Background(), Job{Script: script, Table: table}); err != nil {
		t.Fatalf("Run: %v", err)
	}

	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("script did not write its argument: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(server.Port()) {
		t.Errorf("script received port %q, want %d", got, server.Port())
	}
	if diff := cmp.Diff(table, server.Table()); diff != "" {
		t.Errorf("installed table (-want +got):\n%s", diff)
	}
}

func TestRunnerExecutesScriptWithoutInterpreter(t *testing.T) {
	requireShell(t)
	server, _ := startPanel(t)
	dir := t.TempDir()
	output := filepath.Join(dir, "port.txt")
	script := writeScript(t, dir, "record", fmt.Sprintf("#!/bin/sh\necho \"$1\" > %q\n", output))
	if err := os.Chmod(script, 0o755); err != nil {
		t.Fatalf("chmod: %v", err)
	}

	runner := &Runner{Server: server, Logger: testLogger()}
	if err := runner.Run(context.Background(), Job{Script: script, Table: wire.Table{}}); err != nil {
		t.Fatalf("Run: %v", err)
	}
	data, err := os.ReadFile(output)
	if err != nil {
		t.Fatalf("executable script did not run: %v", err)
	}
	if got := strings.TrimSpace(string(data)); got != strconv.Itoa(server.Port()) {
		t.Errorf("script received port %q, want %d", got, server.Port())
	}
}

func TestRunnerReportsFailure(t *testing.T) {
	shell := requireShell(t)
	server, _ := startPanel(t)
	script := writeScript(t, t.TempDir(), "fail.sh", "echo broken\nexit 3\n")

	runner := &Runner{Server: server, Interpreter: shell, Logger: testLogger()}
	if err := runner.Run(context.Background(), Job{Script: script, Table: wire.Table{}}); err == nil {
		t.Fatal("Run of a failing script returned nil")
	}
}

func TestRunnerRequiresConfiguration(t *testing.T) {
	runner := &Runner{}
	if err := runner.Run(context.Background(), Job{Script: "x"}); err == nil {
		t.Fatal("Run without a Server returned nil")
	}
}

func TestRunnerSubmitSkipsQueuedScript(t *testing.T) {
	shell := requireShell(t)
	server, _ := startPanel(t)
	dir := t.TempDir()
	gate := filepath.Join(dir, "gate")
	counter := filepath.Join(dir, "count")

	// The first script holds the worker until the gate file exists, so
	// the second script is guaranteed to still be queued when it is
	// submitted again.
	blocker := writeScript(t, dir, "block.sh",
		fmt.Sprintf("while [ ! -f %q ]; do sleep 0.01; done\n", gate))
	counted := writeScript(t, dir, "count.sh", fmt.Sprintf("echo run >> %q\n", counter))

	runner := &Runner{Server: server, Interpreter: shell, Logger: testLogger()}
	ctx := context.Background()
	if !runner.Submit(ctx, Job{Script: blocker}) {
		t.Fatal("blocker not queued")
	}
	if !runner.Submit(ctx, Job{Script: counted}) {
		t.Fatal("counted script not queued")
	}
	if runner.Submit(ctx, Job{Script: counted}) {
		t.Error("script already in the queue was queued again")
	}

	if err := os.WriteFile(gate, nil, 0o644); err != nil {
		t.Fatalf("opening gate: %v", err)
	}
	runner.Wait()

	data, err := os.ReadFile(counter)
	if err != nil {
		t.Fatalf("counted script never ran: %v", err)
	}
	if runs := strings.Count(string(data), "run"); runs != 1 {
		t.Errorf("counted script ran %d times, want 1", runs)
	}
}

func TestRunnerTimeoutStopsScript(t *testing.T) {
	shell := requireShell(t)
	server, _ := startPanel(t)
	script := writeScript(t, t.TempDir(), "hang.sh", "exec sleep 30\n")

	runner := &Runner{Server: server, Interpreter: shell, Timeout: 100 * time.Millisecond, Logger: testLogger()}
	started := time.Now()
	if err := runner.Run(context.Background(), Job{Script: script, Table: wire.Table{}}); err == nil {
		t.Fatal("Run of a hung script returned nil")
	}
	if elapsed := time.Since(started); elapsed > 10*time.Second {
		t.Errorf("timed-out script held Run for %v", elapsed)
	}
}
