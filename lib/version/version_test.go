// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package version

import (
	"runtime"
	"strings"
	"testing"
)

func setBuildInfo(t *testing.T, commit, dirty, built string) {
	t.Helper()
	savedCommit, savedDirty, savedBuilt := GitCommit, GitDirty, BuildTime
	t.Cleanup(func() { GitCommit, GitDirty, BuildTime = savedCommit, savedDirty, savedBuilt })
	GitCommit, GitDirty, BuildTime = commit, dirty, built
}

func TestInfo(t *testing.T) {
	setBuildInfo(t, "abc1234", "false", "2026-02-10T00:00:00Z")
	if got, want := Info(), Version+" (abc1234, 2026-02-10T00:00:00Z)"; got != want {
		t.Errorf("Info() = %q, want %q", got, want)
	}

	GitDirty = "true"
	if got := Info(); !strings.Contains(got, "abc1234-dirty") {
		t.Errorf("Info() with dirty tree = %q", got)
	}
}

func TestLine(t *testing.T) {
	setBuildInfo(t, "abc1234", "false", "now")
	if got := Line("scriptgate-host"); got != "scriptgate-host "+Info() {
		t.Errorf("Line() = %q", got)
	}
}

func TestFull(t *testing.T) {
	full := Full()
	if !strings.HasPrefix(full, Info()) {
		t.Errorf("Full() does not start with Info(): %q", full)
	}
	if !strings.Contains(full, runtime.Version()) || !strings.Contains(full, runtime.GOOS+"/"+runtime.GOARCH) {
		t.Errorf("Full() missing runtime details: %q", full)
	}
	if Short() != Version || Commit() != GitCommit {
		t.Error("Short or Commit disagree with the build variables")
	}
}
