// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// scriptgate is a command-line client for a running scriptgate host. It
// opens one gateway session per invocation, performs a single
// operation on the host's table, and shuts the session down.
//
// On a terminal values are printed as "name = value"; when stdout is a
// pipe only the bare value is printed, so the output composes with
// shell scripts.
package main
