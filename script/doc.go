// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package script holds helpers for programs that a display host starts
// with its gateway port as the last command-line argument.
//
// [Run] reads the port and runs a function inside a gateway session.
// [AwaitValue] polls a process variable until it has a value, for
// scripts that start before the variable is connected. Waiting is the
// caller's choice: the gateway itself never retries.
package script
