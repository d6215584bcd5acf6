// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source for the parts of the
// gateway that wait: caller-level polling (script.AwaitValue).
//
// Production code takes a Clock and is handed Real(). Tests hand it
// Fake(), which only moves when Advance is called. WaitForTimers blocks
// until the code under test has registered its wait, which removes the
// race between "goroutine starts sleeping" and "test advances time":
//
//	fake := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go poll(fake)
//	fake.WaitForTimers(1)
//	fake.Advance(500 * time.Millisecond)
package clock
