// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for scriptgate packages.
//
// [RequireReceive] and [RequireClosed] encapsulate the timeout safety
// valve pattern (select with time.After fallback) so that individual
// tests do not need direct time.After calls.
//
// [RequireRefused] and [RequireAccepting] check, from the outside, whether
// something is listening on a loopback address. The gateway tests use
// them to prove that shutdown leaves no listener behind.
//
// [UniqueName] and [LocalPV] generate monotonically increasing names for test
// disambiguation (PV names, widget names).
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
