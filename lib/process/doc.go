// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package process provides binary entrypoint helpers for the scriptgate
// binaries. It centralizes the raw I/O that happens after run() returns,
// when the structured logger may not exist:
//
//   - Fatal error reporting to stderr.
//   - Process exit with the code an [ExitError] requests.
package process
