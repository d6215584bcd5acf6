// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// scriptgate-writepv is a widget script: the host runner starts it as
//
//	scriptgate-writepv [flags] <port>
//
// The widget's first PV holds the name of a target PV and its second PV
// holds the value to write. The script waits for the target to have a
// value, writes, and shows an error dialog on the widget if the target
// never gets a value or the write fails.
//
// It is the compiled counterpart of an interpreted script, and runs with
// the host's default (empty) interpreter setting.
package main
