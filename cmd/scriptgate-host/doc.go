// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// scriptgate-host loads a display fixture and serves its widgets, PVs
// and utility objects to external scripts over loopback TCP.
//
// Standalone mode (default) prints the listening port on stdout and
// serves until SIGINT or SIGTERM. Script mode (--script) installs the
// table for the selected widget, runs the script once as
//
//	<interpreter> <script> <port>
//
// and exits with the script's result. Without an interpreter the script
// is executed directly as "<script> <port>"; scriptgate-writepv is such
// a script.
package main
