// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package wire defines the CBOR message types of the script gateway
// protocol. Both the external side (package gateway) and the host side
// (package host) import this package so the wire types are defined once
// rather than mirrored.
//
// A gateway session uses two TCP connections on the loopback interface:
//
//   - The main connection, dialed by the external process to the host's
//     listening port. The external process sends requests; the host
//     answers each one before the next is read.
//   - The callback connection, dialed by the host to the listener the
//     external process advertised with [ActionSetCallback]. The host
//     sends requests (notifications) and the external process answers.
//
// Both connections carry the same envelope: a stream of [Request]
// values in one direction and [Response] values in the other, matched
// by ID. CBOR is self-delimiting, so no further framing is needed.
package wire
