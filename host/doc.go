// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package host is the side of the script gateway that owns the live
// objects: widgets, process variables, and the PVUtil and ScriptUtil
// helpers. External processes reach it through package gateway.
//
// A [Server] listens on loopback TCP and runs one session per accepted
// connection. Each session speaks the request/response envelope from
// lib/wire: hello, set-callback, get-table, set-table, invoke and bye.
// Objects are addressed by the ids a [Registry] assigns; an invoke
// names an object id and a method, and the object's [Object.Method]
// implementation handles it.
//
// The server keeps one named reference table. Every session reads the
// same table, and a set-table from any session replaces it for all.
//
// Value subscriptions are delivered back to the external process over
// a separate connection that the host dials to the address given in
// set-callback. Each session has its own queue and delivery goroutine,
// so a slow external process delays only its own notifications.
//
// [LoadDisplay] builds the object graph from a YAML or JSONC fixture,
// and [Runner] starts scripts against a running server the way a
// display runtime does: interpreter, script path, port.
package host
