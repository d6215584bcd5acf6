// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package gateway is the external-process side of the script gateway: a
// channel to a host process that exposes the host's live objects
// (widgets, process variables, utility objects) as remote handles.
//
// A [Channel] is created by [Connect] with the host's listening port and
// destroyed by [Channel.Shutdown]. Connect starts a callback listener on
// an ephemeral loopback port, dials the host, and then tells the host the
// callback listener's address. The exchange happens in that order
// because the listener's port is not known until the listener exists.
//
// Every handle operation is a synchronous round trip: the calling
// goroutine blocks until the host answers or the transport fails. Calls
// on one channel are strictly serialized. Nothing is retried. Callers
// that need to wait for host-side readiness (a process variable getting
// its first value) poll above the channel; see package script.
//
// The host hands each session a named reference table ([Table]), usually
// {"widget": <widget>, "pvs": [<pv>, ...]} plus optional "PVUtil" and
// "ScriptUtil". [Channel.FetchTable] returns a private copy; local changes
// reach the host only through [Channel.PublishTable].
//
// Most callers should use [WithSession], which connects, fetches the
// table, binds the well-known entries to typed handles, runs a function,
// and shuts the channel down on every exit path:
//
//	err := gateway.WithSession(ctx, port, gateway.SessionOptions{PVUtil: true},
//		func(ctx context.Context, session *gateway.Session) error {
//			value, err := session.PVUtil.GetDouble(ctx, session.PVs[0])
//			if err != nil {
//				return err
//			}
//			return session.Widget.SetProperty(ctx, "background_color", colorFor(value))
//		})
//
// Connect and Shutdown remain available for callers that need finer
// control over the channel's lifetime. Such callers must make Shutdown
// reachable from every exit path, typically with defer.
//
// A nil *Channel means "no session requested" (Connect with a port <= 0).
// Shutdown on a nil channel is a no-op and FetchTable returns a nil
// table, so callers can thread an optional channel through without
// special-casing it.
package gateway
