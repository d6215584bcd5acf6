// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConnected is returned by operations that need a session when
	// the channel is nil, and by WithSession when no port was given.
	ErrNotConnected = errors.New("gateway: not connected")

	// ErrClosed is returned by every operation after Shutdown.
	ErrClosed = errors.New("gateway: channel closed")

	// ErrTransport marks a failure of the connection itself. Once a call
	// fails with ErrTransport, every later call on the channel fails the
	// same way; only Shutdown still succeeds.
	ErrTransport = errors.New("gateway: transport failed")

	// ErrMissingKey is returned when the reference table has no entry for
	// a key the caller asked for.
	ErrMissingKey = errors.New("gateway: reference table has no such key")

	// ErrKindMismatch is returned when a reference names a different kind
	// of object than the caller expected, or a single entry is read as a
	// list (or the reverse).
	ErrKindMismatch = errors.New("gateway: reference has the wrong kind")

	// ErrForeignHandle is returned when a handle obtained from one
	// channel is passed to a call on another.
	ErrForeignHandle = errors.New("gateway: handle belongs to a different channel")

	// ErrNotFound is returned by lookups (a widget or process variable by
	// name) when the host found nothing.
	ErrNotFound = errors.New("gateway: host returned no object")
)

// RemoteError is a failure reported by the host for one call: the
// object does not exist, the method is unknown, the arguments have the
// wrong type, or the host-side operation itself failed. The channel
// remains usable after a RemoteError.
type RemoteError struct {
	Action  string
	Object  uint64
	Method  string
	Message string
}

func (e *RemoteError) Error() string {
	if e.Method != "" {
		return fmt.Sprintf("host error on %s#%d.%s: %s", e.Action, e.Object, e.Method, e.Message)
	}
	return fmt.Sprintf("host error on %q: %s", e.Action, e.Message)
}
