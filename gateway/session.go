// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// SessionOptions selects what WithSession binds before running the body.
type SessionOptions struct {
	// PVUtil requires the "PVUtil" table entry and binds it to
	// Session.PVUtil.
	PVUtil bool

	// ScriptUtil requires the "ScriptUtil" table entry and binds it to
	// Session.ScriptUtil.
	ScriptUtil bool

	// Logger and ClientName are passed to Connect.
	Logger     *slog.Logger
	ClientName string
}

// Session is what WithSession hands to its body. Handles are valid only
// until the body returns.
type Session struct {
	Channel *Channel

	// Table is the session's private copy of the host's table.
	Table Table

	Widget Widget
	PVs    []PV

	// PVUtil and ScriptUtil are bound only when requested in
	// SessionOptions.
	PVUtil     PVUtil
	ScriptUtil ScriptUtil
}

// WithSession connects to the host on port, binds the well-known table
// entries, and runs body. The channel is shut down exactly once however
// body exits, including by panic or runtime.Goexit.
//
// A port <= 0 returns ErrNotConnected without calling body. If a
// required table entry is missing or has the wrong kind, body is not
// called. Errors from body and from Shutdown are joined.
func WithSession(ctx context.Context, port int, options SessionOptions, body func(context.Context, *Session) error) (err error) {
	channel, err := Connect(ctx, port, Options{Logger: options.Logger, ClientName: options.ClientName})
	if err != nil {
		return err
	}
	if channel == nil {
		return ErrNotConnected
	}
	defer func() {
		if shutdownErr := channel.Shutdown(); shutdownErr != nil {
			err = errors.Join(err, shutdownErr)
		}
	}()

	session, err := bindSession(ctx, channel, options)
	if err != nil {
		return err
	}
	return body(ctx, session)
}

func bindSession(ctx context.Context, channel *Channel, options SessionOptions) (*Session, error) {
	table, err := channel.FetchTable(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetching reference table: %w", err)
	}
	session := &Session{Channel: channel, Table: table}

	if session.Widget, err = table.Widget(channel); err != nil {
		return nil, err
	}
	if session.PVs, err = table.PVs(channel); err != nil {
		return nil, err
	}
	if options.PVUtil {
		if session.PVUtil, err = table.PVUtil(channel); err != nil {
			return nil, err
		}
	}
	if options.ScriptUtil {
		if session.ScriptUtil, err = table.ScriptUtil(channel); err != nil {
			return nil, err
		}
	}
	return session, nil
}
