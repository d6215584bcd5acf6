// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package script

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bureau-foundation/scriptgate/gateway"
	"github.com/bureau-foundation/scriptgate/lib/clock"
)

// ErrTimeout is returned by AwaitValue when the value did not arrive in
// time.
var ErrTimeout = errors.New("script: timed out waiting for a value")

// PortFromArgs returns the gateway port, which the host passes as the
// last argument. No arguments means no session was requested and
// yields 0.
func PortFromArgs(args []string) (int, error) {
	if len(args) == 0 {
		return 0, nil
	}
	last := args[len(args)-1]
	port, err := strconv.Atoi(last)
	if err != nil {
		return 0, fmt.Errorf("script: port argument %q is not a number", last)
	}
	if port > 65535 {
		return 0, fmt.Errorf("script: port %d out of range", port)
	}
	return port, nil
}

// Run reads the port from args and runs body in a gateway session. A
// missing or non-positive port returns gateway.ErrNotConnected without
// calling body.
func Run(ctx context.Context, args []string, options gateway.SessionOptions, body func(context.Context, *gateway.Session) error) error {
	port, err := PortFromArgs(args)
	if err != nil {
		return err
	}
	return gateway.WithSession(ctx, port, options, body)
}

// Reader is anything with a current value that may not exist yet.
// gateway.PV satisfies it.
type Reader interface {
	Read(ctx context.Context) (any, error)
}

// AwaitValue reads pv every interval until it returns a non-nil value
// or timeout has elapsed on clk. Errors from Read end the wait at once.
func AwaitValue(ctx context.Context, clk clock.Clock, pv Reader, interval, timeout time.Duration) (any, error) {
	deadline := clk.Now().Add(timeout)
	for {
		value, err := pv.Read(ctx)
		if err != nil {
			return nil, err
		}
		if value != nil {
			return value, nil
		}
		if !clk.Now().Before(deadline) {
			return nil, ErrTimeout
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-clk.After(interval):
		}
	}
}
