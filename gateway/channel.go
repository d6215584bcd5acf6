// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bureau-foundation/scriptgate/lib/codec"
	"github.com/bureau-foundation/scriptgate/lib/netutil"
	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// dialTimeout bounds the single connection attempt made by Connect. It
// covers only the connect phase; calls on an open channel have no
// timeout of their own.
const dialTimeout = 5 * time.Second

// byeTimeout bounds the farewell exchange during Shutdown, so that a
// wedged host cannot hold Shutdown open.
const byeTimeout = time.Second

// poisonedDeadline is a deadline in the past. Setting it on a connection
// makes any blocked read or write return immediately.
var poisonedDeadline = time.Unix(1, 0)

// Options configures Connect.
type Options struct {
	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-call events are logged at Debug level; lifecycle events
	// at Info.
	Logger *slog.Logger

	// ClientName is announced to the host in the hello handshake and
	// appears in the host's logs. Optional.
	ClientName string
}

// Channel is one session with a host process. All methods are safe for
// concurrent use, but calls are serialized: at most one request is in
// flight at a time.
type Channel struct {
	targetPort int
	session    string
	logger     *slog.Logger
	callbacks  *callbackServer

	// mu serializes requests on the stream and guards nextID and broken.
	mu     sync.Mutex
	stream *wire.Stream
	nextID uint64
	broken error

	closed       atomic.Bool
	shutdownOnce sync.Once
}

// Connect opens a session with the host listening on targetPort on the
// loopback interface.
//
// A targetPort <= 0 means no session was requested: Connect returns
// (nil, nil) without opening anything.
//
// Otherwise Connect makes exactly one attempt. It starts the callback
// listener, dials the host, performs the hello handshake, and registers
// the callback listener's address with the host. If any step fails,
// everything opened so far is closed again and the error is returned
// with no channel.
func Connect(ctx context.Context, targetPort int, options Options) (*Channel, error) {
	if targetPort <= 0 {
		return nil, nil
	}

	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	callbacks, err := startCallbackServer(logger)
	if err != nil {
		return nil, fmt.Errorf("gateway: starting callback listener: %w", err)
	}

	dialer := net.Dialer{Timeout: dialTimeout}
	conn, err := dialer.DialContext(ctx, "tcp", netutil.LoopbackAddress(targetPort))
	if err != nil {
		callbacks.Stop()
		return nil, fmt.Errorf("gateway: connecting to host on port %d: %w", targetPort, err)
	}

	channel := &Channel{
		targetPort: targetPort,
		logger:     logger.With("target_port", targetPort),
		callbacks:  callbacks,
		stream:     wire.NewStream(conn),
	}

	var welcome wire.Welcome
	hello := wire.Hello{Protocol: wire.ProtocolVersion, Client: options.ClientName}
	if err := channel.roundTrip(ctx, wire.ActionHello, wire.Ref{}, "", &welcome, hello); err != nil {
		channel.Shutdown()
		return nil, fmt.Errorf("gateway: handshake with port %d: %w", targetPort, err)
	}
	if welcome.Protocol != wire.ProtocolVersion {
		channel.Shutdown()
		return nil, fmt.Errorf("gateway: host on port %d speaks protocol %d, want %d",
			targetPort, welcome.Protocol, wire.ProtocolVersion)
	}
	channel.session = welcome.Session
	channel.logger = channel.logger.With("session", welcome.Session)

	callbackAddress := wire.CallbackAddress{Address: callbacks.Address()}
	if err := channel.roundTrip(ctx, wire.ActionSetCallback, wire.Ref{}, "", nil, callbackAddress); err != nil {
		channel.Shutdown()
		return nil, fmt.Errorf("gateway: registering callback listener with port %d: %w", targetPort, err)
	}

	channel.logger.Info("gateway connected", "callback_port", callbacks.Port())
	return channel, nil
}

// TargetPort returns the host port this channel was connected to, or 0
// for a nil channel.
func (c *Channel) TargetPort() int {
	if c == nil {
		return 0
	}
	return c.targetPort
}

// CallbackPort returns the port of the local callback listener, or 0
// for a nil channel.
func (c *Channel) CallbackPort() int {
	if c == nil {
		return 0
	}
	return c.callbacks.Port()
}

// Session returns the session identifier assigned by the host.
func (c *Channel) Session() string {
	if c == nil {
		return ""
	}
	return c.session
}

// IsOpen reports whether the channel has been connected and not yet shut
// down. A channel with a failed transport is still open until Shutdown.
func (c *Channel) IsOpen() bool {
	return c != nil && !c.closed.Load()
}

// FetchTable requests the host's current named reference table in one
// round trip. The result is a private copy. A nil channel returns a nil
// table and no error.
func (c *Channel) FetchTable(ctx context.Context) (Table, error) {
	if c == nil {
		return nil, nil
	}
	var table wire.Table
	if err := c.roundTrip(ctx, wire.ActionGetTable, wire.Ref{}, "", &table); err != nil {
		return nil, err
	}
	if table == nil {
		table = wire.Table{}
	}
	return Table(table), nil
}

// PublishTable replaces the host's stored table with table. It is needed
// after adding, removing, or replacing an entry locally. Mutating the
// host object behind an already-shared handle does not need it.
func (c *Channel) PublishTable(ctx context.Context, table Table) error {
	if c == nil {
		return ErrNotConnected
	}
	if table == nil {
		table = Table{}
	}
	return c.roundTrip(ctx, wire.ActionSetTable, wire.Ref{}, "", nil, wire.Table(table))
}

// Invoke calls method on the host object ref and decodes the result
// into result (which may be nil to discard it). Arguments that are
// handles from this channel are sent as references; handles from
// another channel are rejected with ErrForeignHandle.
func (c *Channel) Invoke(ctx context.Context, ref wire.Ref, method string, result any, args ...any) error {
	if c == nil {
		return ErrNotConnected
	}
	converted := make([]any, len(args))
	for i, arg := range args {
		if holder, ok := arg.(handle); ok {
			if holder.owner() != c {
				return fmt.Errorf("argument %d of %s: %w", i, method, ErrForeignHandle)
			}
			converted[i] = holder.Ref()
			continue
		}
		converted[i] = arg
	}
	return c.roundTrip(ctx, wire.ActionInvoke, ref, method, result, converted...)
}

// Shutdown stops the callback listener, waits for in-flight callbacks to
// finish, says goodbye to the host, and closes the connection, in that
// order. The first call does the work; later calls do nothing and return
// nil. Shutdown succeeds on a channel whose transport has already died.
// Shutdown on a nil channel is a no-op.
func (c *Channel) Shutdown() error {
	if c == nil {
		return nil
	}
	var err error
	c.shutdownOnce.Do(func() {
		c.closed.Store(true)

		c.callbacks.Stop()

		// A call blocked on another goroutine holds mu; skip the
		// farewell in that case; closing the connection below
		// unblocks that call.
		if c.mu.TryLock() {
			if c.broken == nil {
				c.sayGoodbye()
			}
			c.mu.Unlock()
		}

		if closeErr := c.stream.Close(); closeErr != nil && !netutil.IsExpectedCloseError(closeErr) {
			err = fmt.Errorf("gateway: closing connection: %w", closeErr)
		}
		c.logger.Info("gateway shut down")
	})
	return err
}

// sayGoodbye sends a best-effort bye. Called with mu held.
func (c *Channel) sayGoodbye() {
	conn := c.stream.Conn()
	conn.SetDeadline(time.Now().Add(byeTimeout)) //nolint:realclock // kernel I/O deadline
	c.nextID++
	if _, err := c.exchange(wire.Request{ID: c.nextID, Action: wire.ActionBye}); err != nil {
		c.logger.Debug("bye not acknowledged", "error", err)
	}
}

// roundTrip sends one request and waits for its response.
func (c *Channel) roundTrip(ctx context.Context, action string, ref wire.Ref, method string, result any, args ...any) error {
	if c.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	encoded, err := wire.EncodeArgs(args...)
	if err != nil {
		return fmt.Errorf("gateway: %s: %w", action, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return ErrClosed
	}
	if c.broken != nil {
		return fmt.Errorf("%s: %w: %w", action, ErrTransport, c.broken)
	}

	c.nextID++
	request := wire.Request{
		ID:     c.nextID,
		Action: action,
		Object: ref.ID,
		Method: method,
		Args:   encoded,
	}

	c.logger.Debug("gateway call", "action", action, "object", ref.ID, "method", method)

	// A cancelled context poisons the connection deadline so the
	// blocked read returns. The stream is then out of step with the
	// host, so the channel is marked broken.
	conn := c.stream.Conn()
	stop := context.AfterFunc(ctx, func() {
		conn.SetDeadline(poisonedDeadline)
	})
	response, err := c.exchange(request)
	if !stop() {
		if c.broken == nil {
			c.broken = ctx.Err()
		}
		if err != nil {
			return fmt.Errorf("%s: %w: %w", action, ErrTransport, ctx.Err())
		}
	}
	if err != nil {
		if c.closed.Load() {
			return ErrClosed
		}
		c.broken = err
		c.logger.Debug("gateway transport failed", "action", action, "error", err)
		return fmt.Errorf("%s: %w: %w", action, ErrTransport, err)
	}

	if !response.OK {
		return &RemoteError{
			Action:  action,
			Object:  ref.ID,
			Method:  method,
			Message: response.Error,
		}
	}
	if result != nil && len(response.Data) > 0 {
		if err := codec.Unmarshal(response.Data, result); err != nil {
			return fmt.Errorf("gateway: decoding result of %s %s: %w", action, method, err)
		}
	}
	return nil
}

// exchange writes request and reads the matching response. Called with
// mu held.
func (c *Channel) exchange(request wire.Request) (*wire.Response, error) {
	if err := c.stream.Send(request); err != nil {
		return nil, fmt.Errorf("writing request: %w", err)
	}
	var response wire.Response
	if err := c.stream.Receive(&response); err != nil {
		return nil, fmt.Errorf("reading response: %w", err)
	}
	if response.ID != request.ID {
		return nil, errors.New("response does not match the outstanding request")
	}
	return &response, nil
}
