// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"fmt"
	"log/slog"
	"net"
	"sync"
	"time"

	"github.com/bureau-foundation/scriptgate/lib/netutil"
	"github.com/bureau-foundation/scriptgate/lib/wire"
)

const (
	// callbackDialTimeout bounds one attempt to reach the external
	// process's callback listener.
	callbackDialTimeout = 5 * time.Second

	// callbackWriteTimeout bounds one notification round trip. The
	// external process answers callbacks from a dedicated goroutine, so
	// a slow answer means a wedged callback.
	callbackWriteTimeout = 10 * time.Second
)

type notification struct {
	callbackID uint64
	value      any
}

// callbackClient delivers value notifications to one external process.
// Notifications are queued and sent in order by a single goroutine over
// one lazily dialed connection. When the queue is full the notification
// is dropped: a slow script must not stall the writer of a PV.
type callbackClient struct {
	address string
	logger  *slog.Logger

	queue chan notification
	stop  chan struct{}
	done  chan struct{}

	mu        sync.Mutex
	conn      net.Conn
	closed    bool
	closeOnce sync.Once
	nextID    uint64
}

func newCallbackClient(address string, queueSize int, logger *slog.Logger) *callbackClient {
	client := &callbackClient{
		address: address,
		logger:  logger.With("callback_addr", address),
		queue:   make(chan notification, queueSize),
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
	go func() {
		defer close(client.done)
		client.deliverLoop()
	}()
	return client
}

// notify queues a notification without blocking.
func (c *callbackClient) notify(callbackID uint64, value any) {
	select {
	case <-c.stop:
		return
	default:
	}
	select {
	case c.queue <- notification{callbackID: callbackID, value: value}:
	default:
		c.logger.Warn("callback queue full, dropping notification", "callback", callbackID)
	}
}

// close stops delivery, closes the connection, and waits for the
// delivery goroutine. Queued notifications are discarded.
func (c *callbackClient) close() {
	c.closeOnce.Do(func() {
		close(c.stop)
		c.mu.Lock()
		c.closed = true
		if c.conn != nil {
			c.conn.Close()
		}
		c.mu.Unlock()
		<-c.done
	})
}

func (c *callbackClient) deliverLoop() {
	var stream *wire.Stream
	defer func() {
		if stream != nil {
			stream.Close()
		}
	}()

	for {
		var pending notification
		select {
		case <-c.stop:
			return
		case pending = <-c.queue:
		}

		if stream == nil {
			var err error
			if stream, err = c.dial(); err != nil {
				c.logger.Warn("callback listener unreachable, dropping notification",
					"callback", pending.callbackID, "error", err)
				continue
			}
		}

		if err := c.deliver(stream, pending); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				c.logger.Debug("callback delivery failed", "callback", pending.callbackID, "error", err)
			}
			stream.Close()
			stream = nil
		}
	}
}

func (c *callbackClient) dial() (*wire.Stream, error) {
	conn, err := net.DialTimeout("tcp", c.address, callbackDialTimeout)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		conn.Close()
		return nil, net.ErrClosed
	}
	c.conn = conn
	c.logger.Debug("callback connection established")
	return wire.NewStream(conn), nil
}

func (c *callbackClient) deliver(stream *wire.Stream, pending notification) error {
	args, err := wire.EncodeArgs(pending.value)
	if err != nil {
		c.logger.Warn("callback value not encodable", "callback", pending.callbackID, "error", err)
		return nil
	}
	c.nextID++
	request := wire.Request{
		ID:     c.nextID,
		Action: wire.ActionCallback,
		Object: pending.callbackID,
		Args:   args,
	}

	stream.Conn().SetDeadline(time.Now().Add(callbackWriteTimeout)) //nolint:realclock // kernel I/O deadline
	if err := stream.Send(request); err != nil {
		return err
	}
	var response wire.Response
	if err := stream.Receive(&response); err != nil {
		return err
	}
	if response.ID != request.ID {
		return fmt.Errorf("callback response id %d does not match request %d", response.ID, request.ID)
	}
	if !response.OK {
		c.logger.Warn("callback failed in external process", "callback", pending.callbackID, "error", response.Error)
	}
	return nil
}
