// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package gateway

import (
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/bureau-foundation/scriptgate/lib/codec"
	"github.com/bureau-foundation/scriptgate/lib/netutil"
	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// callbackFunc handles one callback request from the host.
type callbackFunc func(args []codec.RawMessage) error

// callbackServer is the listener the host calls back into. It accepts
// the host's callback connection(s) in a background goroutine and
// dispatches each request to the callback registered under its object
// id. Requests on one connection are handled one at a time, in order.
type callbackServer struct {
	listener net.Listener
	logger   *slog.Logger

	mu        sync.Mutex
	callbacks map[uint64]callbackFunc
	nextID    uint64
	conns     map[net.Conn]struct{}
	stopping  bool

	connections sync.WaitGroup
	done        chan struct{}
	stopOnce    sync.Once
}

// startCallbackServer binds an ephemeral loopback port and starts
// accepting.
func startCallbackServer(logger *slog.Logger) (*callbackServer, error) {
	listener, err := netutil.ListenLoopback(0)
	if err != nil {
		return nil, err
	}
	server := &callbackServer{
		listener:  listener,
		logger:    logger,
		callbacks: make(map[uint64]callbackFunc),
		conns:     make(map[net.Conn]struct{}),
		done:      make(chan struct{}),
	}
	go func() {
		defer close(server.done)
		server.acceptLoop()
	}()
	return server, nil
}

// Port returns the listening port.
func (s *callbackServer) Port() int {
	return netutil.Port(s.listener.Addr())
}

// Address returns the listening address in host:port form.
func (s *callbackServer) Address() string {
	return s.listener.Addr().String()
}

// register adds fn and returns the id the host must use to reach it.
func (s *callbackServer) register(fn callbackFunc) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	s.callbacks[s.nextID] = fn
	return s.nextID
}

func (s *callbackServer) unregister(id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.callbacks, id)
}

func (s *callbackServer) lookup(id uint64) (callbackFunc, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn, ok := s.callbacks[id]
	return fn, ok
}

// Stop closes the listener so no further callback connections are
// accepted, closes the connections already accepted, and waits until
// every handler goroutine has returned. Safe to call more than once.
func (s *callbackServer) Stop() {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		s.stopping = true
		s.mu.Unlock()

		s.listener.Close()

		s.mu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.mu.Unlock()

		<-s.done
	})
}

// acceptLoop accepts connections until the listener is closed, then
// waits for all connection goroutines so that closing done signals full
// quiescence.
func (s *callbackServer) acceptLoop() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				s.connections.Wait()
				return
			}
			s.logger.Error("callback accept failed", "error", err)
			continue
		}

		s.mu.Lock()
		if s.stopping {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.conns[conn] = struct{}{}
		s.connections.Add(1)
		s.mu.Unlock()

		go func() {
			defer s.connections.Done()
			defer func() {
				s.mu.Lock()
				delete(s.conns, conn)
				s.mu.Unlock()
				conn.Close()
			}()
			s.serveConnection(conn)
		}()
	}
}

// serveConnection answers requests on one callback connection until the
// host closes it or Stop closes it.
func (s *callbackServer) serveConnection(conn net.Conn) {
	stream := wire.NewStream(conn)
	logger := s.logger.With("remote_addr", conn.RemoteAddr().String())
	logger.Debug("callback connection accepted")

	for {
		var request wire.Request
		if err := stream.Receive(&request); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Debug("callback connection read failed", "error", err)
			}
			return
		}

		response := wire.Response{ID: request.ID, OK: true}
		if err := s.dispatch(request); err != nil {
			response.OK = false
			response.Error = err.Error()
		}
		if err := stream.Send(response); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				logger.Debug("callback response write failed", "error", err)
			}
			return
		}
	}
}

func (s *callbackServer) dispatch(request wire.Request) error {
	switch request.Action {
	case wire.ActionPing:
		return nil
	case wire.ActionCallback:
		fn, ok := s.lookup(request.Object)
		if !ok {
			return fmt.Errorf("no callback registered under id %d", request.Object)
		}
		return invokeCallback(fn, request.Args)
	default:
		return fmt.Errorf("unknown callback action %q", request.Action)
	}
}

// invokeCallback runs fn, turning a panic into an error response so a
// faulty callback cannot take the process down from a background
// goroutine.
func invokeCallback(fn callbackFunc, args []codec.RawMessage) (err error) {
	defer func() {
		if recovered := recover(); recovered != nil {
			err = fmt.Errorf("callback panicked: %v", recovered)
		}
	}()
	return fn(args)
}
