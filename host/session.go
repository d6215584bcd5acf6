// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package host

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"sync"

	"github.com/google/uuid"

	"github.com/bureau-foundation/scriptgate/lib/codec"
	"github.com/bureau-foundation/scriptgate/lib/netutil"
	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// errSessionEnded stops the request loop after a bye.
var errSessionEnded = errors.New("session ended")

type subscriptionKey struct {
	pv         *PV
	callbackID uint64
}

// session is one accepted connection from an external process.
type session struct {
	id     string
	server *Server
	stream *wire.Stream
	logger *slog.Logger

	// opened is set by hello. Only the request goroutine touches it.
	opened bool

	mu            sync.Mutex
	callback      *callbackClient
	subscriptions map[subscriptionKey]func()
}

func newSession(server *Server, conn net.Conn) *session {
	id := uuid.NewString()
	return &session{
		id:            id,
		server:        server,
		stream:        wire.NewStream(conn),
		logger:        server.logger.With("session", id, "remote_addr", conn.RemoteAddr().String()),
		subscriptions: make(map[subscriptionKey]func()),
	}
}

// serve answers requests until the peer says bye, the connection
// fails, or the server closes it. Cleanup always runs.
func (s *session) serve(ctx context.Context) {
	defer s.end()
	s.logger.Debug("session connection accepted")

	for {
		var request wire.Request
		if err := s.stream.Receive(&request); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				s.logger.Debug("session read failed", "error", err)
			}
			return
		}

		result, handleErr := s.handle(ctx, request)
		response := wire.Response{ID: request.ID, OK: true}
		if handleErr != nil && !errors.Is(handleErr, errSessionEnded) {
			s.logger.Debug("request failed",
				"action", request.Action,
				"object", request.Object,
				"method", request.Method,
				"error", handleErr,
			)
			response.OK = false
			response.Error = handleErr.Error()
		} else if result != nil {
			data, err := codec.Marshal(result)
			if err != nil {
				response.OK = false
				response.Error = fmt.Sprintf("internal: marshaling result: %v", err)
			} else {
				response.Data = data
			}
		}

		if err := s.stream.Send(response); err != nil {
			if !netutil.IsExpectedCloseError(err) {
				s.logger.Debug("session write failed", "error", err)
			}
			return
		}
		if errors.Is(handleErr, errSessionEnded) {
			return
		}
	}
}

func (s *session) handle(ctx context.Context, request wire.Request) (any, error) {
	if request.Action != wire.ActionHello && !s.opened {
		return nil, fmt.Errorf("%s before hello", request.Action)
	}

	switch request.Action {
	case wire.ActionHello:
		var hello wire.Hello
		if err := decodeOnly(request.Args, &hello); err != nil {
			return nil, fmt.Errorf("hello: %w", err)
		}
		if hello.Protocol != wire.ProtocolVersion {
			return nil, fmt.Errorf("hello: protocol %d not supported, want %d", hello.Protocol, wire.ProtocolVersion)
		}
		s.opened = true
		s.logger.Info("session opened", "client", hello.Client)
		return wire.Welcome{Protocol: wire.ProtocolVersion, Session: s.id}, nil

	case wire.ActionSetCallback:
		var address wire.CallbackAddress
		if err := decodeOnly(request.Args, &address); err != nil {
			return nil, fmt.Errorf("set-callback: %w", err)
		}
		return nil, s.setCallback(address.Address)

	case wire.ActionGetTable:
		return s.server.Table(), nil

	case wire.ActionSetTable:
		var table wire.Table
		if err := decodeOnly(request.Args, &table); err != nil {
			return nil, fmt.Errorf("set-table: %w", err)
		}
		if err := s.server.validateTable(table); err != nil {
			return nil, fmt.Errorf("set-table: %w", err)
		}
		s.server.SetTable(table)
		s.logger.Debug("reference table replaced", "entries", len(table))
		return nil, nil

	case wire.ActionInvoke:
		return s.invoke(ctx, request)

	case wire.ActionBye:
		s.server.goodbyes.Add(1)
		s.logger.Debug("session said goodbye")
		return nil, errSessionEnded

	default:
		return nil, fmt.Errorf("unknown action %q", request.Action)
	}
}

func (s *session) invoke(ctx context.Context, request wire.Request) (any, error) {
	object, ok := s.server.registry.Lookup(request.Object)
	if !ok {
		return nil, fmt.Errorf("no such object %d", request.Object)
	}
	method, ok := object.Method(request.Method)
	if !ok {
		return nil, fmt.Errorf("%s has no method %q", object.Kind(), request.Method)
	}
	call := &Call{
		Method:   request.Method,
		Args:     request.Args,
		registry: s.server.registry,
		session:  s,
	}
	return method(ctx, call)
}

func (s *session) setCallback(address string) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("set-callback: %w", err)
	}
	if ip := net.ParseIP(host); ip == nil || !ip.IsLoopback() {
		return fmt.Errorf("set-callback: %q is not a loopback address", address)
	}

	s.mu.Lock()
	previous := s.callback
	s.callback = newCallbackClient(address, s.server.callbackQueue, s.logger)
	s.mu.Unlock()

	if previous != nil {
		previous.close()
	}
	s.logger.Debug("callback address registered", "callback_addr", address)
	return nil
}

func (s *session) subscribe(pv *PV, callbackID uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.callback == nil {
		return errors.New("subscribe: no callback address registered")
	}
	key := subscriptionKey{pv: pv, callbackID: callbackID}
	if _, exists := s.subscriptions[key]; exists {
		return fmt.Errorf("subscribe: callback %d already subscribed to %q", callbackID, pv.name)
	}
	client := s.callback
	s.subscriptions[key] = pv.Listen(func(value any) {
		client.notify(callbackID, value)
	})
	return nil
}

func (s *session) unsubscribe(pv *PV, callbackID uint64) {
	key := subscriptionKey{pv: pv, callbackID: callbackID}
	s.mu.Lock()
	cancel, ok := s.subscriptions[key]
	delete(s.subscriptions, key)
	s.mu.Unlock()
	if ok {
		cancel()
	}
}

// close closes the connection, which ends serve.
func (s *session) close() {
	s.stream.Close()
}

// end removes the session's subscriptions, stops its callback client,
// and closes the connection.
func (s *session) end() {
	s.mu.Lock()
	cancels := make([]func(), 0, len(s.subscriptions))
	for _, cancel := range s.subscriptions {
		cancels = append(cancels, cancel)
	}
	s.subscriptions = make(map[subscriptionKey]func())
	callback := s.callback
	s.callback = nil
	s.mu.Unlock()

	for _, cancel := range cancels {
		cancel()
	}
	if callback != nil {
		callback.close()
	}
	s.stream.Close()
	s.server.removeSession(s)
	s.logger.Debug("session ended")
}

// decodeOnly decodes the single argument of a control action.
func decodeOnly(args []codec.RawMessage, target any) error {
	if len(args) != 1 {
		return fmt.Errorf("expected 1 argument, got %d", len(args))
	}
	return codec.Unmarshal(args[0], target)
}
