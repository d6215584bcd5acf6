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
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"github.com/bureau-foundation/scriptgate/lib/netutil"
	"github.com/bureau-foundation/scriptgate/lib/wire"
)

// DefaultCallbackQueue is the per-session notification queue length
// used when Options.CallbackQueue is zero.
const DefaultCallbackQueue = 64

// Options configures a Server.
type Options struct {
	// Address is the TCP address to listen on. Empty means an ephemeral
	// port on the loopback interface.
	Address string

	// Registry holds the objects sessions can call. Nil means a new,
	// empty registry.
	Registry *Registry

	// CallbackQueue is the number of value notifications buffered per
	// session. Zero means DefaultCallbackQueue.
	CallbackQueue int

	// Logger receives structured log output. If nil, slog.Default() is
	// used. Per-session and per-request events are logged at Debug;
	// lifecycle at Info.
	Logger *slog.Logger
}

// Stats counts sessions over the server's lifetime.
type Stats struct {
	// Sessions is the number of connections accepted.
	Sessions int

	// Active is the number of sessions still connected.
	Active int

	// Goodbyes is the number of sessions that ended with a bye.
	Goodbyes int
}

// Server is the host endpoint that external processes connect to. It
// exposes the objects in its registry and one named reference table
// shared by all sessions.
type Server struct {
	address       string
	registry      *Registry
	callbackQueue int
	logger        *slog.Logger

	tableMu sync.RWMutex
	table   wire.Table

	listener net.Listener
	group    errgroup.Group

	mu       sync.Mutex
	sessions map[*session]struct{}
	closing  bool

	accepted  atomic.Int64
	goodbyes  atomic.Int64
	closeOnce sync.Once
}

// NewServer returns a server that is not yet listening.
func NewServer(options Options) *Server {
	address := options.Address
	if address == "" {
		address = netutil.LoopbackAddress(0)
	}
	registry := options.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	queue := options.CallbackQueue
	if queue <= 0 {
		queue = DefaultCallbackQueue
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Server{
		address:       address,
		registry:      registry,
		callbackQueue: queue,
		logger:        logger,
		table:         wire.Table{},
		sessions:      make(map[*session]struct{}),
	}
}

// Start binds the listener and accepts sessions in the background. It
// returns once the listener is bound. Cancelling ctx closes the server.
func (s *Server) Start(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.address)
	if err != nil {
		return fmt.Errorf("host: listening on %s: %w", s.address, err)
	}
	s.listener = listener

	s.group.Go(func() error {
		s.acceptLoop(ctx)
		return nil
	})
	context.AfterFunc(ctx, func() { s.Close() })

	s.logger.Info("host listening", "addr", listener.Addr().String())
	return nil
}

// Addr returns the bound address. Only valid after Start.
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Port returns the bound port. Only valid after Start.
func (s *Server) Port() int {
	return netutil.Port(s.listener.Addr())
}

// Registry returns the server's object registry.
func (s *Server) Registry() *Registry {
	return s.registry
}

// Table returns a copy of the current reference table.
func (s *Server) Table() wire.Table {
	s.tableMu.RLock()
	defer s.tableMu.RUnlock()
	return s.table.Clone()
}

// SetTable replaces the reference table. The table is copied.
func (s *Server) SetTable(table wire.Table) {
	if table == nil {
		table = wire.Table{}
	}
	s.tableMu.Lock()
	s.table = table.Clone()
	s.tableMu.Unlock()
}

// Stats returns session counters.
func (s *Server) Stats() Stats {
	s.mu.Lock()
	active := len(s.sessions)
	s.mu.Unlock()
	return Stats{
		Sessions: int(s.accepted.Load()),
		Active:   active,
		Goodbyes: int(s.goodbyes.Load()),
	}
}

// Close stops accepting, closes every session, and waits until all
// session goroutines have finished. Safe to call more than once and
// from any goroutine.
func (s *Server) Close() error {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.closing = true
		sessions := make([]*session, 0, len(s.sessions))
		for session := range s.sessions {
			sessions = append(sessions, session)
		}
		s.mu.Unlock()

		if s.listener != nil {
			s.listener.Close()
		}
		for _, session := range sessions {
			session.close()
		}
		s.group.Wait()
		s.logger.Info("host closed")
	})
	return nil
}

func (s *Server) acceptLoop(ctx context.Context) {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) || ctx.Err() != nil {
				return
			}
			s.logger.Error("accept failed", "error", err)
			continue
		}

		session := newSession(s, conn)
		s.mu.Lock()
		if s.closing {
			s.mu.Unlock()
			conn.Close()
			continue
		}
		s.sessions[session] = struct{}{}
		s.accepted.Add(1)
		s.mu.Unlock()

		s.group.Go(func() error {
			session.serve(ctx)
			return nil
		})
	}
}

func (s *Server) removeSession(session *session) {
	s.mu.Lock()
	delete(s.sessions, session)
	s.mu.Unlock()
}

// validateTable checks that every reference in table names a
// registered object of the stated kind.
func (s *Server) validateTable(table wire.Table) error {
	for key, entry := range table {
		for _, ref := range entry.Refs {
			if _, err := s.registry.Resolve(ref); err != nil {
				return fmt.Errorf("entry %q: %w", key, err)
			}
		}
	}
	return nil
}
