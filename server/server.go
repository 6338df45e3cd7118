// File: server/server.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
//
// Package server accepts connections on a listening handle and turns each
// one into a buffered child socket tracked until it closes.

package server

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/reactor"
	"github.com/momentics/hioload-select/socket"
)

// Server is a reactor-driven accept loop.
type Server struct {
	listener api.Listener
	reactor  *reactor.Reactor
	factory  Factory
	acceptor Acceptor
	clients  map[*socket.Socket]Client
	closed   bool
	log      *zap.Logger
}

// New builds a server and registers its accept callback. A missing
// Listener or Acceptor fails here, never later.
func New(cfg Config, opts ...Option) (*Server, error) {
	for _, o := range opts {
		o(&cfg)
	}
	if cfg.Listener == nil {
		return nil, api.NewError(api.ErrCodeConstruction, "server", api.ErrMissingHandle).WithContext("key", "listener")
	}
	if cfg.Acceptor == nil {
		return nil, api.NewError(api.ErrCodeConstruction, "server", api.ErrAbstractServer)
	}
	if cfg.Factory == nil {
		cfg.Factory = NewSocket
	}
	if cfg.Reactor == nil {
		r, err := reactor.New(nil)
		if err != nil {
			return nil, fmt.Errorf("server reactor: %w", err)
		}
		cfg.Reactor = r
	}

	s := &Server{
		listener: cfg.Listener,
		reactor:  cfg.Reactor,
		factory:  cfg.Factory,
		acceptor: cfg.Acceptor,
		clients:  make(map[*socket.Socket]Client),
		log:      cfg.Reactor.Logger().With(zap.Uintptr("listener", cfg.Listener.Fd())),
	}
	if err := s.reactor.Register(s.listener, api.Readable, s.onAccept); err != nil {
		return nil, err
	}
	return s, nil
}

// Reactor returns the reactor driving the server and its children.
func (s *Server) Reactor() *reactor.Reactor { return s.reactor }

// Listener returns the listening handle.
func (s *Server) Listener() api.Listener { return s.listener }

// Len returns the number of tracked children.
func (s *Server) Len() int { return len(s.clients) }

// Clients returns a snapshot of the tracked children.
func (s *Server) Clients() []Client {
	out := make([]Client, 0, len(s.clients))
	for _, c := range s.clients {
		out = append(out, c)
	}
	return out
}

// OnClientClosed implements socket.Parent.
func (s *Server) OnClientClosed(sock *socket.Socket) {
	delete(s.clients, sock)
}

// onAccept takes exactly one pending connection.
func (s *Server) onAccept(api.Handle, api.EventKind) error {
	conn, err := s.listener.Accept()
	if err != nil {
		switch api.Classify(err) {
		case api.ClassTransient, api.ClassAlreadyClosed:
			return nil
		}
		return fmt.Errorf("server accept: %w", err)
	}

	accepted, err := s.acceptor.OnNewClient(s, conn)
	if err != nil {
		s.discard(conn)
		return err
	}
	client := accepted.Client
	if client == nil {
		factory := accepted.Factory
		if factory == nil {
			factory = s.factory
		}
		client, err = factory(s.merge(conn, accepted.Config))
		if err != nil {
			s.discard(conn)
			return fmt.Errorf("server child: %w", err)
		}
	}
	sock := client.Base()
	if sock == nil {
		s.discard(conn)
		return api.NewError(api.ErrCodeConstruction, "server child", api.ErrMissingHandle).WithContext("key", "socket")
	}
	if !s.owns(sock) {
		if err := client.Close(); err != nil && api.Classify(err) != api.ClassAlreadyClosed {
			s.log.Warn("close rejected client", zap.Error(err))
		}
		return api.NewError(api.ErrCodeConstruction, "server child: parent must be the server", api.ErrInvalidArgument).
			WithContext("fd", conn.Fd())
	}
	if !sock.Closed() {
		s.clients[sock] = client
	}
	s.log.Debug("client accepted", zap.Uintptr("fd", conn.Fd()), zap.Int("clients", len(s.clients)))
	return nil
}

// merge lays the set fields of over on top of the server defaults.
func (s *Server) merge(conn api.Conn, over socket.Config) socket.Config {
	cfg := socket.Config{Conn: conn, Reactor: s.reactor, Parent: s}
	if over.Conn != nil {
		cfg.Conn = over.Conn
	}
	if over.Reactor != nil {
		cfg.Reactor = over.Reactor
	}
	if p, ok := over.Parent.(*Server); over.Parent != nil && (!ok || p != s) {
		cfg.Parent = chainParent{s, over.Parent}
	}
	if over.ChunkSize != 0 {
		cfg.ChunkSize = over.ChunkSize
	}
	if !over.Delimiter.IsZero() {
		cfg.Delimiter = over.Delimiter
	}
	cfg.Hooks = over.Hooks
	return cfg
}

// owns reports whether sock tells the server when it closes.
func (s *Server) owns(sock *socket.Socket) bool {
	switch p := sock.Parent().(type) {
	case *Server:
		return p == s
	case chainParent:
		return p.srv == s
	}
	return false
}

// chainParent notifies the server first, then the parent set by the acceptor.
type chainParent struct {
	srv  *Server
	next socket.Parent
}

func (c chainParent) OnClientClosed(sock *socket.Socket) {
	c.srv.OnClientClosed(sock)
	c.next.OnClientClosed(sock)
}

func (s *Server) discard(conn api.Conn) {
	if err := conn.Close(); err != nil && api.Classify(err) != api.ClassAlreadyClosed {
		s.log.Warn("close rejected connection", zap.Error(err))
	}
}

// Close unregisters and closes the listening handle. Children stay open;
// see CloseAllClients. Closing twice is a no-op.
func (s *Server) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.reactor.Unregister(s.listener, api.AllEvents)
	if err := s.listener.Close(); err != nil && api.Classify(err) != api.ClassAlreadyClosed {
		return err
	}
	return nil
}

// CloseAllClients closes every tracked child and returns their close errors
// joined.
func (s *Server) CloseAllClients() error {
	var errs []error
	for _, c := range s.Clients() {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(s.clients, c.Base())
	}
	return errors.Join(errs...)
}

// Closed reports whether Close has run.
func (s *Server) Closed() bool { return s.closed }
