// File: server/types.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import (
	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/reactor"
	"github.com/momentics/hioload-select/socket"
)

// Client is a child connection tracked by a Server. *socket.Socket is a
// Client, and so is any type embedding it.
type Client interface {
	Base() *socket.Socket
	Close() error
}

// Factory builds a child from a merged socket configuration.
type Factory func(cfg socket.Config) (Client, error)

// NewSocket is the default Factory: a plain buffered socket.
func NewSocket(cfg socket.Config) (Client, error) {
	s, err := socket.New(cfg)
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Accepted is what an Acceptor decides for a new connection. A non-nil
// Client is tracked as is and must have the server as its Parent, otherwise
// it is closed and rejected. Without a Client, Config is merged over the
// server defaults and built with Factory, or with the server's factory when
// nil. A Parent set in Config is notified after the server.
type Accepted struct {
	Client  Client
	Config  socket.Config
	Factory Factory
}

// Acceptor specializes a Server. It sees every accepted connection.
type Acceptor interface {
	OnNewClient(srv *Server, conn api.Conn) (Accepted, error)
}

// AcceptorFunc adapts a function to Acceptor.
type AcceptorFunc func(srv *Server, conn api.Conn) (Accepted, error)

// OnNewClient implements Acceptor.
func (f AcceptorFunc) OnNewClient(srv *Server, conn api.Conn) (Accepted, error) {
	return f(srv, conn)
}

// Config holds all server-side configuration parameters.
type Config struct {
	Listener api.Listener     // required
	Reactor  *reactor.Reactor // nil: a new default reactor
	Factory  Factory          // nil: NewSocket
	Acceptor Acceptor         // required
}
