// File: server/options.go
// Package server defines functional options for the accept server.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package server

import "github.com/momentics/hioload-select/reactor"

// Option customizes server initialization.
type Option func(*Config)

// WithReactor drives the server from r.
func WithReactor(r *reactor.Reactor) Option {
	return func(c *Config) {
		c.Reactor = r
	}
}

// WithFactory sets the default child factory.
func WithFactory(f Factory) Option {
	return func(c *Config) {
		c.Factory = f
	}
}

// WithAcceptor sets the acceptor.
func WithAcceptor(a Acceptor) Option {
	return func(c *Config) {
		c.Acceptor = a
	}
}
