// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package netfd exposes raw non-blocking descriptors (stream sockets,
// listening sockets, pipes, standard streams) as api handles that the
// reactor can poll and buffered sockets can read and write.
package netfd

import "sync/atomic"

// Conn is a non-blocking stream descriptor implementing api.Conn.
// Reads and writes are partial; would-block surfaces as EAGAIN.
type Conn struct {
	fd     int
	name   string
	closed atomic.Bool
}

// Listener is a non-blocking listening socket implementing api.Listener.
type Listener struct {
	fd     int
	addr   string
	closed atomic.Bool
}

// Fd implements api.Handle.
func (c *Conn) Fd() uintptr { return uintptr(c.fd) }

// Name describes the descriptor for logs.
func (c *Conn) Name() string { return c.name }

// String implements fmt.Stringer.
func (c *Conn) String() string { return c.name }

// Closed reports whether Close has run.
func (c *Conn) Closed() bool { return c.closed.Load() }

// Fd implements api.Handle.
func (l *Listener) Fd() uintptr { return uintptr(l.fd) }

// Addr returns the bound address, with the port resolved.
func (l *Listener) Addr() string { return l.addr }
