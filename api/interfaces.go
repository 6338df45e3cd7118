// Author: momentics <momentics@gmail.com>
// SPDX-License-Identifier: MIT

package api

// Handle is an opaque reference to an OS I/O resource that can take part in
// the readiness wait. Reactors key registrations by the interface value, so
// implementations should be pointer types.
type Handle interface {
	// Fd returns the descriptor (or system handle) passed to the poller.
	Fd() uintptr
}

// Conn is a handle supporting non-blocking partial reads and writes.
type Conn interface {
	Handle
	Read(buf []byte) (int, error)
	Write(buf []byte) (int, error)
	Close() error
}

// Listener is a handle that yields new connections when readable.
type Listener interface {
	Handle
	Accept() (Conn, error)
	Close() error
}
