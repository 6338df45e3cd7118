// Package fake
// Author: momentics <momentics@gmail.com>
//
// Fake implementations for testing and development.
// Provides predictable, controllable behavior for all core interfaces.

package fake

import (
	"io"
	"os"
	"sync"
	"sync/atomic"
	"syscall"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-select/api"
)

var nextFd atomic.Uintptr

func init() {
	nextFd.Store(1000)
}

func allocFd() uintptr { return nextFd.Add(1) }

// Handle is a bare pollable identity.
type Handle struct {
	fd uintptr
}

// NewHandle returns a handle with a unique descriptor number.
func NewHandle() *Handle { return &Handle{fd: allocFd()} }

// Fd implements api.Handle.
func (h *Handle) Fd() uintptr { return h.fd }

type recvStep struct {
	data []byte
	err  error
}

// Conn is a scripted api.Conn. Reads are served from queued steps and
// return EAGAIN when nothing is queued; writes are recorded and may be
// limited to a number of bytes per call.
type Conn struct {
	mu         sync.Mutex
	fd         uintptr
	recv       *queue.Queue // *recvStep
	sent       []byte
	writeLimit int
	writeCalls int
	writeError error
	closeError error
	closed     bool
	closeCalls int
}

// NewConn creates a new fake connection.
func NewConn() *Conn {
	return &Conn{fd: allocFd(), recv: queue.New()}
}

// Fd implements api.Handle.
func (c *Conn) Fd() uintptr { return c.fd }

// Read implements api.Conn.
func (c *Conn) Read(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, os.ErrClosed
	}
	if c.recv.Length() == 0 {
		return 0, syscall.EAGAIN
	}
	step := c.recv.Peek().(*recvStep)
	if step.err != nil {
		c.recv.Remove()
		return 0, step.err
	}
	n := copy(buf, step.data)
	step.data = step.data[n:]
	if len(step.data) == 0 {
		c.recv.Remove()
	}
	return n, nil
}

// Write implements api.Conn.
func (c *Conn) Write(buf []byte) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.writeCalls++
	if c.closed {
		return 0, os.ErrClosed
	}
	if c.writeError != nil {
		return 0, c.writeError
	}
	n := len(buf)
	if c.writeLimit > 0 && n > c.writeLimit {
		n = c.writeLimit
	}
	c.sent = append(c.sent, buf[:n]...)
	return n, nil
}

// Close implements api.Conn. Closing twice returns api.ErrAlreadyClosed.
func (c *Conn) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closeCalls++
	if c.closed {
		return api.ErrAlreadyClosed
	}
	c.closed = true
	return c.closeError
}

// AddRecvData queues data for the next reads.
func (c *Conn) AddRecvData(data []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	dataCopy := make([]byte, len(data))
	copy(dataCopy, data)
	c.recv.Add(&recvStep{data: dataCopy})
}

// AddRecvError queues an error for a later read.
func (c *Conn) AddRecvError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.recv.Add(&recvStep{err: err})
}

// AddEOF queues an end of stream.
func (c *Conn) AddEOF() { c.AddRecvError(io.EOF) }

// SetWriteLimit caps the bytes accepted per Write call; 0 removes the cap.
func (c *Conn) SetWriteLimit(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeLimit = n
}

// SetWriteError makes every following Write fail with err.
func (c *Conn) SetWriteError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.writeError = err
}

// SetCloseError makes the first Close return err.
func (c *Conn) SetCloseError(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closeError = err
}

// Sent returns everything written so far.
func (c *Conn) Sent() []byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]byte, len(c.sent))
	copy(out, c.sent)
	return out
}

// WriteCalls returns the number of Write calls.
func (c *Conn) WriteCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.writeCalls
}

// Closed reports whether Close was called.
func (c *Conn) Closed() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closed
}

// CloseCalls returns the number of Close calls.
func (c *Conn) CloseCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.closeCalls
}

// Listener is a scripted api.Listener.
type Listener struct {
	mu          sync.Mutex
	fd          uintptr
	pending     *queue.Queue // api.Conn
	acceptError error
	closed      bool
}

// NewListener creates a listener with no pending connections.
func NewListener() *Listener {
	return &Listener{fd: allocFd(), pending: queue.New()}
}

// Fd implements api.Handle.
func (l *Listener) Fd() uintptr { return l.fd }

// Push queues a connection for Accept.
func (l *Listener) Push(c api.Conn) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pending.Add(c)
}

// SetAcceptError makes the next Accept fail with err.
func (l *Listener) SetAcceptError(err error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.acceptError = err
}

// Accept implements api.Listener.
func (l *Listener) Accept() (api.Conn, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.closed {
		return nil, os.ErrClosed
	}
	if err := l.acceptError; err != nil {
		l.acceptError = nil
		return nil, err
	}
	if l.pending.Length() == 0 {
		return nil, syscall.EAGAIN
	}
	return l.pending.Remove().(api.Conn), nil
}

// Close implements api.Listener.
func (l *Listener) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.closed {
		return api.ErrAlreadyClosed
	}
	l.closed = true
	return nil
}

// Closed reports whether Close was called.
func (l *Listener) Closed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

// Pending returns the number of connections waiting for Accept.
func (l *Listener) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending.Length()
}
