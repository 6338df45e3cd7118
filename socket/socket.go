// File: socket/socket.go
// Author: momentics <momentics@gmail.com>
//
// Package socket decorates a connection with read and write buffers driven
// by a reactor: partial reads are split into delimiter-bounded records and
// writes are queued until the connection accepts them.

package socket

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/core/buffer"
	"github.com/momentics/hioload-select/reactor"
)

// DefaultChunkSize bounds a single read.
const DefaultChunkSize = 4096

// Parent is notified when a socket it owns has closed.
type Parent interface {
	OnClientClosed(s *Socket)
}

// Hooks customize socket behavior. Nil fields keep the default.
type Hooks struct {
	// OnRecord receives every complete record without its terminator.
	// Errors propagate out of the reactor. Default: ignore.
	OnRecord func(s *Socket, record []byte) error
	// OnReset reports the transport error that closed the socket. Default: ignore.
	OnReset func(s *Socket, err error)
	// OnTransient sees would-block and interrupted reads. Default: ignore.
	OnTransient func(s *Socket, err error) error
	// OnError handles the Error readiness event. Default: close.
	OnError func(s *Socket) error
}

// Config holds socket construction parameters.
type Config struct {
	Conn      api.Conn // required
	Reactor   *reactor.Reactor
	ChunkSize int
	Delimiter buffer.Delimiter
	Parent    Parent
	Hooks     Hooks
}

// Socket is a buffered, reactor-driven connection.
type Socket struct {
	conn      api.Conn
	reactor   *reactor.Reactor
	chunk     []byte
	delimiter buffer.Delimiter
	parent    Parent
	hooks     Hooks
	rbuf      buffer.Buffer
	wbuf      buffer.Buffer
	closed    bool
	log       *zap.Logger
}

// New builds a socket and registers its Readable and Error callbacks.
// Missing Conn is a construction error; so is an invalid delimiter or a
// negative chunk size. A nil Reactor gets a new default reactor.
func New(cfg Config) (*Socket, error) {
	if cfg.Conn == nil {
		return nil, api.NewError(api.ErrCodeConstruction, "socket", api.ErrMissingHandle).WithContext("key", "conn")
	}
	if cfg.ChunkSize < 0 {
		return nil, api.NewError(api.ErrCodeConstruction, "socket: chunk size must not be negative", api.ErrInvalidArgument).
			WithContext("chunk_size", cfg.ChunkSize)
	}
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Delimiter.IsZero() {
		cfg.Delimiter = buffer.DefaultDelimiter
	}
	if err := cfg.Delimiter.Validate(); err != nil {
		return nil, err
	}
	if cfg.Reactor == nil {
		r, err := reactor.New(nil)
		if err != nil {
			return nil, fmt.Errorf("socket reactor: %w", err)
		}
		cfg.Reactor = r
	}

	s := &Socket{
		conn:      cfg.Conn,
		reactor:   cfg.Reactor,
		chunk:     make([]byte, cfg.ChunkSize),
		delimiter: cfg.Delimiter,
		parent:    cfg.Parent,
		hooks:     cfg.Hooks,
		log:       cfg.Reactor.Logger().With(zap.Uintptr("fd", cfg.Conn.Fd())),
	}
	if err := s.reactor.Register(s.conn, api.Readable, s.onReadable); err != nil {
		return nil, err
	}
	if err := s.reactor.Register(s.conn, api.Error, s.onError); err != nil {
		s.reactor.Unregister(s.conn, api.Readable)
		return nil, err
	}
	return s, nil
}

// Base returns s. Types embedding *Socket inherit it, which lets servers
// track them by their socket.
func (s *Socket) Base() *Socket { return s }

// Parent returns the owner notified on close, or nil.
func (s *Socket) Parent() Parent { return s.parent }

// Conn returns the wrapped connection.
func (s *Socket) Conn() api.Conn { return s.conn }

// Reactor returns the reactor driving the socket.
func (s *Socket) Reactor() *reactor.Reactor { return s.reactor }

// Closed reports whether Close has run.
func (s *Socket) Closed() bool { return s.closed }

// Delimiter returns the record delimiter.
func (s *Socket) Delimiter() buffer.Delimiter { return s.delimiter }

// SetDelimiter changes the delimiter for records not yet produced.
func (s *Socket) SetDelimiter(d buffer.Delimiter) error {
	if err := d.Validate(); err != nil {
		return err
	}
	s.delimiter = d
	return nil
}

// Buffered returns the number of read bytes waiting for a delimiter.
func (s *Socket) Buffered() int { return s.rbuf.Len() }

// Pending returns the number of bytes queued for writing.
func (s *Socket) Pending() int { return s.wbuf.Len() }

// Write queues p and asks for Writable readiness if nothing was queued.
// It always accepts all of p unless the socket is closed.
func (s *Socket) Write(p []byte) (int, error) {
	if s.closed {
		return 0, api.ErrSocketClosed
	}
	if len(p) == 0 {
		return 0, nil
	}
	wasEmpty := s.wbuf.Len() == 0
	s.wbuf.Append(p)
	if wasEmpty {
		if err := s.reactor.Register(s.conn, api.Writable, s.onWritable); err != nil {
			return 0, err
		}
	}
	return len(p), nil
}

// WriteString queues str.
func (s *Socket) WriteString(str string) (int, error) {
	return s.Write([]byte(str))
}

// Println queues str followed by a line feed.
func (s *Socket) Println(str string) error {
	_, err := s.Write([]byte(str + "\n"))
	return err
}

// onReadable performs one bounded read and hands out complete records.
func (s *Socket) onReadable(api.Handle, api.EventKind) error {
	n, err := s.conn.Read(s.chunk)
	if n > 0 {
		s.rbuf.Append(s.chunk[:n])
		if rerr := s.drain(); rerr != nil {
			return rerr
		}
	}
	if err == nil {
		return nil
	}
	switch class := api.Classify(err); class {
	case api.ClassEndOfStream:
		s.log.Debug("end of stream")
		s.closeQuietly()
	case api.ClassTransient:
		if s.hooks.OnTransient != nil {
			return s.hooks.OnTransient(s, err)
		}
	case api.ClassAlreadyClosed:
	default:
		s.log.Debug("read failed", zap.Stringer("class", class), zap.Error(err))
		s.closeQuietly()
		if s.hooks.OnReset != nil {
			s.hooks.OnReset(s, err)
		}
	}
	return nil
}

func (s *Socket) drain() error {
	for rec := range s.rbuf.Records(s.delimiter) {
		if s.hooks.OnRecord == nil {
			continue
		}
		if err := s.hooks.OnRecord(s, rec); err != nil {
			return err
		}
		if s.closed {
			return nil
		}
	}
	return nil
}

// onWritable performs one bounded write of the queued bytes.
func (s *Socket) onWritable(api.Handle, api.EventKind) error {
	n, err := s.conn.Write(s.wbuf.Bytes())
	if n > 0 {
		if rerr := s.wbuf.RemovePrefix(n); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		if api.Classify(err) == api.ClassTransient {
			return nil
		}
		s.log.Debug("write failed", zap.Error(err))
		s.reactor.Unregister(s.conn, api.AllEvents)
		s.closeQuietly()
		return nil
	}
	if s.wbuf.Len() == 0 {
		s.reactor.Unregister(s.conn, api.Writable)
	}
	return nil
}

func (s *Socket) onError(api.Handle, api.EventKind) error {
	if s.hooks.OnError != nil {
		return s.hooks.OnError(s)
	}
	s.closeQuietly()
	return nil
}

// Close unregisters the socket, closes the connection and notifies the
// parent. Closing twice is a no-op. An already closed connection is not an
// error; other close errors are returned, the socket counts as closed anyway.
func (s *Socket) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	s.reactor.Unregister(s.conn, api.AllEvents)
	err := s.conn.Close()
	s.rbuf.Release()
	s.wbuf.Release()
	if s.parent != nil {
		s.parent.OnClientClosed(s)
	}
	if api.Classify(err) == api.ClassAlreadyClosed {
		return nil
	}
	return err
}

func (s *Socket) closeQuietly() {
	if err := s.Close(); err != nil {
		s.log.Warn("close failed", zap.Error(err))
	}
}
