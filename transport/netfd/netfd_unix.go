//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netfd

import (
	"fmt"
	"io"
	"net"
	"syscall"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-select/api"
)

// NewConn takes ownership of fd and switches it to non-blocking mode.
func NewConn(fd int, name string) (*Conn, error) {
	if err := unix.SetNonblock(fd, true); err != nil {
		return nil, fmt.Errorf("nonblock %s: %w", name, err)
	}
	return &Conn{fd: fd, name: name}, nil
}

// Stdin wraps descriptor 0. Closing the result closes the process stdin.
func Stdin() (*Conn, error) { return NewConn(unix.Stdin, "stdin") }

// Pipe returns both ends of a non-blocking pipe.
func Pipe() (r, w *Conn, err error) {
	var p [2]int
	if err := unix.Pipe(p[:]); err != nil {
		return nil, nil, fmt.Errorf("pipe: %w", err)
	}
	for _, fd := range p {
		unix.CloseOnExec(fd)
	}
	if r, err = NewConn(p[0], "pipe-r"); err == nil {
		w, err = NewConn(p[1], "pipe-w")
	}
	if err != nil {
		unix.Close(p[0])
		unix.Close(p[1])
		return nil, nil, err
	}
	return r, w, nil
}

// Listen binds through the net package, then detaches the descriptor so
// the runtime poller no longer owns it.
func Listen(network, addr string) (*Listener, error) {
	ln, err := net.Listen(network, addr)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	if ul, ok := ln.(*net.UnixListener); ok {
		ul.SetUnlinkOnClose(false)
	}
	bound := ln.Addr().String()
	fd, err := detach(ln)
	if err != nil {
		return nil, fmt.Errorf("listen %s: %w", addr, err)
	}
	return &Listener{fd: fd, addr: bound}, nil
}

// Dial connects through the net package and detaches the descriptor.
func Dial(network, addr string) (*Conn, error) {
	c, err := net.Dial(network, addr)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	name := addr
	if ra := c.RemoteAddr(); ra != nil {
		name = ra.String()
	}
	fd, err := detach(c)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return &Conn{fd: fd, name: name}, nil
}

type syscallConner interface {
	io.Closer
	SyscallConn() (syscall.RawConn, error)
}

// detach duplicates the descriptor behind c and closes c.
func detach(c io.Closer) (int, error) {
	defer c.Close()
	sc, ok := c.(syscallConner)
	if !ok {
		return -1, api.NewError(api.ErrCodeNotSupported, "netfd: no raw descriptor", api.ErrNotSupported)
	}
	raw, err := sc.SyscallConn()
	if err != nil {
		return -1, err
	}
	fd := -1
	var derr error
	if err := raw.Control(func(f uintptr) {
		fd, derr = unix.Dup(int(f))
	}); err != nil {
		return -1, err
	}
	if derr != nil {
		return -1, derr
	}
	unix.CloseOnExec(fd)
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return -1, err
	}
	return fd, nil
}

// Read implements api.Conn. Zero bytes with no error is io.EOF.
func (c *Conn) Read(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, api.ErrAlreadyClosed
	}
	n, err := unix.Read(c.fd, p)
	if err != nil {
		return 0, err
	}
	if n == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return n, nil
}

// Write implements api.Conn.
func (c *Conn) Write(p []byte) (int, error) {
	if c.closed.Load() {
		return 0, api.ErrAlreadyClosed
	}
	n, err := unix.Write(c.fd, p)
	if n < 0 {
		n = 0
	}
	return n, err
}

// Close implements api.Conn. A second Close returns api.ErrAlreadyClosed.
func (c *Conn) Close() error {
	if !c.closed.CompareAndSwap(false, true) {
		return api.ErrAlreadyClosed
	}
	return unix.Close(c.fd)
}

// CloseWrite half-closes a socket.
func (c *Conn) CloseWrite() error {
	if c.closed.Load() {
		return api.ErrAlreadyClosed
	}
	return unix.Shutdown(c.fd, unix.SHUT_WR)
}

// Accept implements api.Listener. It returns EAGAIN when nothing is pending.
func (l *Listener) Accept() (api.Conn, error) {
	if l.closed.Load() {
		return nil, api.ErrAlreadyClosed
	}
	fd, sa, err := unix.Accept(l.fd)
	if err != nil {
		return nil, err
	}
	unix.CloseOnExec(fd)
	name := sockaddrString(sa)
	c, err := NewConn(fd, name)
	if err != nil {
		unix.Close(fd)
		return nil, err
	}
	return c, nil
}

// Close implements api.Listener.
func (l *Listener) Close() error {
	if !l.closed.CompareAndSwap(false, true) {
		return api.ErrAlreadyClosed
	}
	return unix.Close(l.fd)
}

func sockaddrString(sa unix.Sockaddr) string {
	switch a := sa.(type) {
	case *unix.SockaddrInet4:
		return (&net.TCPAddr{IP: a.Addr[:], Port: a.Port}).String()
	case *unix.SockaddrInet6:
		return (&net.TCPAddr{IP: a.Addr[:], Port: a.Port}).String()
	case *unix.SockaddrUnix:
		return a.Name
	default:
		return "peer"
	}
}
