//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package netfd

import "github.com/momentics/hioload-select/api"

func unsupported() error {
	return api.NewError(api.ErrCodeNotSupported, "netfd: raw descriptors need a unix platform", api.ErrNotSupported)
}

func NewConn(fd int, name string) (*Conn, error)    { return nil, unsupported() }
func Stdin() (*Conn, error)                         { return nil, unsupported() }
func Pipe() (r, w *Conn, err error)                 { return nil, nil, unsupported() }
func Listen(network, addr string) (*Listener, error) { return nil, unsupported() }
func Dial(network, addr string) (*Conn, error)      { return nil, unsupported() }

func (c *Conn) Read([]byte) (int, error)       { return 0, unsupported() }
func (c *Conn) Write([]byte) (int, error)      { return 0, unsupported() }
func (c *Conn) Close() error                   { return unsupported() }
func (c *Conn) CloseWrite() error              { return unsupported() }
func (l *Listener) Accept() (api.Conn, error) { return nil, unsupported() }
func (l *Listener) Close() error               { return unsupported() }
