// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/core/buffer"
	"github.com/momentics/hioload-select/reactor"
	"github.com/momentics/hioload-select/socket"
	"github.com/momentics/hioload-select/transport/netfd"
)

// newLogger builds a console logger for debug and a JSON logger otherwise.
func newLogger(level string) (*zap.Logger, error) {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level %q: %w", level, err)
	}
	cfg := zap.NewProductionConfig()
	if lvl == zapcore.DebugLevel {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// parseDelimiter picks the record framing. A positive size wins over a
// pattern, a pattern wins over the literal. The literal accepts Go escapes
// such as \n or \r\n.
func parseDelimiter(literal, pattern string, size int) (buffer.Delimiter, error) {
	switch {
	case size > 0:
		return buffer.ByteCount(size), nil
	case pattern != "":
		return buffer.Pattern(pattern)
	}
	unquoted, err := strconv.Unquote(`"` + literal + `"`)
	if err != nil {
		return buffer.Delimiter{}, api.NewError(api.ErrCodeInvalidArgument, "delimiter", api.ErrInvalidArgument).
			WithContext("literal", literal)
	}
	d := buffer.Literal(unquoted)
	if err := d.Validate(); err != nil {
		return buffer.Delimiter{}, err
	}
	return d, nil
}

// parentFunc adapts a function to socket.Parent.
type parentFunc func(s *socket.Socket)

func (f parentFunc) OnClientClosed(s *socket.Socket) { f(s) }

// signalPipe forwards process signals into the reactor through a
// self-pipe, so handlers run on the reactor goroutine.
type signalPipe struct {
	sock *socket.Socket
	w    *netfd.Conn
	ch   chan os.Signal
	done chan struct{}
}

// watchSignals calls onSignal from the reactor on SIGINT or SIGTERM.
func watchSignals(r *reactor.Reactor, onSignal func() error) (*signalPipe, error) {
	rd, wr, err := netfd.Pipe()
	if err != nil {
		return nil, err
	}
	sock, err := socket.New(socket.Config{
		Conn:      rd,
		Reactor:   r,
		ChunkSize: 64,
		Delimiter: buffer.ByteCount(1),
		Hooks: socket.Hooks{
			OnRecord: func(*socket.Socket, []byte) error { return onSignal() },
		},
	})
	if err != nil {
		rd.Close()
		wr.Close()
		return nil, err
	}
	sp := &signalPipe{sock: sock, w: wr, ch: make(chan os.Signal, 1), done: make(chan struct{})}
	signal.Notify(sp.ch, syscall.SIGINT, syscall.SIGTERM)
	go sp.forward()
	return sp, nil
}

func (sp *signalPipe) forward() {
	defer close(sp.done)
	for range sp.ch {
		if _, err := sp.w.Write([]byte{1}); err != nil && api.Classify(err) != api.ClassTransient {
			return
		}
	}
}

// Close stops signal delivery and releases both pipe ends.
func (sp *signalPipe) Close() error {
	signal.Stop(sp.ch)
	close(sp.ch)
	<-sp.done
	sp.w.Close()
	return sp.sock.Close()
}
