// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"fmt"
	"io"
	"time"

	"github.com/jpillora/backoff"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/reactor"
	"github.com/momentics/hioload-select/socket"
	"github.com/momentics/hioload-select/transport/netfd"
)

type clientConfig struct {
	Addr     string
	Retries  int
	Linger   time.Duration
	Tick     time.Duration
	LogLevel string
}

func newClientCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "client",
		Short:   "Send stdin lines to a server and print its records",
		Long:    `Dial a hioselect server, retrying with exponential backoff, forward every stdin line and print every line received. After stdin ends the client lingers for replies, then closes.`,
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runClient(cmd, clientConfig{
				Addr:     viper.GetString("addr"),
				Retries:  viper.GetInt("retries"),
				Linger:   viper.GetDuration("linger"),
				Tick:     viper.GetDuration("tick"),
				LogLevel: viper.GetString("log-level"),
			})
		},
	}
	f := cmd.Flags()
	f.String("addr", "127.0.0.1:9300", "server address")
	f.Int("retries", 5, "dial attempts before giving up")
	f.Duration("linger", 500*time.Millisecond, "time to wait for replies after stdin ends")
	f.Duration("tick", 100*time.Millisecond, "reactor wait per loop iteration")
	return cmd
}

// dialRetry dials addr up to attempts times, sleeping with jittered
// exponential backoff in between.
func dialRetry(log *zap.Logger, dial func() (*netfd.Conn, error), attempts int) (*netfd.Conn, error) {
	b := &backoff.Backoff{
		Factor: 2,
		Jitter: true,
		Min:    100 * time.Millisecond,
		Max:    2 * time.Second,
	}
	if attempts < 1 {
		attempts = 1
	}
	var err error
	for i := 0; i < attempts; i++ {
		var c *netfd.Conn
		if c, err = dial(); err == nil {
			return c, nil
		}
		if i == attempts-1 {
			break
		}
		d := b.Duration()
		log.Warn("dial failed, retrying", zap.Error(err), zap.Duration("sleep", d), zap.Int("attempt", i+1))
		time.Sleep(d)
	}
	return nil, fmt.Errorf("giving up after %d attempts: %w", attempts, err)
}

// printRecords writes every record as a line to out.
func printRecords(out io.Writer) func(*socket.Socket, []byte) error {
	return func(_ *socket.Socket, rec []byte) error {
		_, err := fmt.Fprintf(out, "%s\n", rec)
		return err
	}
}

// linger waits d for replies, then half-closes the remote side so the peer
// sees end of stream, and closes it for good after another d.
func linger(r *reactor.Reactor, log *zap.Logger, remote *socket.Socket, conn halfCloser, d time.Duration) {
	r.After(d, func() error {
		if remote.Closed() {
			return nil
		}
		log.Debug("linger over, half-closing")
		if err := ignoreClosed(conn.CloseWrite()); err != nil {
			log.Debug("half-close failed", zap.Error(err))
			return ignoreClosed(remote.Close())
		}
		r.After(d, func() error { return ignoreClosed(remote.Close()) })
		return nil
	})
}

type halfCloser interface {
	CloseWrite() error
}

func runClient(cmd *cobra.Command, cfg clientConfig) error {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck

	conn, err := dialRetry(log, func() (*netfd.Conn, error) { return netfd.Dial("tcp", cfg.Addr) }, cfg.Retries)
	if err != nil {
		return err
	}
	r, err := reactor.New(nil, reactor.WithTick(cfg.Tick), reactor.WithLogger(log))
	if err != nil {
		conn.Close()
		return err
	}
	defer r.Close()

	remote, err := socket.New(socket.Config{
		Conn:    conn,
		Reactor: r,
		Parent:  parentFunc(func(*socket.Socket) { r.Stop() }),
		Hooks: socket.Hooks{
			OnRecord: printRecords(cmd.OutOrStdout()),
			OnReset: func(_ *socket.Socket, err error) {
				log.Warn("connection reset", zap.Error(err))
			},
		},
	})
	if err != nil {
		conn.Close()
		return err
	}
	defer remote.Close()

	in, err := netfd.Stdin()
	if err != nil {
		return err
	}
	stdin, err := socket.New(socket.Config{
		Conn:    in,
		Reactor: r,
		Parent: parentFunc(func(*socket.Socket) { linger(r, log, remote, conn, cfg.Linger) }),
		Hooks: socket.Hooks{
			OnRecord: func(_ *socket.Socket, rec []byte) error {
				if remote.Closed() {
					return nil
				}
				return remote.Println(string(rec))
			},
		},
	})
	if err != nil {
		return err
	}
	defer stdin.Close()

	log.Info("connected", zap.String("addr", conn.Name()))
	return r.Run(nil)
}

func ignoreClosed(err error) error {
	if api.Classify(err) == api.ClassAlreadyClosed {
		return nil
	}
	return err
}
