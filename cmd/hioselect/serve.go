// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

package main

import (
	"bytes"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/control"
	"github.com/momentics/hioload-select/core/buffer"
	"github.com/momentics/hioload-select/reactor"
	"github.com/momentics/hioload-select/server"
	"github.com/momentics/hioload-select/socket"
	"github.com/momentics/hioload-select/transport/netfd"
)

// quitRecord makes the echo server close the client that sent it.
const quitRecord = "quit"

type serveConfig struct {
	Listen        string
	Delimiter     buffer.Delimiter
	ChunkSize     int
	Tick          time.Duration
	StatsInterval time.Duration
	Metrics       bool
	LogLevel      string
}

func newServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Run the record echo server",
		Long:    `Accept connections and echo every record back to its sender. A record equal to "quit" closes that client. SIGINT or SIGTERM shut the server down.`,
		PreRunE: bindFlags,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := readServeConfig()
			if err != nil {
				return err
			}
			return runServe(cmd, cfg)
		},
	}
	f := cmd.Flags()
	f.String("listen", ":9300", "TCP address to listen on")
	f.String("delimiter", `\n`, "literal record terminator, Go escapes allowed")
	f.String("pattern", "", "regular expression record terminator, overrides --delimiter")
	f.Int("record-size", 0, "fixed record size in bytes, overrides --pattern")
	f.Int("chunk-size", socket.DefaultChunkSize, "bytes read per readiness event")
	f.Duration("tick", reactor.DefaultTick, "reactor wait per loop iteration")
	f.Duration("stats-interval", 10*time.Second, "period of the stats log line, 0 disables it")
	f.Bool("metrics", false, "print Prometheus metrics on exit")
	return cmd
}

func readServeConfig() (serveConfig, error) {
	d, err := parseDelimiter(viper.GetString("delimiter"), viper.GetString("pattern"), viper.GetInt("record-size"))
	if err != nil {
		return serveConfig{}, err
	}
	return serveConfig{
		Listen:        viper.GetString("listen"),
		Delimiter:     d,
		ChunkSize:     viper.GetInt("chunk-size"),
		Tick:          viper.GetDuration("tick"),
		StatsInterval: viper.GetDuration("stats-interval"),
		Metrics:       viper.GetBool("metrics"),
		LogLevel:      viper.GetString("log-level"),
	}, nil
}

// echoAcceptor frames every client with the configured delimiter and writes
// its records back.
func echoAcceptor(cfg serveConfig) server.Acceptor {
	return server.AcceptorFunc(func(srv *server.Server, conn api.Conn) (server.Accepted, error) {
		log := srv.Reactor().Logger()
		log.Info("client connected", zap.Stringer("conn", nameOf(conn)), zap.Int("clients", srv.Len()+1))
		return server.Accepted{Config: socket.Config{
			ChunkSize: cfg.ChunkSize,
			Delimiter: cfg.Delimiter,
			Hooks: socket.Hooks{
				OnRecord: echoRecord,
				OnReset: func(s *socket.Socket, err error) {
					log.Warn("client reset", zap.Uintptr("fd", s.Conn().Fd()), zap.Error(err))
				},
			},
		}}, nil
	})
}

func echoRecord(s *socket.Socket, rec []byte) error {
	if string(bytes.TrimSpace(rec)) == quitRecord {
		return s.Close()
	}
	if _, err := s.Write(rec); err != nil {
		return err
	}
	_, err := s.WriteString(terminator(s.Delimiter()))
	return err
}

// terminator returns what to append after an echoed record.
func terminator(d buffer.Delimiter) string {
	if lit, ok := d.LiteralValue(); ok {
		return lit
	}
	if _, ok := d.ByteCountValue(); ok {
		return ""
	}
	return "\n"
}

type stringer string

func (s stringer) String() string { return string(s) }

func nameOf(c api.Conn) fmt.Stringer {
	if s, ok := c.(fmt.Stringer); ok {
		return s
	}
	return stringer(fmt.Sprintf("fd:%d", c.Fd()))
}

func runServe(cmd *cobra.Command, cfg serveConfig) error {
	log, err := newLogger(cfg.LogLevel)
	if err != nil {
		return err
	}
	defer log.Sync() //nolint:errcheck
	reactor.SetLogger(log)

	m := control.NewMetrics(control.DefaultPrefix)
	r, err := reactor.New(nil, reactor.WithTick(cfg.Tick), reactor.WithLogger(log), reactor.WithMetrics(m))
	if err != nil {
		return err
	}
	defer r.Close()

	ln, err := netfd.Listen("tcp", cfg.Listen)
	if err != nil {
		return err
	}
	srv, err := server.New(server.Config{Listener: ln, Reactor: r, Acceptor: echoAcceptor(cfg)})
	if err != nil {
		ln.Close()
		return err
	}
	m.Set().NewGauge(control.DefaultPrefix+"_clients", func() float64 { return float64(srv.Len()) })

	sig, err := watchSignals(r, func() error {
		log.Info("signal received, shutting down")
		return srv.Shutdown()
	})
	if err != nil {
		srv.Close()
		return err
	}
	defer sig.Close()

	if cfg.StatsInterval > 0 {
		var stats func() error
		stats = func() error {
			snap := m.GetSnapshot()
			log.Info("stats",
				zap.Int("clients", srv.Len()),
				zap.Uint64("waits", snap["waits"]),
				zap.Uint64("readable", snap["dispatch_readable"]),
				zap.Uint64("writable", snap["dispatch_writable"]))
			r.After(cfg.StatsInterval, stats)
			return nil
		}
		r.After(cfg.StatsInterval, stats)
	}

	// the signal pipe keeps the reactor busy; stop explicitly instead
	r.SetExitOnEmpty(false)
	log.Info("listening", zap.String("addr", ln.Addr()), zap.Stringer("delimiter", cfg.Delimiter))
	err = srv.Run(nil)
	if cfg.Metrics {
		m.WritePrometheus(cmd.OutOrStdout())
	}
	return err
}
