// File: reactor/config.go
// Author: momentics <momentics@gmail.com>

package reactor

import (
	"time"

	"go.uber.org/zap"

	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/control"
)

const (
	// DefaultTimeout bounds RunOnce when no explicit timeout is given.
	DefaultTimeout = 30 * time.Second
	// DefaultTick bounds each wait inside Run.
	DefaultTick = time.Second
)

// Config holds reactor settings.
type Config struct {
	Timeout     time.Duration // RunOnce wait bound, must not be negative
	Tick        time.Duration // per-iteration wait bound inside Run, must be positive
	ExitOnEmpty bool          // Run returns once no handle is registered
	Poller      api.Poller    // readiness primitive; NewPoller() when nil
	Logger      *zap.Logger
	Metrics     *control.Metrics
	Clock       func() time.Time
}

// DefaultConfig returns a config with default values.
func DefaultConfig() *Config {
	return &Config{
		Timeout:     DefaultTimeout,
		Tick:        DefaultTick,
		ExitOnEmpty: true,
	}
}

// Option modifies a Config before the reactor is built.
type Option func(*Config)

// WithPoller sets the readiness primitive.
func WithPoller(p api.Poller) Option {
	return func(c *Config) { c.Poller = p }
}

// WithLogger sets the reactor logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Config) { c.Logger = l }
}

// WithMetrics sets the counters the reactor reports to.
func WithMetrics(m *control.Metrics) Option {
	return func(c *Config) { c.Metrics = m }
}

// WithTimeout sets the default RunOnce timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Config) { c.Timeout = d }
}

// WithTick sets the wait bound used by Run.
func WithTick(d time.Duration) Option {
	return func(c *Config) { c.Tick = d }
}

// WithExitOnEmpty controls whether Run stops when nothing is registered.
func WithExitOnEmpty(v bool) Option {
	return func(c *Config) { c.ExitOnEmpty = v }
}

// WithClock replaces time.Now for timer bookkeeping.
func WithClock(now func() time.Time) Option {
	return func(c *Config) { c.Clock = now }
}
