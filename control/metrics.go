// control/metrics.go
// Author: momentics <momentics@gmail.com>
//
// Reactor counters exposed in Prometheus text format.

package control

import (
	"fmt"
	"io"

	"github.com/VictoriaMetrics/metrics"

	"github.com/momentics/hioload-select/api"
)

// DefaultPrefix is used when NewMetrics gets an empty prefix.
const DefaultPrefix = "hioselect"

// Metrics counts reactor activity.
type Metrics struct {
	prefix         string
	set            *metrics.Set
	dispatched     [len(api.Kinds)]*metrics.Counter
	waits          *metrics.Counter
	timersFired    *metrics.Counter
	callbackErrors *metrics.Counter
}

// NewMetrics creates counters named <prefix>_*.
func NewMetrics(prefix string) *Metrics {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	set := metrics.NewSet()
	m := &Metrics{
		prefix:         prefix,
		set:            set,
		waits:          set.NewCounter(prefix + "_waits_total"),
		timersFired:    set.NewCounter(prefix + "_timers_fired_total"),
		callbackErrors: set.NewCounter(prefix + "_callback_errors_total"),
	}
	for i, k := range api.Kinds {
		m.dispatched[i] = set.NewCounter(fmt.Sprintf(`%s_dispatch_total{kind=%q}`, prefix, k.String()))
	}
	return m
}

func kindIndex(kind api.EventKind) int {
	for i, k := range api.Kinds {
		if k == kind {
			return i
		}
	}
	return -1
}

// Dispatched counts one callback invocation for kind.
func (m *Metrics) Dispatched(kind api.EventKind) {
	if i := kindIndex(kind); i >= 0 {
		m.dispatched[i].Inc()
	}
}

// Waited counts one readiness wait.
func (m *Metrics) Waited() { m.waits.Inc() }

// TimerFired counts one timer invocation.
func (m *Metrics) TimerFired() { m.timersFired.Inc() }

// CallbackFailed counts a callback or timer that returned an error.
func (m *Metrics) CallbackFailed() { m.callbackErrors.Inc() }

// DispatchCount returns the number of dispatches for kind.
func (m *Metrics) DispatchCount(kind api.EventKind) uint64 {
	if i := kindIndex(kind); i >= 0 {
		return m.dispatched[i].Get()
	}
	return 0
}

// GetSnapshot returns the current counter values keyed by short name.
func (m *Metrics) GetSnapshot() map[string]uint64 {
	out := map[string]uint64{
		"waits":           m.waits.Get(),
		"timers_fired":    m.timersFired.Get(),
		"callback_errors": m.callbackErrors.Get(),
	}
	for i, k := range api.Kinds {
		out["dispatch_"+k.String()] = m.dispatched[i].Get()
	}
	return out
}

// Set exposes the underlying metrics set, e.g. for metrics.RegisterSet.
func (m *Metrics) Set() *metrics.Set { return m.set }

// WritePrometheus writes all counters in Prometheus text format.
func (m *Metrics) WritePrometheus(w io.Writer) {
	m.set.WritePrometheus(w)
}
