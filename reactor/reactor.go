// File: reactor/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Registration, dispatch and run loop of the readiness reactor.

package reactor

import (
	"fmt"
	"time"

	"github.com/eapache/queue"
	"go.uber.org/zap"

	"github.com/momentics/hioload-select/api"
	"github.com/momentics/hioload-select/control"
)

type callbacks map[api.Handle]api.Callback

// Reactor dispatches readiness callbacks and timers on a single goroutine.
type Reactor struct {
	poller     api.Poller
	ownsPoller bool

	active [len(api.Kinds)]callbacks
	paused [len(api.Kinds)]callbacks
	timers timerQueue

	timeout     time.Duration
	tick        time.Duration
	exit        bool
	exitOnEmpty bool

	log     *zap.Logger
	metrics *control.Metrics
	now     func() time.Time
}

// dispatchItem is one (handle, kind) pair of a ready snapshot.
type dispatchItem struct {
	handle api.Handle
	kind   api.EventKind
}

// New builds a reactor. A nil cfg means DefaultConfig.
func New(cfg *Config, opts ...Option) (*Reactor, error) {
	c := DefaultConfig()
	if cfg != nil {
		*c = *cfg
	}
	for _, o := range opts {
		o(c)
	}
	if c.Tick <= 0 {
		return nil, api.NewError(api.ErrCodeInvalidArgument, "reactor: tick must be positive", api.ErrInvalidArgument).
			WithContext("tick", c.Tick)
	}
	if err := validTimeout(c.Timeout); err != nil {
		return nil, err
	}

	r := &Reactor{
		poller:      c.Poller,
		timeout:     c.Timeout,
		tick:        c.Tick,
		exitOnEmpty: c.ExitOnEmpty,
		log:         c.Logger,
		metrics:     c.Metrics,
		now:         c.Clock,
	}
	if r.poller == nil {
		p, err := NewPoller()
		if err != nil {
			return nil, fmt.Errorf("reactor poller: %w", err)
		}
		r.poller = p
		r.ownsPoller = true
	}
	if r.log == nil {
		r.log = Logger()
	}
	if r.metrics == nil {
		r.metrics = control.NewMetrics("")
	}
	if r.now == nil {
		r.now = time.Now
	}
	for i := range api.Kinds {
		r.active[i] = make(callbacks)
		r.paused[i] = make(callbacks)
	}
	return r, nil
}

// Register sets cb for every kind in kinds, replacing earlier callbacks and
// dropping paused ones for those kinds.
func (r *Reactor) Register(h api.Handle, kinds api.EventKind, cb api.Callback) error {
	if h == nil || cb == nil || kinds&api.AllEvents == 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "reactor: register needs a handle, kinds and a callback", api.ErrInvalidArgument).
			WithContext("kinds", kinds.String())
	}
	for i, k := range api.Kinds {
		if kinds&k != 0 {
			r.active[i][h] = cb
			delete(r.paused[i], h)
		}
	}
	r.log.Debug("register", zap.Uintptr("fd", h.Fd()), zap.Stringer("kinds", kinds))
	return nil
}

// Unregister removes the callbacks for kinds, active or paused. Missing
// registrations are ignored.
func (r *Reactor) Unregister(h api.Handle, kinds api.EventKind) {
	if h == nil {
		return
	}
	for i, k := range api.Kinds {
		if kinds&k != 0 {
			delete(r.active[i], h)
			delete(r.paused[i], h)
		}
	}
	r.log.Debug("unregister", zap.Uintptr("fd", h.Fd()), zap.Stringer("kinds", kinds))
}

// Once registers cb for kinds and removes the registration right before the
// first invocation.
func (r *Reactor) Once(h api.Handle, kinds api.EventKind, cb api.Callback) error {
	if cb == nil {
		return r.Register(h, kinds, nil)
	}
	return r.Register(h, kinds, func(h api.Handle, kind api.EventKind) error {
		r.Unregister(h, kinds)
		return cb(h, kind)
	})
}

// Pause moves the active callbacks for kinds into the pause store.
func (r *Reactor) Pause(h api.Handle, kinds api.EventKind) {
	for i, k := range api.Kinds {
		if kinds&k == 0 {
			continue
		}
		if cb, ok := r.active[i][h]; ok {
			r.paused[i][h] = cb
			delete(r.active[i], h)
		}
	}
}

// Resume restores paused callbacks for kinds. It fails with api.ErrNotPaused
// when none of the requested kinds is paused for h.
func (r *Reactor) Resume(h api.Handle, kinds api.EventKind) error {
	resumed := false
	for i, k := range api.Kinds {
		if kinds&k == 0 {
			continue
		}
		if cb, ok := r.paused[i][h]; ok {
			r.active[i][h] = cb
			delete(r.paused[i], h)
			resumed = true
		}
	}
	if !resumed {
		err := api.NewError(api.ErrCodeNotFound, "reactor: resume", api.ErrNotPaused).
			WithContext("kinds", kinds.String())
		if h != nil {
			err.WithContext("fd", h.Fd())
		}
		return err
	}
	return nil
}

// Callback returns the active callback for a single kind.
func (r *Reactor) Callback(h api.Handle, kind api.EventKind) (api.Callback, bool) {
	i := slot(kind)
	if i < 0 {
		return nil, false
	}
	cb, ok := r.active[i][h]
	return cb, ok
}

// Paused reports whether a callback for kind is held in the pause store.
func (r *Reactor) Paused(h api.Handle, kind api.EventKind) bool {
	i := slot(kind)
	if i < 0 {
		return false
	}
	_, ok := r.paused[i][h]
	return ok
}

// Registered counts active registrations over the kinds in kinds.
func (r *Reactor) Registered(kinds api.EventKind) int {
	n := 0
	for i, k := range api.Kinds {
		if kinds&k != 0 {
			n += len(r.active[i])
		}
	}
	return n
}

// Empty reports whether no handle is active for any kind. Paused handles
// do not count.
func (r *Reactor) Empty() bool {
	return r.Registered(api.AllEvents) == 0
}

// Timeout returns the default RunOnce timeout.
func (r *Reactor) Timeout() time.Duration { return r.timeout }

// SetTimeout changes the default RunOnce timeout. Negative values are
// rejected; pass a negative timeout to RunOnceTimeout to wait without bound.
func (r *Reactor) SetTimeout(d time.Duration) error {
	if err := validTimeout(d); err != nil {
		return err
	}
	r.timeout = d
	return nil
}

func validTimeout(d time.Duration) error {
	if d < 0 {
		return api.NewError(api.ErrCodeInvalidArgument, "reactor: timeout must not be negative", api.ErrInvalidArgument).
			WithContext("timeout", d)
	}
	return nil
}

// SetExitOnEmpty controls whether Run stops once nothing is registered.
func (r *Reactor) SetExitOnEmpty(v bool) { r.exitOnEmpty = v }

// Stop makes Run return after the current iteration.
func (r *Reactor) Stop() { r.exit = true }

// Stopped reports whether Stop was called.
func (r *Reactor) Stopped() bool { return r.exit }

// Logger returns the reactor's logger.
func (r *Reactor) Logger() *zap.Logger { return r.log }

// Metrics returns the reactor's counters.
func (r *Reactor) Metrics() *control.Metrics { return r.metrics }

// Now returns the reactor clock's current time.
func (r *Reactor) Now() time.Time { return r.now() }

// At schedules fn to run on the first Cron at or after deadline.
func (r *Reactor) At(deadline time.Time, fn func() error) *Timer {
	return r.timers.insert(deadline, fn)
}

// After schedules fn to run d from now.
func (r *Reactor) After(d time.Duration, fn func() error) *Timer {
	return r.At(r.now().Add(d), fn)
}

// Pending returns the number of queued timers.
func (r *Reactor) Pending() int { return r.timers.len() }

// Cron runs every timer that is due, in deadline order, and stops at the
// first one still in the future. Timers queued while Cron runs wait for the
// next call. The first timer error is returned and ends the scan.
func (r *Reactor) Cron() error {
	now := r.now()
	limit := r.timers.seq
	for {
		t, ok := r.timers.popDue(now, limit)
		if !ok {
			return nil
		}
		r.metrics.TimerFired()
		if err := t.fn(); err != nil {
			r.metrics.CallbackFailed()
			r.log.Debug("timer failed", zap.Time("deadline", t.deadline), zap.Error(err))
			return err
		}
	}
}

// RunOnce waits at most the default timeout and dispatches what is ready.
func (r *Reactor) RunOnce() error {
	return r.RunOnceTimeout(r.timeout)
}

// RunOnceTimeout waits at most min(timeout, time until the earliest timer)
// and dispatches one callback per ready (handle, kind) pair. A negative
// timeout waits without bound unless a timer is pending.
//
// With nothing registered and no timers the poller simply sleeps for the
// timeout, so a negative timeout blocks forever. Callers driving the loop by
// hand must supply a bounded timeout in that case.
func (r *Reactor) RunOnceTimeout(timeout time.Duration) error {
	wait := timeout
	if deadline, ok := r.timers.next(); ok {
		until := deadline.Sub(r.now())
		if until < 0 {
			until = 0
		}
		if wait < 0 || until < wait {
			wait = until
		}
	}

	interest, wanted := r.interest()
	r.metrics.Waited()
	ready, err := r.poller.Wait(interest, wait)
	if err != nil {
		return fmt.Errorf("reactor wait: %w", err)
	}
	return r.dispatch(r.snapshot(ready, wanted))
}

// interest merges the active maps into one entry per handle.
func (r *Reactor) interest() ([]api.Interest, map[api.Handle]api.EventKind) {
	wanted := make(map[api.Handle]api.EventKind)
	var order []api.Handle
	for i, k := range api.Kinds {
		for h := range r.active[i] {
			if _, seen := wanted[h]; !seen {
				order = append(order, h)
			}
			wanted[h] |= k
		}
	}
	interest := make([]api.Interest, len(order))
	for i, h := range order {
		interest[i] = api.Interest{Handle: h, Kinds: wanted[h]}
	}
	return interest, wanted
}

// snapshot freezes the ready set before any callback runs. Each pair appears
// once, limited to kinds that were asked for, grouped by kind in dispatch order.
func (r *Reactor) snapshot(ready []api.Readiness, wanted map[api.Handle]api.EventKind) *queue.Queue {
	merged := make(map[api.Handle]api.EventKind, len(ready))
	var order []api.Handle
	for _, rd := range ready {
		k := rd.Kinds & wanted[rd.Handle]
		if k == 0 {
			continue
		}
		if _, seen := merged[rd.Handle]; !seen {
			order = append(order, rd.Handle)
		}
		merged[rd.Handle] |= k
	}
	q := queue.New()
	for _, k := range api.Kinds {
		for _, h := range order {
			if merged[h]&k != 0 {
				q.Add(dispatchItem{handle: h, kind: k})
			}
		}
	}
	return q
}

// dispatch invokes the callback currently registered for each queued pair.
// Pairs unregistered by an earlier callback of the same snapshot are skipped.
func (r *Reactor) dispatch(q *queue.Queue) error {
	for q.Length() > 0 {
		it := q.Remove().(dispatchItem)
		cb, ok := r.active[slot(it.kind)][it.handle]
		if !ok {
			continue
		}
		r.metrics.Dispatched(it.kind)
		if err := cb(it.handle, it.kind); err != nil {
			r.metrics.CallbackFailed()
			r.log.Debug("callback failed",
				zap.Uintptr("fd", it.handle.Fd()),
				zap.Stringer("kind", it.kind),
				zap.Error(err))
			return err
		}
	}
	return nil
}

// Run loops Cron, RunOnceTimeout(tick) and the optional tick hook until Stop
// is called or, with exit-on-empty enabled, no handle is registered. Errors
// from callbacks, timers or the hook end the loop and are returned.
func (r *Reactor) Run(tick func() error) error {
	for !r.exit && !(r.exitOnEmpty && r.Empty()) {
		if err := r.Cron(); err != nil {
			return err
		}
		if err := r.RunOnceTimeout(r.tick); err != nil {
			return err
		}
		if tick != nil {
			if err := tick(); err != nil {
				return err
			}
		}
	}
	return nil
}

// Close releases the poller if the reactor created it.
func (r *Reactor) Close() error {
	if r.ownsPoller {
		r.ownsPoller = false
		return r.poller.Close()
	}
	return nil
}

func slot(kind api.EventKind) int {
	for i, k := range api.Kinds {
		if k == kind {
			return i
		}
	}
	return -1
}
