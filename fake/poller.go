// Package fake
// Author: momentics <momentics@gmail.com>
//
// Scripted readiness primitive and manual clock.

package fake

import (
	"sync"
	"time"

	"github.com/eapache/queue"

	"github.com/momentics/hioload-select/api"
)

// Clock is a manually advanced time source.
type Clock struct {
	mu  sync.Mutex
	now time.Time
}

// NewClock starts a clock at a fixed instant.
func NewClock() *Clock {
	return &Clock{now: time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)}
}

// Now returns the current fake time.
func (c *Clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// Poller is a scripted api.Poller. Each Wait pops the next pushed batch, or
// asks the Auto function when the script is empty. When a Clock is attached,
// a Wait that reports nothing advances it by the timeout, as if the wait
// had slept.
type Poller struct {
	mu       sync.Mutex
	script   *queue.Queue // []api.Readiness
	Auto     func(interest []api.Interest) []api.Readiness
	Clock    *Clock
	WaitErr  error
	timeouts []time.Duration
	interest [][]api.Interest
	closed   bool
}

// NewPoller creates an empty scripted poller.
func NewPoller() *Poller {
	return &Poller{script: queue.New()}
}

// Push queues the result of one future Wait.
func (p *Poller) Push(ready ...api.Readiness) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.script.Add(ready)
}

// Ready is shorthand for api.Readiness.
func Ready(h api.Handle, kinds api.EventKind) api.Readiness {
	return api.Readiness{Handle: h, Kinds: kinds}
}

// AllReady reports every interest as ready for the kinds it asked for.
func AllReady(interest []api.Interest) []api.Readiness {
	out := make([]api.Readiness, len(interest))
	for i, in := range interest {
		out[i] = api.Readiness{Handle: in.Handle, Kinds: in.Kinds}
	}
	return out
}

// Wait implements api.Poller.
func (p *Poller) Wait(interest []api.Interest, timeout time.Duration) ([]api.Readiness, error) {
	p.mu.Lock()
	p.timeouts = append(p.timeouts, timeout)
	snapshot := make([]api.Interest, len(interest))
	copy(snapshot, interest)
	p.interest = append(p.interest, snapshot)
	if p.WaitErr != nil {
		err := p.WaitErr
		p.WaitErr = nil
		p.mu.Unlock()
		return nil, err
	}
	var ready []api.Readiness
	if p.script.Length() > 0 {
		ready = p.script.Remove().([]api.Readiness)
	} else if p.Auto != nil {
		ready = p.Auto(snapshot)
	}
	clock := p.Clock
	p.mu.Unlock()

	if len(ready) == 0 && clock != nil && timeout > 0 {
		clock.Advance(timeout)
	}
	return ready, nil
}

// Close implements api.Poller.
func (p *Poller) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	return nil
}

// Closed reports whether Close was called.
func (p *Poller) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// Timeouts returns the timeout passed to every Wait so far.
func (p *Poller) Timeouts() []time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]time.Duration, len(p.timeouts))
	copy(out, p.timeouts)
	return out
}

// LastInterest returns the interest list of the latest Wait.
func (p *Poller) LastInterest() []api.Interest {
	p.mu.Lock()
	defer p.mu.Unlock()
	if len(p.interest) == 0 {
		return nil
	}
	return p.interest[len(p.interest)-1]
}

// Waits returns the number of Wait calls.
func (p *Poller) Waits() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.timeouts)
}
