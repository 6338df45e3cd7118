// File: reactor/timers.go
// Author: momentics <momentics@gmail.com>
//
// Deadline-ordered queue of one-shot deferred actions.

package reactor

import (
	"sort"
	"time"
)

// Timer is a scheduled one-shot action.
type Timer struct {
	deadline time.Time
	fn       func() error
	seq      uint64
	q        *timerQueue
}

// Deadline returns the time the timer is due.
func (t *Timer) Deadline() time.Time { return t.deadline }

// Cancel removes a pending timer. It reports false when the timer already
// fired or was cancelled.
func (t *Timer) Cancel() bool {
	if t.q == nil {
		return false
	}
	return t.q.remove(t)
}

// timerQueue keeps entries sorted ascending by deadline, FIFO among equals.
type timerQueue struct {
	entries []*Timer
	seq     uint64
}

func (q *timerQueue) insert(deadline time.Time, fn func() error) *Timer {
	q.seq++
	t := &Timer{deadline: deadline, fn: fn, seq: q.seq, q: q}
	i := sort.Search(len(q.entries), func(i int) bool {
		return q.entries[i].deadline.After(deadline)
	})
	q.entries = append(q.entries, nil)
	copy(q.entries[i+1:], q.entries[i:])
	q.entries[i] = t
	return t
}

func (q *timerQueue) remove(t *Timer) bool {
	for i, e := range q.entries {
		if e == t {
			q.entries = append(q.entries[:i], q.entries[i+1:]...)
			t.q = nil
			return true
		}
	}
	return false
}

// next returns the earliest deadline.
func (q *timerQueue) next() (time.Time, bool) {
	if len(q.entries) == 0 {
		return time.Time{}, false
	}
	return q.entries[0].deadline, true
}

// popDue removes the head if it is due at now and was queued no later than
// the entry numbered maxSeq.
func (q *timerQueue) popDue(now time.Time, maxSeq uint64) (*Timer, bool) {
	if len(q.entries) == 0 {
		return nil, false
	}
	head := q.entries[0]
	if head.deadline.After(now) || head.seq > maxSeq {
		return nil, false
	}
	q.entries[0] = nil
	q.entries = q.entries[1:]
	head.q = nil
	return head, true
}

func (q *timerQueue) len() int { return len(q.entries) }
