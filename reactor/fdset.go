// File: reactor/fdset.go
// Author: momentics <momentics@gmail.com>
//
// Descriptor bookkeeping shared by the OS pollers.

package reactor

import (
	"math"
	"time"

	"github.com/momentics/hioload-select/api"
)

// fdSet is an interest list keyed by descriptor.
type fdSet struct {
	order   []int
	handles map[int]api.Handle
	kinds   map[int]api.EventKind
}

func newFDSet(interest []api.Interest) fdSet {
	s := fdSet{
		handles: make(map[int]api.Handle, len(interest)),
		kinds:   make(map[int]api.EventKind, len(interest)),
	}
	for _, in := range interest {
		if in.Handle == nil || in.Kinds == 0 {
			continue
		}
		fd := int(in.Handle.Fd())
		if _, ok := s.kinds[fd]; !ok {
			s.order = append(s.order, fd)
		}
		s.handles[fd] = in.Handle
		s.kinds[fd] |= in.Kinds
	}
	return s
}

// readyBits is a platform neutral view of one descriptor's revents.
type readyBits struct {
	in, out, pri, err, hup, nval bool
}

// kindsFor maps revents onto the wanted kinds. Hangup and error conditions
// wake readers and writers so the next I/O call observes them; a hangup on a
// handle watched only for errors is reported as an error so that it does
// not spin.
func (b readyBits) kindsFor(want api.EventKind) api.EventKind {
	var k api.EventKind
	if want&api.Readable != 0 && (b.in || b.hup || b.err || b.nval) {
		k |= api.Readable
	}
	if want&api.Writable != 0 && (b.out || b.hup || b.err || b.nval) {
		k |= api.Writable
	}
	if want&api.Error != 0 && (b.pri || b.err || b.nval || (b.hup && want&(api.Readable|api.Writable) == 0)) {
		k |= api.Error
	}
	return k
}

// timeoutMillis rounds up so a short positive wait never becomes a busy poll.
func timeoutMillis(d time.Duration) int {
	if d < 0 {
		return -1
	}
	ms := (d + time.Millisecond - 1) / time.Millisecond
	if ms > math.MaxInt32 {
		ms = math.MaxInt32
	}
	return int(ms)
}
