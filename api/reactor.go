// File: api/reactor.go
// Author: momentics <momentics@gmail.com>
//
// Callback and readiness contracts shared by the reactor and its pollers.

package api

// Callback handles one readiness notification. A returned error is not
// handled by the reactor; it aborts the current dispatch and reaches the
// caller of RunOnce or Run.
type Callback func(h Handle, kind EventKind) error

// Interest asks the poller to watch a handle for a set of kinds.
type Interest struct {
	Handle Handle
	Kinds  EventKind
}

// Readiness reports the kinds a handle is ready for.
type Readiness struct {
	Handle Handle
	Kinds  EventKind
}
