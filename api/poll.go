// Package api
// Author: momentics
//
// Readiness primitive used by the reactor: "wait until any of these handles
// is ready or the timeout elapses".

package api

import "time"

// Poller waits for readiness on a set of handles.
type Poller interface {
	// Wait blocks until at least one interest is ready or timeout elapses.
	// A negative timeout blocks without bound. Implementations must only
	// report kinds that were asked for, and should return an empty result
	// rather than an error when interrupted by a signal.
	Wait(interest []Interest, timeout time.Duration) ([]Readiness, error)

	// Close releases the poller's OS resources.
	Close() error
}
