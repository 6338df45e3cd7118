//go:build !linux && !darwin && !dragonfly && !freebsd && !netbsd && !openbsd

// File: reactor/reactor_stub.go
// Author: momentics <momentics@gmail.com>
//
// Stub implementation for unsupported platforms.

package reactor

import "github.com/momentics/hioload-select/api"

// NewPoller returns an error for unsupported platforms. Supply a poller
// through WithPoller instead.
func NewPoller() (api.Poller, error) {
	return nil, api.NewError(api.ErrCodeNotSupported, "reactor: no readiness primitive for this platform", api.ErrNotSupported)
}
