//go:build darwin || dragonfly || freebsd || netbsd || openbsd

// File: reactor/reactor_bsd.go
// Author: momentics <momentics@gmail.com>
//
// BSD and macOS poller factory.

package reactor

import "github.com/momentics/hioload-select/api"

// NewPoller returns the platform readiness primitive: poll(2).
func NewPoller() (api.Poller, error) {
	return NewPollPoller()
}
