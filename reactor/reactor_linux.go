//go:build linux
// +build linux

// File: reactor/reactor_linux.go
// Author: momentics <momentics@gmail.com>
//
// Linux poller factory.

package reactor

import "github.com/momentics/hioload-select/api"

// NewPoller returns the platform readiness primitive: epoll on Linux.
func NewPoller() (api.Poller, error) {
	return NewEpollPoller()
}
