//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd

// File: reactor/poll_unix.go
// Author: momentics <momentics@gmail.com>
//
// poll(2) readiness primitive, the closest match to select semantics.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-select/api"
)

// PollPoller implements api.Poller with one poll(2) call per wait.
type PollPoller struct {
	fds []unix.PollFd
}

// NewPollPoller returns a poll(2) based poller.
func NewPollPoller() (*PollPoller, error) {
	return &PollPoller{}, nil
}

func pollMask(kinds api.EventKind) int16 {
	var ev int16
	if kinds&api.Readable != 0 {
		ev |= unix.POLLIN
	}
	if kinds&api.Writable != 0 {
		ev |= unix.POLLOUT
	}
	if kinds&api.Error != 0 {
		ev |= unix.POLLPRI
	}
	return ev
}

// Wait implements api.Poller.
func (p *PollPoller) Wait(interest []api.Interest, timeout time.Duration) ([]api.Readiness, error) {
	s := newFDSet(interest)
	p.fds = p.fds[:0]
	for _, fd := range s.order {
		p.fds = append(p.fds, unix.PollFd{Fd: int32(fd), Events: pollMask(s.kinds[fd])})
	}

	n, err := unix.Poll(p.fds, timeoutMillis(timeout))
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return nil, nil
		}
		return nil, fmt.Errorf("poll: %w", err)
	}
	if n == 0 {
		return nil, nil
	}
	out := make([]api.Readiness, 0, n)
	for _, pfd := range p.fds {
		if pfd.Revents == 0 {
			continue
		}
		fd := int(pfd.Fd)
		bits := readyBits{
			in:   pfd.Revents&unix.POLLIN != 0,
			out:  pfd.Revents&unix.POLLOUT != 0,
			pri:  pfd.Revents&unix.POLLPRI != 0,
			err:  pfd.Revents&unix.POLLERR != 0,
			hup:  pfd.Revents&unix.POLLHUP != 0,
			nval: pfd.Revents&unix.POLLNVAL != 0,
		}
		if k := bits.kindsFor(s.kinds[fd]); k != 0 {
			out = append(out, api.Readiness{Handle: s.handles[fd], Kinds: k})
		}
	}
	return out, nil
}

// Close implements api.Poller. poll(2) holds no kernel state.
func (p *PollPoller) Close() error {
	p.fds = nil
	return nil
}
