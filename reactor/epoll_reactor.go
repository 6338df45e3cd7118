//go:build linux
// +build linux

// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor - Linux epoll readiness primitive.

package reactor

import (
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/unix"

	"github.com/momentics/hioload-select/api"
)

const maxEpollEvents = 128

// EpollPoller implements api.Poller with a level-triggered epoll set that is
// brought in line with the requested interest before every wait.
type EpollPoller struct {
	epfd    int
	watched map[int]watch
	events  []unix.EpollEvent
}

// watch is what the kernel set holds for one descriptor.
type watch struct {
	mask   uint32
	handle api.Handle
}

// NewEpollPoller creates a new epoll instance.
func NewEpollPoller() (*EpollPoller, error) {
	epfd, err := unix.EpollCreate1(unix.EPOLL_CLOEXEC)
	if err != nil {
		return nil, fmt.Errorf("epoll create: %w", err)
	}
	return &EpollPoller{
		epfd:    epfd,
		watched: make(map[int]watch),
		events:  make([]unix.EpollEvent, maxEpollEvents),
	}, nil
}

func epollMask(kinds api.EventKind) uint32 {
	var ev uint32
	if kinds&api.Readable != 0 {
		ev |= unix.EPOLLIN
	}
	if kinds&api.Writable != 0 {
		ev |= unix.EPOLLOUT
	}
	if kinds&api.Error != 0 {
		ev |= unix.EPOLLPRI
	}
	return ev
}

// sync applies add/modify/delete operations so the kernel set matches s.
// A descriptor number now used by a different handle is added again, since
// closing the old one already dropped it from the kernel set. Descriptors
// epoll refuses are returned: EPERM marks regular files, which are always
// ready, EBADF marks descriptors that are no longer open.
func (p *EpollPoller) sync(s fdSet) (always, invalid []int, err error) {
	for fd := range p.watched {
		if _, ok := s.kinds[fd]; !ok {
			// a closed fd has already left the set, ignore ENOENT/EBADF
			_ = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_DEL, fd, nil)
			delete(p.watched, fd)
		}
	}
	for _, fd := range s.order {
		mask := epollMask(s.kinds[fd])
		h := s.handles[fd]
		cur, known := p.watched[fd]
		if known && cur.handle != h {
			known = false
		}
		if known && cur.mask == mask {
			continue
		}
		ev := unix.EpollEvent{Events: mask, Fd: int32(fd)}
		op := unix.EPOLL_CTL_ADD
		if known {
			op = unix.EPOLL_CTL_MOD
		}
		cerr := unix.EpollCtl(p.epfd, op, fd, &ev)
		switch {
		case errors.Is(cerr, unix.ENOENT) && op == unix.EPOLL_CTL_MOD:
			cerr = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_ADD, fd, &ev)
		case errors.Is(cerr, unix.EEXIST) && op == unix.EPOLL_CTL_ADD:
			cerr = unix.EpollCtl(p.epfd, unix.EPOLL_CTL_MOD, fd, &ev)
		}
		switch {
		case cerr == nil:
			p.watched[fd] = watch{mask: mask, handle: h}
		case errors.Is(cerr, unix.EPERM):
			delete(p.watched, fd)
			always = append(always, fd)
		case errors.Is(cerr, unix.EBADF):
			delete(p.watched, fd)
			invalid = append(invalid, fd)
		default:
			return nil, nil, fmt.Errorf("epoll ctl fd=%d: %w", fd, cerr)
		}
	}
	return always, invalid, nil
}

// Wait implements api.Poller.
func (p *EpollPoller) Wait(interest []api.Interest, timeout time.Duration) ([]api.Readiness, error) {
	s := newFDSet(interest)
	always, invalid, err := p.sync(s)
	if err != nil {
		return nil, err
	}

	var out []api.Readiness
	for _, fd := range always {
		out = append(out, api.Readiness{Handle: s.handles[fd], Kinds: s.kinds[fd] & (api.Readable | api.Writable)})
	}
	for _, fd := range invalid {
		out = append(out, api.Readiness{Handle: s.handles[fd], Kinds: readyBits{nval: true}.kindsFor(s.kinds[fd])})
	}
	ms := timeoutMillis(timeout)
	if len(out) > 0 {
		ms = 0
	}

	n, err := unix.EpollWait(p.epfd, p.events, ms)
	if err != nil {
		if errors.Is(err, unix.EINTR) {
			return out, nil
		}
		return nil, fmt.Errorf("epoll wait: %w", err)
	}
	for i := 0; i < n; i++ {
		ev := p.events[i]
		fd := int(ev.Fd)
		h, ok := s.handles[fd]
		if !ok {
			continue
		}
		bits := readyBits{
			in:  ev.Events&unix.EPOLLIN != 0,
			out: ev.Events&unix.EPOLLOUT != 0,
			pri: ev.Events&unix.EPOLLPRI != 0,
			err: ev.Events&unix.EPOLLERR != 0,
			hup: ev.Events&unix.EPOLLHUP != 0,
		}
		if k := bits.kindsFor(s.kinds[fd]); k != 0 {
			out = append(out, api.Readiness{Handle: h, Kinds: k})
		}
	}
	return out, nil
}

// Close releases the epoll file descriptor.
func (p *EpollPoller) Close() error {
	return unix.Close(p.epfd)
}
