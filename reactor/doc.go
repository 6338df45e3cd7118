// Copyright (c) 2025
// Author: momentics <momentics@gmail.com>

// Package reactor provides a single-threaded readiness reactor: callbacks are
// registered per (handle, kind), a poller waits until any handle is ready or
// the earliest timer is due, and the ready set is dispatched once per pair.
//
// The reactor is not safe for concurrent use. All registrations, timers and
// dispatch happen on the goroutine that drives Run or RunOnce; other
// goroutines must wake it through a registered handle such as a pipe.
//
// Readiness is provided by epoll on Linux and poll(2) on the BSDs and macOS.
package reactor
