// File: api/events.go
// Package api defines core event types for hioload-select.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0

package api

import "strings"

// EventKind is a set of readiness conditions.
type EventKind uint8

const (
	Readable EventKind = 1 << iota
	Writable
	Error

	// AllEvents selects every kind in Unregister, Pause and Resume.
	AllEvents = Readable | Writable | Error
)

// Kinds lists the individual kinds in dispatch order.
var Kinds = [...]EventKind{Readable, Writable, Error}

// Has reports whether every kind in o is set in k.
func (k EventKind) Has(o EventKind) bool {
	return k&o == o
}

func (k EventKind) String() string {
	if k == 0 {
		return "none"
	}
	var parts []string
	if k&Readable != 0 {
		parts = append(parts, "readable")
	}
	if k&Writable != 0 {
		parts = append(parts, "writable")
	}
	if k&Error != 0 {
		parts = append(parts, "error")
	}
	return strings.Join(parts, "|")
}
