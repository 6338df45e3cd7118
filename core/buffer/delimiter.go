// File: core/buffer/delimiter.go
// Author: momentics <momentics@gmail.com>
//
// Record boundaries for Buffer.Next and Buffer.Records.

package buffer

import (
	"bytes"
	"fmt"
	"regexp"
	"strconv"

	"github.com/momentics/hioload-select/api"
)

type delimKind uint8

const (
	kindNone delimKind = iota
	kindByteCount
	kindPattern
	kindLiteral
)

// Delimiter selects where the next complete record ends. It is one of
// ByteCount, Pattern or Literal; the zero value is not a valid delimiter.
// Terminators matched by Pattern and Literal are consumed but are not part
// of the record.
type Delimiter struct {
	kind delimKind
	n    int
	re   *regexp.Regexp
	lit  []byte
}

// DefaultDelimiter terminates records at a line feed.
var DefaultDelimiter = Literal("\n")

// ByteCount makes records of exactly n bytes.
func ByteCount(n int) Delimiter {
	return Delimiter{kind: kindByteCount, n: n}
}

// Literal ends a record at the first exact occurrence of s.
func Literal(s string) Delimiter {
	return Delimiter{kind: kindLiteral, lit: []byte(s)}
}

// Pattern compiles expr and ends a record at its leftmost match.
func Pattern(expr string) (Delimiter, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return Delimiter{}, fmt.Errorf("delimiter pattern: %w", err)
	}
	d := PatternOf(re)
	if err := d.Validate(); err != nil {
		return Delimiter{}, err
	}
	return d, nil
}

// MustPattern is like Pattern but panics on error.
func MustPattern(expr string) Delimiter {
	d, err := Pattern(expr)
	if err != nil {
		panic(err)
	}
	return d
}

// PatternOf wraps an already compiled expression.
func PatternOf(re *regexp.Regexp) Delimiter {
	return Delimiter{kind: kindPattern, re: re}
}

// LiteralValue returns the terminator of a Literal delimiter.
func (d Delimiter) LiteralValue() (string, bool) {
	return string(d.lit), d.kind == kindLiteral
}

// ByteCountValue returns the record size of a ByteCount delimiter.
func (d Delimiter) ByteCountValue() (int, bool) {
	return d.n, d.kind == kindByteCount
}

// IsZero reports whether d was never set.
func (d Delimiter) IsZero() bool { return d.kind == kindNone }

// Validate rejects delimiters that could never produce a non-empty record.
func (d Delimiter) Validate() error {
	var reason string
	switch d.kind {
	case kindByteCount:
		if d.n <= 0 {
			reason = "byte count must be positive"
		}
	case kindLiteral:
		if len(d.lit) == 0 {
			reason = "literal must not be empty"
		}
	case kindPattern:
		if d.re == nil {
			reason = "pattern is nil"
		} else if d.re.MatchString("") {
			reason = "pattern matches the empty string"
		}
	default:
		reason = "delimiter not set"
	}
	if reason == "" {
		return nil
	}
	return api.NewError(api.ErrCodeInvalidArgument, "delimiter: "+reason, api.ErrInvalidArgument).
		WithContext("delimiter", d.String())
}

// Next locates the first complete record at the start of p. The record is
// p[:end]; advance covers the record and its terminator.
func (d Delimiter) Next(p []byte) (end, advance int, ok bool) {
	switch d.kind {
	case kindByteCount:
		if d.n > 0 && len(p) >= d.n {
			return d.n, d.n, true
		}
	case kindLiteral:
		if len(d.lit) == 0 {
			return 0, 0, false
		}
		if i := bytes.Index(p, d.lit); i >= 0 {
			return i, i + len(d.lit), true
		}
	case kindPattern:
		if d.re == nil {
			return 0, 0, false
		}
		// an empty match cannot end a record, rescan past it for one that consumes input
		for from := 0; from <= len(p); {
			loc := d.re.FindIndex(p[from:])
			if loc == nil {
				break
			}
			start, stop := from+loc[0], from+loc[1]
			if stop > start {
				return start, stop, true
			}
			from = stop + 1
		}
	}
	return 0, 0, false
}

func (d Delimiter) String() string {
	switch d.kind {
	case kindByteCount:
		return "bytes(" + strconv.Itoa(d.n) + ")"
	case kindLiteral:
		return "literal(" + strconv.Quote(string(d.lit)) + ")"
	case kindPattern:
		if d.re == nil {
			return "pattern(<nil>)"
		}
		return "pattern(" + d.re.String() + ")"
	default:
		return "none"
	}
}
