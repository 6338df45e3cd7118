// File: core/buffer/buffer.go
// Author: momentics <momentics@gmail.com>
//
// Package buffer implements the growable byte sequence used by buffered
// sockets for pending reads and writes. Storage is borrowed from
// bytebufferpool on first use and handed back by Release.

package buffer

import (
	"iter"

	"github.com/valyala/bytebufferpool"

	"github.com/momentics/hioload-select/api"
)

// Buffer is an append-only byte sequence that can drop a prefix in place.
// The zero value is an empty buffer ready for use.
type Buffer struct {
	bb *bytebufferpool.ByteBuffer
}

// New returns an empty buffer.
func New() *Buffer {
	return &Buffer{}
}

// From returns a buffer holding a copy of p.
func From(p []byte) *Buffer {
	b := New()
	b.Append(p)
	return b
}

func (b *Buffer) storage() *bytebufferpool.ByteBuffer {
	if b.bb == nil {
		b.bb = bytebufferpool.Get()
	}
	return b.bb
}

// Append adds p to the end of the buffer.
func (b *Buffer) Append(p []byte) {
	if len(p) == 0 {
		return
	}
	b.storage().B = append(b.storage().B, p...)
}

// AppendString adds s to the end of the buffer.
func (b *Buffer) AppendString(s string) {
	if s == "" {
		return
	}
	b.storage().B = append(b.storage().B, s...)
}

// Write implements io.Writer. It never fails.
func (b *Buffer) Write(p []byte) (int, error) {
	b.Append(p)
	return len(p), nil
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	if b.bb == nil {
		return 0
	}
	return len(b.bb.B)
}

// Bytes returns the buffered bytes. The slice aliases the buffer and is
// only valid until the next mutation.
func (b *Buffer) Bytes() []byte {
	if b.bb == nil {
		return nil
	}
	return b.bb.B
}

func (b *Buffer) String() string {
	return string(b.Bytes())
}

// RemovePrefix drops the first n bytes.
func (b *Buffer) RemovePrefix(n int) error {
	if n < 0 || n > b.Len() {
		return api.NewError(api.ErrCodeInvalidArgument, "remove prefix out of range", api.ErrInvalidArgument).
			WithContext("n", n).
			WithContext("len", b.Len())
	}
	if n == 0 {
		return nil
	}
	rest := copy(b.bb.B, b.bb.B[n:])
	b.bb.B = b.bb.B[:rest]
	return nil
}

// Concat returns a new buffer holding b followed by o. Neither operand changes.
func (b *Buffer) Concat(o *Buffer) *Buffer {
	out := New()
	out.Append(b.Bytes())
	if o != nil {
		out.Append(o.Bytes())
	}
	return out
}

// Next removes the first complete record and its terminator and returns the
// record.
func (b *Buffer) Next(d Delimiter) ([]byte, bool) {
	end, advance, ok := d.Next(b.Bytes())
	if !ok {
		return nil, false
	}
	rec := make([]byte, end)
	copy(rec, b.bb.B[:end])
	_ = b.RemovePrefix(advance)
	return rec, true
}

// Records yields every complete record currently buffered, removing each one
// as it is produced. A trailing partial record stays buffered, and stopping
// early leaves the unvisited records in place for the next call. The buffer
// may be appended to while iterating.
func (b *Buffer) Records(d Delimiter) iter.Seq[[]byte] {
	return func(yield func([]byte) bool) {
		for {
			rec, ok := b.Next(d)
			if !ok || !yield(rec) {
				return
			}
		}
	}
}

// Reset empties the buffer but keeps its storage.
func (b *Buffer) Reset() {
	if b.bb != nil {
		b.bb.Reset()
	}
}

// Release returns the storage to the pool. The buffer stays usable and
// starts out empty.
func (b *Buffer) Release() {
	if b.bb != nil {
		bytebufferpool.Put(b.bb)
		b.bb = nil
	}
}
