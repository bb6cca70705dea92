// Package buffer provides the append-only byte accumulator used to collect
// header and body bytes as the transport delivers them.
package buffer

import (
	"errors"
	"io"
)

var ErrTooLarge = errors.New("buffer: append exceeds size limit")

// Buffer is an append-only byte accumulator. Capacity only grows; the logical
// length never exceeds it. A zero Buffer is empty and ready to use.
type Buffer struct {
	data  []byte
	limit int // 0 means unlimited
}

func New() *Buffer {
	return &Buffer{}
}

// WithCapacity returns an empty Buffer pre-sized to n bytes.
func WithCapacity(n int) *Buffer {
	if n < 0 {
		n = 0
	}
	return &Buffer{data: make([]byte, 0, n)}
}

// WithLimit returns an empty Buffer that refuses appends growing it past n
// bytes. A refused append stands in for an allocation failure.
func WithLimit(n int) *Buffer {
	return &Buffer{limit: n}
}

// Append copies p to the end of the content and returns the number of bytes
// accepted. It accepts either all of p or nothing; when nothing is accepted
// the previous content is left unchanged.
func (b *Buffer) Append(p []byte) int {
	if len(p) == 0 {
		return 0
	}
	if b.limit > 0 && len(b.data)+len(p) > b.limit {
		return 0
	}
	b.data = append(b.data, p...)
	return len(p)
}

// Write implements io.Writer on top of Append.
func (b *Buffer) Write(p []byte) (int, error) {
	n := b.Append(p)
	if n < len(p) {
		return n, ErrTooLarge
	}
	return n, nil
}

// WriteTo persists the content as is, without any terminator.
func (b *Buffer) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(b.data)
	return int64(n), err
}

// Reset drops the content and keeps the backing storage.
func (b *Buffer) Reset() {
	b.data = b.data[:0]
}

// Clone returns a deep copy with its own backing storage.
func (b *Buffer) Clone() *Buffer {
	c := &Buffer{limit: b.limit}
	if len(b.data) > 0 {
		c.data = make([]byte, len(b.data))
		copy(c.data, b.data)
	}
	return c
}

// Take moves the content out of b. b is left empty and no longer shares
// storage with the returned slice.
func (b *Buffer) Take() []byte {
	data := b.data
	b.data = nil
	return data
}

func (b *Buffer) Bytes() []byte { return b.data }
func (b *Buffer) Len() int      { return len(b.data) }
func (b *Buffer) Cap() int      { return cap(b.data) }

// String renders the content as text.
func (b *Buffer) String() string {
	if b == nil || len(b.data) == 0 {
		return ""
	}
	return string(b.data)
}
