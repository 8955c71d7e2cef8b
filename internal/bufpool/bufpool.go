// Package bufpool centralizes the pooled byte buffers used while parsing
// header blocks and assembling chunk scratch space. It is internal: the
// exported packages only ever see []byte, never the pool machinery.
//
// Grounded on the teacher's client/pools.go (GetLargeBuffer/PutLargeBuffer
// size-classed sync.Pool design), adapted to wrap
// github.com/valyala/bytebufferpool instead of a hand-rolled *[]byte
// sync.Pool — bytebufferpool already implements the same size-classed
// reuse strategy with calibrated growth, which is exactly what the
// teacher's large/small buffer split was approximating by hand.
package bufpool

import "github.com/valyala/bytebufferpool"

// Buffer wraps a pooled byte buffer. The zero value is not usable; obtain
// one from Get.
type Buffer struct {
	bb *bytebufferpool.ByteBuffer
}

// Get returns an empty pooled buffer. Call Release when done.
func Get() *Buffer {
	return &Buffer{bb: bytebufferpool.Get()}
}

// Release returns the buffer to the pool. The Buffer must not be used
// afterward.
func (b *Buffer) Release() {
	if b == nil || b.bb == nil {
		return
	}
	bytebufferpool.Put(b.bb)
	b.bb = nil
}

// Bytes returns the buffer's current contents.
func (b *Buffer) Bytes() []byte { return b.bb.B }

// Len returns the number of bytes currently held.
func (b *Buffer) Len() int { return len(b.bb.B) }

// Reset empties the buffer while keeping its backing array.
func (b *Buffer) Reset() { b.bb.Reset() }

// Append appends p to the buffer's contents, growing as needed.
func (b *Buffer) Append(p []byte) {
	b.bb.Write(p)
}

// Grow ensures the buffer has room for at least n more bytes without
// reallocating, without changing its length.
func (b *Buffer) Grow(n int) {
	if cap(b.bb.B)-len(b.bb.B) >= n {
		return
	}
	grown := make([]byte, len(b.bb.B), len(b.bb.B)+n)
	copy(grown, b.bb.B)
	b.bb.B = grown
}
