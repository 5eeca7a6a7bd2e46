package frame

import "sync/atomic"

// Buffer is a reusable block of raw RGBA pixel memory handed out by a
// BufferPool. A buffer is reference counted: Acquire returns it with one
// reference, Retain adds one and BufferPool.Release drops one. The block goes
// back to the pool when the last reference is released.
type Buffer struct {
	data []byte
	refs atomic.Int32
}

// Bytes returns the usable slice (length = requested size).
func (b *Buffer) Bytes() []byte { return b.data }

// Len returns the requested size of the buffer.
func (b *Buffer) Len() int { return len(b.data) }

// Cap returns the capacity of the underlying block.
func (b *Buffer) Cap() int { return cap(b.data) }

// Retain adds a reference. Callers that hand the buffer to another goroutine
// must Retain before and Release when that goroutine is done.
func (b *Buffer) Retain() { b.refs.Add(1) }

// Refs reports the current reference count.
func (b *Buffer) Refs() int32 { return b.refs.Load() }

// Sample is one captured frame: the pixel buffer plus its monotonic capture
// timestamp in nanoseconds. Seq increases by one per accepted frame.
type Sample struct {
	Buf       *Buffer
	Timestamp int64
	Seq       uint64
	Width     int
	Height    int
}

// Valid reports whether the sample carries a buffer large enough for its
// declared dimensions.
func (s Sample) Valid() bool {
	return s.Buf != nil && s.Width > 0 && s.Height > 0 && s.Buf.Len() >= s.Width*s.Height*4
}

// Pixels returns exactly Width*Height*4 bytes of the sample.
func (s Sample) Pixels() []byte {
	if !s.Valid() {
		return nil
	}
	return s.Buf.Bytes()[:s.Width*s.Height*4]
}

// Releaser returns buffers to their pool.
type Releaser interface {
	Release(*Buffer)
}
