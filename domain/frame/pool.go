package frame

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dustin/go-humanize"
)

// DefaultPoolCeiling bounds how many idle blocks a pool keeps.
const DefaultPoolCeiling = 120

// MaxBlockSize caps a single allocation (an 8K RGBA frame is ~133MB).
const MaxBlockSize = 256 << 20

// ErrInvalidSize is returned for sizes <= 0 or above MaxBlockSize.
var ErrInvalidSize = errors.New("frame: invalid buffer size")

// PoolStats is a point-in-time view of pool bookkeeping.
type PoolStats struct {
	Pooled      int    // idle blocks ready for reuse
	Outstanding int64  // blocks acquired and not yet released
	Allocated   uint64 // fresh allocations over the pool lifetime
	Reused      uint64 // acquisitions served from idle blocks
	Discarded   uint64 // releases dropped because the pool was full
	Failed      uint64 // acquisitions that returned no buffer
}

// BufferPool recycles fixed-size pixel blocks between the capture producer
// and the render side. It is safe for concurrent Acquire/Release.
//
// Unlike a sync.Pool the idle set is bounded and never emptied by the GC, so
// steady-state capture does not allocate once the pool is warm.
type BufferPool struct {
	mu      sync.Mutex
	free    []*Buffer
	ceiling int
	stats   PoolStats
	logger  *slog.Logger

	alloc func(int) []byte
}

// NewBufferPool constructs a pool that keeps at most ceiling idle blocks.
func NewBufferPool(ceiling int, logger *slog.Logger) *BufferPool {
	if ceiling <= 0 {
		ceiling = DefaultPoolCeiling
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &BufferPool{ceiling: ceiling, logger: logger, alloc: func(n int) []byte { return make([]byte, n) }}
}

// Acquire returns a block whose Len is size. An idle block with enough
// capacity is reused, otherwise a new one is allocated. It reports false when
// the size is invalid or the allocation fails; callers drop the frame.
func (p *BufferPool) Acquire(size int) (*Buffer, bool) {
	if size <= 0 || size > MaxBlockSize {
		p.fail(size, ErrInvalidSize)
		return nil, false
	}
	p.mu.Lock()
	for i, b := range p.free {
		if cap(b.data) < size {
			continue
		}
		last := len(p.free) - 1
		p.free[i] = p.free[last]
		p.free[last] = nil
		p.free = p.free[:last]
		p.stats.Reused++
		p.stats.Outstanding++
		p.mu.Unlock()
		b.data = b.data[:size]
		b.refs.Store(1)
		return b, true
	}
	p.mu.Unlock()

	data, err := p.allocate(size)
	if err != nil {
		p.fail(size, err)
		return nil, false
	}
	b := &Buffer{data: data}
	b.refs.Store(1)
	p.mu.Lock()
	p.stats.Allocated++
	p.stats.Outstanding++
	p.mu.Unlock()
	return b, true
}

// allocate converts an allocation panic into an error.
func (p *BufferPool) allocate(size int) (data []byte, err error) {
	defer func() {
		if r := recover(); r != nil {
			data, err = nil, fmt.Errorf("frame: allocate %s: %v", humanize.Bytes(uint64(size)), r)
		}
	}()
	data = p.alloc(size)
	if len(data) < size {
		return nil, fmt.Errorf("frame: allocator returned %d of %d bytes", len(data), size)
	}
	return data[:size], nil
}

func (p *BufferPool) fail(size int, err error) {
	p.mu.Lock()
	p.stats.Failed++
	p.mu.Unlock()
	p.logger.Warn("buffer acquire failed", "size", size, "error", err)
}

// Release drops one reference. When the last reference goes away the block
// is kept for reuse while the pool is below its ceiling, otherwise discarded.
// Releasing an already released buffer is ignored.
func (p *BufferPool) Release(b *Buffer) {
	if b == nil {
		return
	}
	n := b.refs.Add(-1)
	if n > 0 {
		return
	}
	if n < 0 {
		b.refs.Add(1)
		p.logger.Debug("buffer released twice", "cap", b.Cap())
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats.Outstanding--
	if len(p.free) >= p.ceiling {
		p.stats.Discarded++
		return
	}
	p.free = append(p.free, b)
}

// Stats returns a snapshot of the pool counters.
func (p *BufferPool) Stats() PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.stats
	s.Pooled = len(p.free)
	return s
}

// LogValue summarises the pool for structured logs.
func (p *BufferPool) LogValue() slog.Value {
	s := p.Stats()
	var idle uint64
	p.mu.Lock()
	for _, b := range p.free {
		idle += uint64(cap(b.data))
	}
	p.mu.Unlock()
	return slog.GroupValue(
		slog.Int("pooled", s.Pooled),
		slog.Int64("outstanding", s.Outstanding),
		slog.Uint64("allocated", s.Allocated),
		slog.Uint64("discarded", s.Discarded),
		slog.String("idle_bytes", humanize.Bytes(idle)),
	)
}

var _ Releaser = (*BufferPool)(nil)
