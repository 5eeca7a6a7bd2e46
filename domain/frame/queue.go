package frame

import (
	"sync"
	"sync/atomic"
)

// DefaultCapacity returns max(2, processors/2).
func DefaultCapacity() int {
	return max(2, NumProcessors()/2)
}

// Queue is a bounded, timestamp-ordered window of the most recent samples.
// Push never blocks: when the queue overflows the oldest sample is evicted and
// its buffer released. Reads are safe concurrently with Push.
type Queue struct {
	mu       sync.Mutex
	ring     []Sample // capacity+1 slots so a push may overflow by one
	head     int
	size     int
	capacity int
	releaser Releaser
	evicted  atomic.Uint64
}

// NewQueue creates a queue holding at most capacity samples; capacity <= 0
// selects DefaultCapacity and values below 2 are raised to 2.
func NewQueue(capacity int, releaser Releaser) *Queue {
	if capacity <= 0 {
		capacity = DefaultCapacity()
	}
	if capacity < 2 {
		capacity = 2
	}
	return &Queue{ring: make([]Sample, capacity+1), capacity: capacity, releaser: releaser}
}

// Push appends s at the newest end, taking ownership of its buffer, then
// evicts the oldest sample if the queue is over capacity. A timestamp older
// than the current newest is raised to keep the queue non-decreasing.
func (q *Queue) Push(s Sample) {
	q.mu.Lock()
	if q.size > 0 {
		if newest := q.at(q.size - 1); s.Timestamp < newest.Timestamp {
			s.Timestamp = newest.Timestamp
		}
	}
	q.ring[(q.head+q.size)%len(q.ring)] = s
	q.size++
	old, ok := q.evictLocked()
	q.mu.Unlock()
	if ok {
		q.release(old)
	}
}

// EvictOldestIfOverflow drops the oldest sample while the queue is over
// capacity. Push already does this; it is exposed for callers that shrink the
// queue by other means.
func (q *Queue) EvictOldestIfOverflow() {
	for {
		q.mu.Lock()
		old, ok := q.evictLocked()
		q.mu.Unlock()
		if !ok {
			return
		}
		q.release(old)
	}
}

func (q *Queue) evictLocked() (Sample, bool) {
	if q.size <= q.capacity {
		return Sample{}, false
	}
	old := q.ring[q.head]
	q.ring[q.head] = Sample{}
	q.head = (q.head + 1) % len(q.ring)
	q.size--
	return old, true
}

func (q *Queue) release(s Sample) {
	q.evicted.Add(1)
	if q.releaser != nil && s.Buf != nil {
		q.releaser.Release(s.Buf)
	}
}

// at returns the i-th sample from the oldest end. Caller holds mu.
func (q *Queue) at(i int) Sample {
	return q.ring[(q.head+i)%len(q.ring)]
}

// Latest returns the newest sample.
func (q *Queue) Latest() (Sample, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size == 0 {
		return Sample{}, false
	}
	return q.at(q.size - 1), true
}

// SecondLatest returns the sample just before the newest.
func (q *Queue) SecondLatest() (Sample, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size < 2 {
		return Sample{}, false
	}
	return q.at(q.size - 2), true
}

// AcquirePair returns the two newest samples with an extra reference held on
// both buffers, so an eviction racing the caller cannot recycle the memory.
// The caller must Release both buffers. ok is false with fewer than 2 samples.
func (q *Queue) AcquirePair() (prev, latest Sample, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.size < 2 {
		return Sample{}, Sample{}, false
	}
	prev, latest = q.at(q.size-2), q.at(q.size-1)
	prev.Buf.Retain()
	latest.Buf.Retain()
	return prev, latest, true
}

// Size returns the number of queued samples.
func (q *Queue) Size() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.size
}

// Capacity returns the maximum number of samples retained.
func (q *Queue) Capacity() int { return q.capacity }

// Evicted returns how many samples were dropped from the oldest end.
func (q *Queue) Evicted() uint64 { return q.evicted.Load() }

// Snapshot returns the queued samples from oldest to newest. Buffers are not
// retained; the result is for inspection only.
func (q *Queue) Snapshot() []Sample {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]Sample, q.size)
	for i := range out {
		out[i] = q.at(i)
	}
	return out
}

// Drain empties the queue and releases every buffer. Used at teardown.
func (q *Queue) Drain() int {
	q.mu.Lock()
	drained := make([]Sample, 0, q.size)
	for q.size > 0 {
		drained = append(drained, q.ring[q.head])
		q.ring[q.head] = Sample{}
		q.head = (q.head + 1) % len(q.ring)
		q.size--
	}
	q.head = 0
	q.mu.Unlock()
	for _, s := range drained {
		if q.releaser != nil && s.Buf != nil {
			q.releaser.Release(s.Buf)
		}
	}
	return len(drained)
}
