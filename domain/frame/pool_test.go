package frame

import (
	"sync"
	"testing"
)

func TestBufferPool_ReusesReleasedBlock(t *testing.T) {
	p := NewBufferPool(4, nil)
	b, ok := p.Acquire(1024)
	if !ok || b.Len() != 1024 {
		t.Fatalf("acquire failed: ok=%v", ok)
	}
	p.Release(b)
	b2, ok := p.Acquire(512)
	if !ok {
		t.Fatalf("second acquire failed")
	}
	if b2 != b {
		t.Fatalf("expected pooled block to be reused")
	}
	if b2.Len() != 512 || b2.Cap() < 1024 {
		t.Fatalf("unexpected len/cap %d/%d", b2.Len(), b2.Cap())
	}
	s := p.Stats()
	if s.Allocated != 1 || s.Reused != 1 || s.Outstanding != 1 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestBufferPool_SmallerBlockNotReused(t *testing.T) {
	p := NewBufferPool(4, nil)
	small, _ := p.Acquire(16)
	p.Release(small)
	big, ok := p.Acquire(64)
	if !ok || big == small {
		t.Fatalf("a 16 byte block must not serve a 64 byte request")
	}
	if p.Stats().Pooled != 1 {
		t.Fatalf("small block should remain pooled")
	}
}

func TestBufferPool_InvalidSize(t *testing.T) {
	p := NewBufferPool(4, nil)
	for _, size := range []int{0, -1, MaxBlockSize + 1} {
		if b, ok := p.Acquire(size); ok || b != nil {
			t.Fatalf("size %d should fail", size)
		}
	}
	if p.Stats().Failed != 3 {
		t.Fatalf("expected 3 failures, got %+v", p.Stats())
	}
}

func TestBufferPool_AllocationFailureReturnsFalse(t *testing.T) {
	p := NewBufferPool(4, nil)
	p.alloc = func(int) []byte { panic("out of memory") }
	b, ok := p.Acquire(128)
	if ok || b != nil {
		t.Fatalf("expected allocation failure to be reported as false")
	}
	if s := p.Stats(); s.Failed != 1 || s.Outstanding != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestBufferPool_CeilingDiscardsExtra(t *testing.T) {
	p := NewBufferPool(2, nil)
	var bufs []*Buffer
	for i := 0; i < 5; i++ {
		b, _ := p.Acquire(8)
		bufs = append(bufs, b)
	}
	for _, b := range bufs {
		p.Release(b)
	}
	s := p.Stats()
	if s.Pooled != 2 || s.Discarded != 3 || s.Outstanding != 0 {
		t.Fatalf("unexpected stats %+v", s)
	}
}

func TestBufferPool_RetainDefersReturn(t *testing.T) {
	p := NewBufferPool(4, nil)
	b, _ := p.Acquire(8)
	b.Retain()
	p.Release(b)
	if p.Stats().Pooled != 0 {
		t.Fatalf("retained buffer must not be pooled yet")
	}
	p.Release(b)
	if p.Stats().Pooled != 1 {
		t.Fatalf("buffer should be pooled after last release")
	}
	p.Release(b) // double release ignored
	if s := p.Stats(); s.Pooled != 1 || s.Outstanding != 0 {
		t.Fatalf("double release changed stats %+v", s)
	}
}

func TestBufferPool_ConcurrentAcquireRelease(t *testing.T) {
	p := NewBufferPool(16, nil)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 500; i++ {
				b, ok := p.Acquire(256)
				if !ok {
					t.Errorf("acquire failed")
					return
				}
				b.Bytes()[0] = byte(i)
				p.Release(b)
			}
		}()
	}
	wg.Wait()
	if s := p.Stats(); s.Outstanding != 0 || s.Pooled > 16 {
		t.Fatalf("unexpected stats after concurrent use %+v", s)
	}
}
