package debug

import (
	"bytes"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func waitForLog(t *testing.T, out *syncBuffer, needle string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if strings.Contains(out.String(), needle) {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("log never contained %q: %s", needle, out.String())
}

func TestGoroutineLogger_IncludesExtraAttrs(t *testing.T) {
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))
	stop := make(chan struct{})
	defer close(stop)
	StartGoroutineLogger(10*time.Millisecond, stop, func() []slog.Attr {
		return []slog.Attr{slog.Int("pool_outstanding", 7)}
	}, logger)
	waitForLog(t, out, "pool_outstanding=7")
	if !strings.Contains(out.String(), "goroutines=") {
		t.Fatalf("missing goroutine count: %s", out.String())
	}
}

func TestMemLogger_StopsOnClose(t *testing.T) {
	out := &syncBuffer{}
	logger := slog.New(slog.NewTextHandler(out, nil))
	stop := make(chan struct{})
	StartMemLogger(10*time.Millisecond, stop, logger)
	waitForLog(t, out, "memstats")
	close(stop)
	time.Sleep(30 * time.Millisecond)
	n := strings.Count(out.String(), "memstats")
	time.Sleep(50 * time.Millisecond)
	if strings.Count(out.String(), "memstats") != n {
		t.Fatalf("logger kept running after stop")
	}
}
