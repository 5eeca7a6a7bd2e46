package debug

// Periodic runtime loggers, started only when config.Debug is set. They sample
// goroutine count and stack usage next to pipeline counters so a leak in the
// render or upload workers shows up as a steady climb.

import (
	"context"
	"log/slog"
	"runtime"
	"runtime/metrics"
	"time"

	"github.com/dustin/go-humanize"
)

// AttrsFunc contributes extra attributes to each sample, typically pool and
// queue counters from the pipeline.
type AttrsFunc func() []slog.Attr

// StartGoroutineLogger logs goroutine and stack usage every interval until
// stop is closed.
func StartGoroutineLogger(interval time.Duration, stop <-chan struct{}, extra AttrsFunc, logger *slog.Logger) {
	if interval <= 0 {
		interval = time.Second
	}
	if logger == nil {
		return
	}

	go func() {
		t := time.NewTicker(interval)
		defer t.Stop()
		samples := []metrics.Sample{{Name: "/sched/goroutines:goroutines"}}
		for {
			select {
			case <-stop:
				return
			case <-t.C:
			}
			metrics.Read(samples)
			var goroutines uint64
			if samples[0].Value.Kind() == metrics.KindUint64 {
				goroutines = samples[0].Value.Uint64()
			}
			var ms runtime.MemStats
			runtime.ReadMemStats(&ms)
			attrs := []slog.Attr{
				slog.Uint64("goroutines", goroutines),
				slog.String("stack_inuse", humanize.IBytes(ms.StackInuse)),
				slog.String("stack_sys", humanize.IBytes(ms.StackSys)),
				slog.String("heap_alloc", humanize.IBytes(ms.HeapAlloc)),
			}
			if extra != nil {
				attrs = append(attrs, extra()...)
			}
			logger.LogAttrs(context.Background(), slog.LevelInfo, "goroutine-stacks", attrs...)
		}
	}()
}
