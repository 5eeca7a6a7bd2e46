package telemetry

import (
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"
)

// MinWindow is the shortest measurement window.
const MinWindow = 500 * time.Millisecond

// Snapshot is the FPS measured over one window.
type Snapshot struct {
	OriginalFPS        float64
	InterpolatedFPS    float64
	MinInterpolatedFPS float64
	MaxInterpolatedFPS float64
	Dropped            uint64 // total since Start
	At                 int64  // window end, monotonic ns
}

// LogValue renders the snapshot for structured logs.
func (s Snapshot) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Float64("original_fps", round1(s.OriginalFPS)),
		slog.Float64("interpolated_fps", round1(s.InterpolatedFPS)),
		slog.Float64("min_fps", round1(s.MinInterpolatedFPS)),
		slog.Float64("max_fps", round1(s.MaxInterpolatedFPS)),
		slog.Uint64("dropped", s.Dropped),
	)
}

func round1(v float64) float64 { return math.Round(v*10) / 10 }

// Tracker counts captured and presented frames and turns the counts into
// FPS once per window. Record calls are lock free; Sample takes a mutex.
type Tracker struct {
	window       int64
	original     atomic.Uint64
	interpolated atomic.Uint64
	dropped      atomic.Uint64

	mu          sync.Mutex
	windowStart int64
	started     bool
	latest      Snapshot
	haveRange   bool
}

// NewTracker returns a tracker with the given window, raised to MinWindow.
func NewTracker(window time.Duration) *Tracker {
	return &Tracker{window: int64(max(window, MinWindow))}
}

// Start resets every counter and opens a window at now.
func (t *Tracker) Start(now int64) {
	t.original.Store(0)
	t.interpolated.Store(0)
	t.dropped.Store(0)
	t.mu.Lock()
	t.windowStart = now
	t.started = true
	t.latest = Snapshot{}
	t.haveRange = false
	t.mu.Unlock()
}

// RecordOriginal counts one captured frame.
func (t *Tracker) RecordOriginal(int64) { t.original.Add(1) }

// RecordInterpolated counts one presented frame.
func (t *Tracker) RecordInterpolated(int64) { t.interpolated.Add(1) }

// RecordDropped counts frames that were due but not presented.
func (t *Tracker) RecordDropped(n uint64) { t.dropped.Add(n) }

// Sample closes the window if it has run at least the configured length and
// returns the new snapshot. It reports false while the window is still open.
func (t *Tracker) Sample(now int64) (Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.started {
		t.windowStart, t.started = now, true
		return Snapshot{}, false
	}
	elapsed := now - t.windowStart
	if elapsed < t.window {
		return Snapshot{}, false
	}
	secs := float64(elapsed) / float64(time.Second)
	s := Snapshot{
		OriginalFPS:     float64(t.original.Swap(0)) / secs,
		InterpolatedFPS: float64(t.interpolated.Swap(0)) / secs,
		Dropped:         t.dropped.Load(),
		At:              now,
	}
	if !t.haveRange {
		s.MinInterpolatedFPS, s.MaxInterpolatedFPS = s.InterpolatedFPS, s.InterpolatedFPS
		t.haveRange = true
	} else {
		s.MinInterpolatedFPS = min(t.latest.MinInterpolatedFPS, s.InterpolatedFPS)
		s.MaxInterpolatedFPS = max(t.latest.MaxInterpolatedFPS, s.InterpolatedFPS)
	}
	t.latest = s
	t.windowStart = now
	return s, true
}

// Latest returns the most recent closed window.
func (t *Tracker) Latest() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.latest
}

// Window returns the measurement window.
func (t *Tracker) Window() time.Duration { return time.Duration(t.window) }
