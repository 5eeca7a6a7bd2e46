package recovery

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Action is what a report caused.
type Action int

const (
	ActionNone      Action = iota // below threshold or another recovery in flight
	ActionRecovered               // threshold crossed and the context was rebuilt
	ActionShutdown                // recovery exhausted its attempts; pipeline must stop
)

func (a Action) String() string {
	switch a {
	case ActionNone:
		return "none"
	case ActionRecovered:
		return "recovered"
	case ActionShutdown:
		return "shutdown"
	default:
		return "unknown"
	}
}

// Defaults mirror the render loop's tolerance: three consecutive context
// failures, fifteen consecutive skipped frames, three rebuild attempts.
const (
	DefaultFailureThreshold = 3
	DefaultSkipThreshold    = 15
	DefaultMaxAttempts      = 3
	DefaultBackoff          = 200 * time.Millisecond
)

// Config tunes a Guard. Zero fields take the defaults.
type Config struct {
	FailureThreshold int
	SkipThreshold    int
	MaxAttempts      int
	Backoff          time.Duration
	// Sleep waits between attempts; nil uses time.Sleep.
	Sleep func(time.Duration)
}

func (c *Config) normalize() {
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = DefaultFailureThreshold
	}
	if c.SkipThreshold <= 0 {
		c.SkipThreshold = DefaultSkipThreshold
	}
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = DefaultMaxAttempts
	}
	if c.Backoff < 0 {
		c.Backoff = 0
	}
	if c.Sleep == nil {
		c.Sleep = time.Sleep
	}
}

// Guard counts consecutive render failures and skips. Crossing a threshold
// runs the recover function with bounded retries; exhausting the retries
// calls onFatal exactly once. Reports are expected from the render owner, so
// recoverFn runs there too.
type Guard struct {
	mu          sync.Mutex
	cfg         Config
	failures    int
	skips       int
	lastFailure time.Time

	recoverFn  func() error
	onFatal    func(reason string)
	recovering atomic.Bool
	fatal      atomic.Bool
	recoveries atomic.Uint64
	logger     *slog.Logger
}

// New builds a Guard. recoverFn rebuilds the graphics context; onFatal is
// told why the pipeline has to stop.
func New(cfg Config, recoverFn func() error, onFatal func(reason string), logger *slog.Logger) *Guard {
	cfg.normalize()
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Guard{cfg: cfg, recoverFn: recoverFn, onFatal: onFatal, logger: logger}
}

// ReportFailure records a context-level failure. The (threshold+1)-th
// consecutive failure triggers recovery and zeroes the counter.
func (g *Guard) ReportFailure() Action {
	g.mu.Lock()
	g.failures++
	n := g.failures
	since := time.Duration(0)
	now := time.Now()
	if !g.lastFailure.IsZero() {
		since = now.Sub(g.lastFailure)
	}
	g.lastFailure = now
	trigger := n > g.cfg.FailureThreshold
	if trigger {
		g.failures, g.skips = 0, 0
	}
	g.mu.Unlock()

	if !trigger {
		g.logger.Debug("render failure", "consecutive", n, "since_last", since)
		return ActionNone
	}
	return g.recover(fmt.Sprintf("%d consecutive render failures", n))
}

// ReportSkip records a frame that could not be rendered at all. Skips have
// their own, larger threshold.
func (g *Guard) ReportSkip() Action {
	g.mu.Lock()
	g.skips++
	n := g.skips
	trigger := n > g.cfg.SkipThreshold
	if trigger {
		g.failures, g.skips = 0, 0
	}
	g.mu.Unlock()

	if !trigger {
		return ActionNone
	}
	return g.recover(fmt.Sprintf("%d consecutive skipped frames", n))
}

// Reset clears both counters after a successful render.
func (g *Guard) Reset() {
	g.mu.Lock()
	g.failures, g.skips = 0, 0
	g.lastFailure = time.Time{}
	g.mu.Unlock()
}

// Failures returns the current consecutive failure count.
func (g *Guard) Failures() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.failures
}

// Skips returns the current consecutive skip count.
func (g *Guard) Skips() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.skips
}

// Recoveries counts successful recoveries.
func (g *Guard) Recoveries() uint64 { return g.recoveries.Load() }

// Fatal reports whether the guard has escalated to shutdown.
func (g *Guard) Fatal() bool { return g.fatal.Load() }

func (g *Guard) recover(reason string) Action {
	if g.fatal.Load() {
		return ActionShutdown
	}
	if !g.recovering.CompareAndSwap(false, true) {
		return ActionNone
	}
	defer g.recovering.Store(false)

	g.logger.Warn("starting context recovery", "reason", reason)
	var err error
	for attempt := 1; attempt <= g.cfg.MaxAttempts; attempt++ {
		if err = g.recoverFn(); err == nil {
			g.recoveries.Add(1)
			g.logger.Info("context recovery succeeded", "attempt", attempt)
			return ActionRecovered
		}
		g.logger.Warn("context recovery attempt failed", "attempt", attempt, "max", g.cfg.MaxAttempts, "error", err)
		if attempt < g.cfg.MaxAttempts {
			g.cfg.Sleep(g.cfg.Backoff)
		}
	}
	if g.fatal.CompareAndSwap(false, true) {
		msg := fmt.Sprintf("%s; recovery failed after %d attempts: %v", reason, g.cfg.MaxAttempts, err)
		g.logger.Error("context recovery exhausted", "reason", msg)
		if g.onFatal != nil {
			g.onFatal(msg)
		}
	}
	return ActionShutdown
}
