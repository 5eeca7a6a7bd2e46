package pipeline

import (
	"log/slog"
	"sync"
	"time"

	"github.com/soocke/frameboost-go/domain/pacing"
)

// Clock returns monotonic nanoseconds.
type Clock func() int64

// RefreshSource delivers display refresh ticks.
type RefreshSource interface {
	Start(tick func(now int64))
	SetRate(hz float64)
	Stop()
}

// RefreshFactory builds the refresh source for one run.
type RefreshFactory func(hz float64, clock Clock) RefreshSource

// TickerSource emulates vsync with a time.Ticker at the refresh rate.
type TickerSource struct {
	clock  Clock
	logger *slog.Logger

	mu   sync.Mutex
	hz   float64
	rate chan float64
	stop chan struct{}
	done chan struct{}
}

// NewTickerSource returns a stopped source ticking at hz.
func NewTickerSource(hz float64, clock Clock, logger *slog.Logger) *TickerSource {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &TickerSource{hz: hz, clock: clock, logger: logger}
}

// TickerFactory adapts NewTickerSource to a RefreshFactory.
func TickerFactory(logger *slog.Logger) RefreshFactory {
	return func(hz float64, clock Clock) RefreshSource { return NewTickerSource(hz, clock, logger) }
}

func (t *TickerSource) Start(tick func(now int64)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.stop != nil {
		return
	}
	t.rate = make(chan float64, 1)
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.loop(tick, pacing.Interval(t.hz), t.rate, t.stop, t.done)
}

func (t *TickerSource) loop(tick func(int64), every time.Duration, rate <-chan float64, stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			t.logger.Error("refresh tick panic", "panic", r)
		}
	}()
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-stop:
			return
		case hz := <-rate:
			ticker.Reset(pacing.Interval(hz))
		case <-ticker.C:
			tick(t.clock())
		}
	}
}

// SetRate retunes the ticker; only the newest pending rate is kept.
func (t *TickerSource) SetRate(hz float64) {
	if !pacing.ValidRate(hz) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	t.hz = hz
	if t.rate == nil {
		return
	}
	select {
	case <-t.rate:
	default:
	}
	t.rate <- hz
}

// Stop cancels pending ticks and waits for an in-flight tick to return.
func (t *TickerSource) Stop() {
	t.mu.Lock()
	stop, done := t.stop, t.done
	t.stop, t.done, t.rate = nil, nil, nil
	t.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}
