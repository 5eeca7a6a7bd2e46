package pacing

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soocke/frameboost-go/domain/frame"
	"github.com/soocke/frameboost-go/domain/recovery"
)

// Renderer draws and presents blended frames. Implementations run on the
// render owner.
type Renderer interface {
	MakeCurrent() bool
	Blend(prev, latest frame.Sample, factor float64) error
	Present() bool
}

// PairSource hands out the two newest samples with references held.
type PairSource interface {
	AcquirePair() (prev, latest frame.Sample, ok bool)
}

// FailureReporter is the recovery guard as seen from the render loop.
type FailureReporter interface {
	ReportFailure() recovery.Action
	ReportSkip() recovery.Action
	Reset()
}

// Recorder receives presented and dropped frame counts.
type Recorder interface {
	RecordInterpolated(now int64)
	RecordDropped(n uint64)
}

// PacingState is the scheduler's bookkeeping, reset on every Start.
// OriginalFrames and FpsWindowStart are written by the capture and telemetry
// goroutines and never wait on a tick.
type PacingState struct {
	LastTick           int64
	FpsWindowStart     int64
	OriginalFrames     uint64
	InterpolatedFrames uint64
	DroppedFrames      uint64
	Backfilled         uint64
	LastFactor         float64
}

// Options configures an Interpolator.
type Options struct {
	RefreshHz float64 // display refresh; <= 0 uses DefaultRefreshHz
	TargetFPS int     // > 0 pins the output rate and ignores the policy table
}

// Interpolator is driven once per display refresh. Each tick blends the two
// newest frames by a factor derived from capture timing, presents the result
// and backfills frames when ticks were missed.
type Interpolator struct {
	mu       sync.Mutex // held for a whole tick
	running  atomic.Bool
	original atomic.Uint64
	window   atomic.Int64
	renderer Renderer
	source   PairSource
	guard    FailureReporter
	rec      Recorder
	releaser frame.Releaser
	logger   *slog.Logger

	refreshHz       float64
	refreshInterval time.Duration
	target          int
	targetInterval  time.Duration
	pinned          bool

	state PacingState
}

// NewInterpolator wires the scheduler to its collaborators. rec may be nil.
func NewInterpolator(opts Options, renderer Renderer, source PairSource, guard FailureReporter, rec Recorder, releaser frame.Releaser, logger *slog.Logger) *Interpolator {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	ip := &Interpolator{
		renderer: renderer,
		source:   source,
		guard:    guard,
		rec:      rec,
		releaser: releaser,
		logger:   logger,
		pinned:   opts.TargetFPS > 0,
		target:   opts.TargetFPS,
	}
	hz := opts.RefreshHz
	if !ValidRate(hz) {
		hz = DefaultRefreshHz
	}
	ip.applyRefreshLocked(hz)
	return ip
}

// Start resets PacingState and begins accepting ticks.
func (ip *Interpolator) Start(now int64) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.state = PacingState{LastTick: now}
	ip.original.Store(0)
	ip.window.Store(now)
	ip.running.Store(true)
	ip.logger.Info("interpolator started", "refresh_hz", ip.refreshHz, "target_fps", ip.target)
}

// Stop rejects further ticks and waits for an in-flight tick to finish.
func (ip *Interpolator) Stop() {
	ip.running.Store(false)
	ip.mu.Lock()
	ip.mu.Unlock()
}

// Running reports whether ticks are processed.
func (ip *Interpolator) Running() bool { return ip.running.Load() }

// OnRefreshRateChanged recomputes the refresh period and, unless pinned, the
// target rate.
func (ip *Interpolator) OnRefreshRateChanged(hz float64) {
	if !ValidRate(hz) {
		return
	}
	ip.mu.Lock()
	defer ip.mu.Unlock()
	ip.applyRefreshLocked(hz)
	ip.logger.Info("refresh rate changed", "refresh_hz", hz, "target_fps", ip.target, "target_interval", ip.targetInterval)
}

func (ip *Interpolator) applyRefreshLocked(hz float64) {
	ip.refreshHz = hz
	ip.refreshInterval = Interval(hz)
	if !ip.pinned {
		ip.target = TargetForRefresh(hz)
	}
	ip.targetInterval = Interval(float64(ip.target))
}

// Target returns the output frame rate.
func (ip *Interpolator) Target() int {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.target
}

// TargetInterval returns 1/target.
func (ip *Interpolator) TargetInterval() time.Duration {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.targetInterval
}

// RefreshInterval returns 1/refresh rate.
func (ip *Interpolator) RefreshInterval() time.Duration {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	return ip.refreshInterval
}

// State returns a copy of the pacing counters.
func (ip *Interpolator) State() PacingState {
	ip.mu.Lock()
	st := ip.state
	ip.mu.Unlock()
	st.OriginalFrames = ip.original.Load()
	st.FpsWindowStart = ip.window.Load()
	return st
}

// RecordOriginal counts a captured frame. It is lock-free so producers never
// wait behind a tick.
func (ip *Interpolator) RecordOriginal() { ip.original.Add(1) }

// RollWindow marks the start of a new FPS window at now.
func (ip *Interpolator) RollWindow(now int64) { ip.window.Store(now) }

// OnRefreshTick runs one pacing cycle at monotonic time now. Fewer than two
// queued samples means there is nothing to blend and the tick is a no-op.
func (ip *Interpolator) OnRefreshTick(now int64) {
	ip.mu.Lock()
	defer ip.mu.Unlock()
	if !ip.running.Load() {
		return
	}
	missed := MissedTicks(now, ip.state.LastTick, ip.refreshInterval)
	ip.state.LastTick = now

	prev, latest, ok := ip.source.AcquirePair()
	if !ok {
		return
	}
	defer func() {
		ip.releaser.Release(prev.Buf)
		ip.releaser.Release(latest.Buf)
	}()

	backfill := BackfillCount(missed, ip.refreshHz)
	if skipped := missed - 1 - backfill; skipped > 0 {
		ip.drop(uint64(skipped))
	}
	for i := 1; i <= backfill && ip.running.Load(); i++ {
		if !ip.render(now, prev, latest, Clamp01(float64(i)/float64(missed))) {
			// the rest of the backfill plus this tick's frame
			ip.drop(uint64(backfill - i + 2))
			return
		}
		ip.state.Backfilled++
	}
	if !ip.running.Load() {
		return
	}
	if !ip.render(now, prev, latest, Factor(now, prev.Timestamp, latest.Timestamp, ip.targetInterval)) {
		ip.drop(1)
	}
}

// render blends and presents one frame. Failures go to the guard; a shutdown
// verdict stops the scheduler.
func (ip *Interpolator) render(now int64, prev, latest frame.Sample, factor float64) bool {
	if !ip.renderer.MakeCurrent() {
		ip.handle(ip.guard.ReportSkip())
		return false
	}
	if err := ip.blend(prev, latest, factor); err != nil {
		ip.logger.Debug("blend failed", "prev", prev.Seq, "latest", latest.Seq, "error", err)
		ip.handle(ip.guard.ReportFailure())
		return false
	}
	if !ip.renderer.Present() {
		ip.handle(ip.guard.ReportFailure())
		return false
	}
	ip.guard.Reset()
	ip.state.InterpolatedFrames++
	ip.state.LastFactor = factor
	if ip.rec != nil {
		ip.rec.RecordInterpolated(now)
	}
	return true
}

func (ip *Interpolator) blend(prev, latest frame.Sample, factor float64) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pacing: blend panic: %v", r)
		}
	}()
	return ip.renderer.Blend(prev, latest, factor)
}

func (ip *Interpolator) handle(a recovery.Action) {
	if a == recovery.ActionShutdown {
		ip.running.Store(false)
		ip.logger.Error("render recovery exhausted, interpolator stopped")
	}
}

func (ip *Interpolator) drop(n uint64) {
	ip.state.DroppedFrames += n
	if ip.rec != nil {
		ip.rec.RecordDropped(n)
	}
}
