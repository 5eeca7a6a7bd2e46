package pipeline

import (
	"errors"
	"fmt"
	"image"
	"log/slog"
	"math"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/soocke/frameboost-go/config"
	"github.com/soocke/frameboost-go/domain/frame"
	"github.com/soocke/frameboost-go/domain/pacing"
	"github.com/soocke/frameboost-go/domain/recovery"
	"github.com/soocke/frameboost-go/domain/render"
	"github.com/soocke/frameboost-go/domain/telemetry"
)

var (
	ErrAlreadyRunning = errors.New("pipeline: already running")
	ErrNotRunning     = errors.New("pipeline: not running")
)

// Callbacks are the outputs consumed by the host. All are optional and may be
// called from pipeline goroutines.
type Callbacks struct {
	OnTelemetry    func(originalFPS, interpolatedFPS float64)
	OnFatalFailure func(reason string)
	// OnPresent receives every presented frame; the image is only valid
	// during the call.
	OnPresent func(img image.Image)
	// OnRecovered fires on the render owner after the graphics context was
	// rebuilt, so capture targets bound to the old surface can be recreated.
	// It must not call back into OnRefreshTick.
	OnRecovered func()
}

// Options are the pipeline's injectable collaborators.
type Options struct {
	// DeviceFactory returns a fresh device per run; nil uses render.NewGGDevice.
	DeviceFactory func() render.Device
	// Clock defaults to nanoseconds since New.
	Clock Clock
	// Pool defaults to a BufferPool with the configured ceiling. It outlives
	// runs so blocks are reused across restarts.
	Pool *frame.BufferPool
	// Refresh builds the tick driver; nil means ticks come only from
	// OnRefreshTick.
	Refresh RefreshFactory
	// Sleep is the recovery backoff sleep; nil uses time.Sleep.
	Sleep func(time.Duration)
}

// Stats is a point-in-time view across the pipeline's components.
type Stats struct {
	RunID     string
	Running   bool
	Context   render.State
	Queue     int
	Evicted   uint64
	Textures  int
	Pool      frame.PoolStats
	Upload    render.UploadStats
	Pacing    pacing.PacingState
	Telemetry telemetry.Snapshot
	Target    int
}

// session holds everything created for one Start..Stop run.
type session struct {
	id       string
	logger   *slog.Logger
	owner    *render.Owner
	gctx     *render.GraphicsContext
	textures *render.TexturePool
	uploader *render.Uploader
	guard    *recovery.Guard
	interp   *pacing.Interpolator
	tracker  *telemetry.Tracker
	queue    *frame.Queue
	refresh  RefreshSource

	dims   atomic.Uint64 // width<<32 | height of the render target
	seq    atomic.Uint64
	failed atomic.Bool
	stop   chan struct{}
	wg     sync.WaitGroup
}

// Pipeline accepts captured frames, paces them against refresh ticks and
// renders interpolated frames through one graphics context. It can be
// started and stopped repeatedly.
type Pipeline struct {
	cfg    *config.Config
	logger *slog.Logger
	cb     Callbacks
	opts   Options
	pool   *frame.BufferPool

	lifecycle sync.Mutex   // serializes Start, Stop and failure teardown
	mu        sync.RWMutex // guards sess
	sess      *session
	refreshHz atomic.Uint64 // math.Float64bits
}

// New constructs a stopped pipeline.
func New(cfg *config.Config, logger *slog.Logger, cb Callbacks, opts Options) *Pipeline {
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.DeviceFactory == nil {
		opts.DeviceFactory = func() render.Device { return render.NewGGDevice() }
	}
	if opts.Clock == nil {
		start := time.Now()
		opts.Clock = func() int64 { return int64(time.Since(start)) }
	}
	if opts.Pool == nil {
		opts.Pool = frame.NewBufferPool(cfg.BufferPoolCeiling, logger)
	}
	p := &Pipeline{cfg: cfg, logger: logger, cb: cb, opts: opts, pool: opts.Pool}
	p.storeRefresh(cfg.RefreshRate)
	return p
}

// Pool exposes the buffer pool for instrumentation.
func (p *Pipeline) Pool() *frame.BufferPool { return p.pool }

// Now returns the pipeline clock.
func (p *Pipeline) Now() int64 { return p.opts.Clock() }

// Running reports whether a run is active.
func (p *Pipeline) Running() bool { return p.current() != nil }

func (p *Pipeline) current() *session {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.sess
}

// Start creates the graphics context and the render, upload and telemetry
// workers. A context that cannot be initialized is unrecoverable: the error
// is returned and OnFatalFailure is called.
func (p *Pipeline) Start() error {
	p.lifecycle.Lock()
	if p.current() != nil {
		p.lifecycle.Unlock()
		return ErrAlreadyRunning
	}
	s, err := p.newSession()
	if err != nil {
		p.lifecycle.Unlock()
		p.logger.Error("pipeline start failed", "error", err)
		if p.cb.OnFatalFailure != nil {
			p.cb.OnFatalFailure(err.Error())
		}
		return err
	}
	defer p.lifecycle.Unlock()
	p.mu.Lock()
	p.sess = s
	p.mu.Unlock()

	s.wg.Add(1)
	go p.telemetryLoop(s)
	if s.refresh != nil {
		s.refresh.Start(func(now int64) { p.tick(s, now) })
	}
	s.logger.Info("pipeline started",
		"width", p.cfg.FrameWidth,
		"height", p.cfg.FrameHeight,
		"queue_capacity", s.queue.Capacity(),
		"target_fps", s.interp.Target(),
	)
	return nil
}

func (p *Pipeline) newSession() (*session, error) {
	id := uuid.NewString()
	logger := p.logger.With("run_id", id)
	w, h := p.cfg.FrameWidth, p.cfg.FrameHeight

	dev := p.opts.DeviceFactory()
	if n, ok := dev.(render.PresentNotifier); ok && p.cb.OnPresent != nil {
		n.SetPresentSink(p.cb.OnPresent)
	}
	owner := render.NewOwner(32, logger)
	gctx := render.NewGraphicsContext(dev, w, h, logger)
	if err := owner.Do(gctx.Init); err != nil {
		owner.Close()
		return nil, fmt.Errorf("pipeline: init graphics: %w", err)
	}
	textures, err := render.NewTexturePool(p.cfg.TexturePoolSize, gctx)
	if err != nil {
		_ = owner.Do(func() error { gctx.Terminate(); return nil })
		owner.Close()
		return nil, err
	}

	s := &session{
		id:       id,
		logger:   logger,
		owner:    owner,
		gctx:     gctx,
		textures: textures,
		queue:    frame.NewQueue(p.cfg.QueueCapacity, p.pool),
		tracker:  telemetry.NewTracker(p.cfg.TelemetryWindow()),
		stop:     make(chan struct{}),
	}
	s.dims.Store(packDims(w, h))
	gctx.OnRecreated(func() {
		textures.Purge()
		if p.cb.OnRecovered != nil {
			p.cb.OnRecovered()
		}
	})
	s.uploader = render.NewUploader(gctx, owner, textures, p.pool, p.cfg.UploadQueueDepth, logger)
	s.guard = recovery.New(recovery.Config{
		FailureThreshold: p.cfg.FailureThreshold,
		SkipThreshold:    p.cfg.SkipThreshold,
		MaxAttempts:      p.cfg.RecoveryAttempts,
		Backoff:          p.cfg.RecoveryBackoff(),
		Sleep:            p.opts.Sleep,
	}, gctx.Recover, func(reason string) { go p.fail(s, reason) }, logger)

	hz := p.loadRefresh()
	s.interp = pacing.NewInterpolator(
		pacing.Options{RefreshHz: hz, TargetFPS: p.cfg.TargetFPS},
		render.NewCompositor(gctx, s.uploader),
		s.queue, s.guard, s.tracker, p.pool, logger,
	)
	now := p.opts.Clock()
	s.interp.Start(now)
	s.tracker.Start(now)
	if p.opts.Refresh != nil {
		s.refresh = p.opts.Refresh(hz, p.opts.Clock)
	}
	return s, nil
}

// Stop tears the run down in order: stop the scheduler, cancel ticks, drain
// uploads, delete GPU objects on the owner, then return queued buffers.
func (p *Pipeline) Stop() error {
	p.lifecycle.Lock()
	defer p.lifecycle.Unlock()
	s := p.detach(nil)
	if s == nil {
		return ErrNotRunning
	}
	p.teardown(s)
	return nil
}

// detach clears the active session if it is want (or any when want is nil).
// Frames arriving after detach are dropped.
func (p *Pipeline) detach(want *session) *session {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.sess
	if s == nil || (want != nil && s != want) {
		return nil
	}
	p.sess = nil
	return s
}

func (p *Pipeline) teardown(s *session) {
	s.interp.Stop()
	if s.refresh != nil {
		s.refresh.Stop()
	}
	close(s.stop)
	s.wg.Wait()
	s.uploader.Close()
	_ = s.owner.Do(func() error {
		s.textures.Purge()
		s.gctx.Terminate()
		return nil
	})
	s.owner.Close()
	drained := s.queue.Drain()
	s.logger.Info("pipeline stopped",
		"drained", drained,
		"pacing", fmt.Sprintf("%+v", s.interp.State()),
		"pool", p.pool,
	)
}

// fail escalates an exhausted recovery to a full stop, once per run.
func (p *Pipeline) fail(s *session, reason string) {
	if !s.failed.CompareAndSwap(false, true) {
		return
	}
	p.lifecycle.Lock()
	detached := p.detach(s)
	if detached != nil {
		p.teardown(detached)
	}
	p.lifecycle.Unlock()
	if detached == nil {
		return
	}
	s.logger.Error("pipeline stopped after unrecoverable render failure", "reason", reason)
	if p.cb.OnFatalFailure != nil {
		p.cb.OnFatalFailure(reason)
	}
}

// OnFrameAvailable copies pix into a pooled buffer and enqueues it. It never
// blocks beyond the copy; it reports false when the frame was dropped.
func (p *Pipeline) OnFrameAvailable(pix []byte, width, height int) bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	s := p.sess
	if s == nil {
		return false
	}
	size := width * height * 4
	if width <= 0 || height <= 0 || len(pix) < size {
		s.tracker.RecordDropped(1)
		return false
	}
	buf, ok := p.pool.Acquire(size)
	if !ok {
		s.tracker.RecordDropped(1)
		return false
	}
	copy(buf.Bytes(), pix[:size])
	now := p.opts.Clock()
	sample := frame.Sample{Buf: buf, Timestamp: now, Seq: s.seq.Add(1), Width: width, Height: height}

	if d := packDims(width, height); s.dims.Swap(d) != d {
		if !s.owner.Submit(func() error { return s.gctx.Resize(width, height) }) {
			s.logger.Warn("resize dropped, owner busy", "width", width, "height", height)
		}
	}
	// Upload retains its own reference before the queue can evict the sample.
	s.uploader.UploadAsync(sample)
	s.queue.Push(sample)
	s.tracker.RecordOriginal(now)
	s.interp.RecordOriginal()
	return true
}

// OnRefreshTick runs one pacing cycle on the render owner.
func (p *Pipeline) OnRefreshTick(now int64) {
	if s := p.current(); s != nil {
		p.tick(s, now)
	}
}

func (p *Pipeline) tick(s *session, now int64) {
	err := s.owner.Do(func() error {
		s.gctx.Probe()
		s.interp.OnRefreshTick(now)
		return nil
	})
	if err != nil && !errors.Is(err, render.ErrOwnerClosed) {
		s.logger.Warn("refresh tick failed", "error", err)
	}
}

// OnRefreshRateChanged retunes pacing and the tick source. The rate is kept
// for later runs.
func (p *Pipeline) OnRefreshRateChanged(hz float64) {
	if !pacing.ValidRate(hz) {
		return
	}
	p.storeRefresh(hz)
	if s := p.current(); s != nil {
		s.interp.OnRefreshRateChanged(hz)
		if s.refresh != nil {
			s.refresh.SetRate(hz)
		}
	}
}

func (p *Pipeline) telemetryLoop(s *session) {
	defer s.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			s.logger.Error("telemetry loop panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	t := time.NewTicker(max(s.tracker.Window()/5, 10*time.Millisecond))
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			now := p.opts.Clock()
			snap, ok := s.tracker.Sample(now)
			if !ok {
				continue
			}
			s.interp.RollWindow(now)
			s.logger.Debug("telemetry", "fps", snap, "context", s.gctx)
			if p.cb.OnTelemetry != nil {
				p.cb.OnTelemetry(snap.OriginalFPS, snap.InterpolatedFPS)
			}
		}
	}
}

// Stats reports the active run, or only pool counters when stopped.
func (p *Pipeline) Stats() Stats {
	st := Stats{Pool: p.pool.Stats()}
	s := p.current()
	if s == nil {
		return st
	}
	st.RunID = s.id
	st.Running = true
	st.Context = s.gctx.State()
	st.Queue = s.queue.Size()
	st.Evicted = s.queue.Evicted()
	st.Textures = s.gctx.TextureCount()
	st.Upload = s.uploader.Stats()
	st.Pacing = s.interp.State()
	st.Telemetry = s.tracker.Latest()
	st.Target = s.interp.Target()
	return st
}

func packDims(w, h int) uint64 { return uint64(uint32(w))<<32 | uint64(uint32(h)) }

func (p *Pipeline) storeRefresh(hz float64) {
	if !pacing.ValidRate(hz) {
		hz = pacing.DefaultRefreshHz
	}
	p.refreshHz.Store(math.Float64bits(hz))
}

func (p *Pipeline) loadRefresh() float64 { return math.Float64frombits(p.refreshHz.Load()) }
