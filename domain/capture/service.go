package capture

import (
	"image"
	"log/slog"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	"github.com/disintegration/imaging"
)

const captureStatsLogInterval = 5 * time.Second

// Options controls capture pacing and output size. Zero Width/Height keeps the
// grabbed size.
type Options struct {
	FPS    float64
	Width  int
	Height int
}

// Service grabs frames at a fixed rate, scales them to the configured
// dimensions and hands the pixels to a Sink.
type Service struct {
	grabber Grabber
	sink    Sink
	opts    Options
	logger  *slog.Logger

	mu      sync.Mutex
	running atomic.Bool
	stop    chan struct{}
	done    chan struct{}

	captures     atomic.Uint64
	skipped      atomic.Uint64
	resized      atomic.Uint64
	captureNanos atomic.Uint64
	sequence     atomic.Uint64
	lastCapture  atomic.Int64 // unix nanos
}

// NewService constructs a capture service; call Start to begin grabbing.
func NewService(g Grabber, sink Sink, opts Options, logger *slog.Logger) *Service {
	if opts.FPS <= 0 {
		opts.FPS = 30
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Service{grabber: g, sink: sink, opts: opts, logger: logger}
}

func (s *Service) Running() bool { return s.running.Load() }

func (s *Service) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running.Load() {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	s.running.Store(true)
	go s.loop(s.stop, s.done)
}

// Stop ends the loop and waits for the in-flight grab to be delivered.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running.Load() {
		return
	}
	s.running.Store(false)
	close(s.stop)
	<-s.done
}

func (s *Service) Stats() CaptureStats {
	captures := s.captures.Load()
	var avg time.Duration
	if captures > 0 {
		avg = time.Duration(s.captureNanos.Load() / captures)
	}
	st := CaptureStats{
		Captures:   captures,
		Skipped:    s.skipped.Load(),
		Resized:    s.resized.Load(),
		AvgCapture: avg,
		Sequence:   s.sequence.Load(),
	}
	if ns := s.lastCapture.Load(); ns != 0 {
		st.LastCapture = time.Unix(0, ns)
		st.LatestFrameAge = time.Since(st.LastCapture)
	}
	return st
}

func (s *Service) loop(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	defer func() {
		if r := recover(); r != nil {
			s.running.Store(false)
			s.logger.Error("capture loop panic", "panic", r, "stack", string(debug.Stack()))
		}
	}()
	tick := time.NewTicker(time.Duration(float64(time.Second) / s.opts.FPS))
	defer tick.Stop()
	logTicker := time.NewTicker(captureStatsLogInterval)
	defer logTicker.Stop()
	for {
		select {
		case <-stop:
			return
		case <-logTicker.C:
			s.logger.Debug("capture.stats", "stats", s.Stats())
		case <-tick.C:
			s.captureOnce()
		}
	}
}

func (s *Service) captureOnce() {
	start := time.Now()
	img, err := s.grabber.Grab()
	if err != nil || img == nil {
		s.skipped.Add(1)
		if err != nil {
			s.logger.Error("capture grab", "error", err)
		}
		return
	}
	pix, w, h := s.normalize(img)
	s.captureNanos.Add(uint64(time.Since(start).Nanoseconds()))
	s.captures.Add(1)
	s.sequence.Add(1)
	s.lastCapture.Store(time.Now().UnixNano())
	if s.sink != nil {
		s.sink(pix, w, h)
	}
}

// normalize returns tightly packed pixels at the configured size. A frame that
// already matches is passed through without copying.
func (s *Service) normalize(img *image.RGBA) ([]byte, int, int) {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	tw, th := s.opts.Width, s.opts.Height
	if tw <= 0 || th <= 0 {
		tw, th = w, h
	}
	if tw == w && th == h && img.Stride == w*4 {
		off := img.PixOffset(b.Min.X, b.Min.Y)
		return img.Pix[off : off+w*h*4], w, h
	}
	s.resized.Add(1)
	out := imaging.Resize(img, tw, th, imaging.Linear)
	return out.Pix, tw, th
}
