package app

import (
	"image"
	"log/slog"
	"sync"

	"github.com/soocke/frameboost-go/config"
	"github.com/soocke/frameboost-go/domain/capture"
)

// FrameConsumer accepts captured RGBA pixels; the pipeline satisfies it.
type FrameConsumer interface {
	OnFrameAvailable(pix []byte, width, height int) bool
}

// CaptureSwitch builds a fresh capture service from the current config on
// every Start, so edits made in the config panel apply to the next run.
type CaptureSwitch struct {
	cfg      *config.Config
	consumer FrameConsumer
	region   func() *image.Rectangle
	logger   *slog.Logger

	mu  sync.Mutex
	svc *capture.Service
}

var _ capture.ServiceContract = (*CaptureSwitch)(nil)

func NewCaptureSwitch(cfg *config.Config, consumer FrameConsumer, region func() *image.Rectangle, logger *slog.Logger) *CaptureSwitch {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &CaptureSwitch{cfg: cfg, consumer: consumer, region: region, logger: logger}
}

func (c *CaptureSwitch) grabber() capture.Grabber {
	if c.cfg.CaptureSource == config.SourceSynthetic {
		return capture.NewSyntheticGrabber(c.cfg.FrameWidth, c.cfg.FrameHeight, 0)
	}
	region := c.region
	if region == nil {
		region = c.cfg.Selection
	}
	return &capture.ScreenGrabber{Selection: region}
}

func (c *CaptureSwitch) Start() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc != nil && c.svc.Running() {
		return
	}
	sink := func(pix []byte, w, h int) { c.consumer.OnFrameAvailable(pix, w, h) }
	c.svc = capture.NewService(c.grabber(), sink, capture.Options{
		FPS:    c.cfg.CaptureFPS,
		Width:  c.cfg.FrameWidth,
		Height: c.cfg.FrameHeight,
	}, c.logger.With("source", c.cfg.CaptureSource))
	c.svc.Start()
}

func (c *CaptureSwitch) Stop() {
	c.mu.Lock()
	svc := c.svc
	c.mu.Unlock()
	if svc != nil {
		svc.Stop()
	}
}

func (c *CaptureSwitch) Running() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.svc != nil && c.svc.Running()
}

func (c *CaptureSwitch) Stats() capture.CaptureStats {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.svc == nil {
		return capture.CaptureStats{}
	}
	return c.svc.Stats()
}
