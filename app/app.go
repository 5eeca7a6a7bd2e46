package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gogpu/gg"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"

	"github.com/soocke/frameboost-go/config"
	"github.com/soocke/frameboost-go/debug"
	"github.com/soocke/frameboost-go/ui/theme"
)

const (
	tick             = 100 * time.Millisecond
	statsLogInterval = 5 * time.Second
)

// hostApp hosts the pipeline either behind a Tk control window or headless.
type hostApp struct {
	c       *AppContainer
	title   string
	width   int
	height  int
	afterID string
	stop    chan struct{} // closes debug loggers
}

func NewApp(title string, width, height int, cfg *config.Config, cfgPath string, logger *slog.Logger) *hostApp {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &hostApp{
		c:      BuildContainer(cfg, cfgPath, logger),
		title:  title,
		width:  width,
		height: height,
		stop:   make(chan struct{}),
	}
}

// Container exposes the wired components.
func (a *hostApp) Container() *AppContainer { return a.c }

func (a *hostApp) startDebug() {
	if !a.c.Config.Debug {
		return
	}
	gg.SetLogger(a.c.Logger.With("component", "gg"))
	p := a.c.Pipeline
	debug.StartGoroutineLogger(statsLogInterval, a.stop, func() []slog.Attr {
		st := p.Stats()
		return []slog.Attr{
			slog.Bool("running", st.Running),
			slog.Int("queue", st.Queue),
			slog.Int("textures", st.Textures),
			slog.Int64("pool_outstanding", st.Pool.Outstanding),
			slog.Uint64("upload_busy", st.Upload.Busy),
		}
	}, a.c.Logger)
	debug.StartMemLogger(statsLogInterval, a.stop, a.c.Logger)
}

// Start opens the Tk window and blocks until it is closed.
func (a *hostApp) Start() {
	a.startDebug()
	defer close(a.stop)
	defer a.c.Shutdown()

	theme.Apply(false)
	App.WmTitle(a.title)
	WmProtocol(App, "WM_DELETE_WINDOW", a.exitHandler)
	WmGeometry(App, fmt.Sprintf("%dx%d+100+100", a.width, a.height))

	a.c.WireUI(a.exitHandler, a.scheduleUpdate)
	a.scheduleUpdate()
	App.Wait()
}

// RunHeadless starts capture and the pipeline immediately and runs until ctx
// is cancelled or the pipeline stops on an unrecoverable failure.
func (a *hostApp) RunHeadless(ctx context.Context) error {
	a.startDebug()
	defer close(a.stop)
	c := a.c
	if err := c.Pipeline.Start(); err != nil {
		return err
	}
	c.Capture.Start()
	defer c.Shutdown()

	t := time.NewTicker(statsLogInterval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			c.Logger.Info("shutting down", "capture", c.Capture.Stats())
			return nil
		case <-t.C:
			if reason, ok := c.Status.TakeFatal(); ok {
				return fmt.Errorf("pipeline stopped: %s", reason)
			}
			orig, interp := c.Status.Telemetry()
			c.Logger.Info("fps",
				"original", orig,
				"interpolated", interp,
				"recoveries", c.Status.Recoveries(),
				"capture", c.Capture.Stats(),
			)
		}
	}
}

func (a *hostApp) exitHandler() {
	// Cancel scheduled after event if any.
	if a.afterID != "" {
		TclAfterCancel(a.afterID)
	}
	Destroy(App)
}

func (a *hostApp) scheduleUpdate() {
	// Schedule the next update using TclAfter to stay on Tk's event loop thread.
	a.afterID = TclAfter(tick, func() { a.c.Loop.Tick() })
}
