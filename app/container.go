package app

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/frameboost-go/config"
	"github.com/soocke/frameboost-go/pipeline"
	"github.com/soocke/frameboost-go/ui/model"
	"github.com/soocke/frameboost-go/ui/presenter"
	"github.com/soocke/frameboost-go/ui/view"
)

const previewInterval = 100 * time.Millisecond

// AppContainer assembles models, services, presenters and the root view.
type AppContainer struct {
	Config   *config.Config
	CfgPath  string
	Logger   *slog.Logger
	Status   *model.StatusModel
	Runs     *model.RunModel
	Preview  *model.PreviewModel
	Pipeline *pipeline.Pipeline
	Capture  *CaptureSwitch
	RootView *view.RootView

	PipelinePresenter *presenter.PipelinePresenter
	StatsPresenter    *presenter.StatsPresenter
	PreviewPresenter  *presenter.PreviewPresenter
	Loop              *presenter.Loop
}

// BuildContainer constructs the models, pipeline and capture switch. Nothing
// starts; Tk widgets are created later by WireUI.
func BuildContainer(cfg *config.Config, cfgPath string, logger *slog.Logger) *AppContainer {
	c := &AppContainer{Config: cfg, CfgPath: cfgPath, Logger: logger}
	c.Status = &model.StatusModel{}
	c.Runs = model.NewRunModel()
	c.Preview = model.NewPreviewModel(previewInterval)
	c.RootView = view.NewRootView(cfg, cfgPath, logger)

	cb := pipeline.Callbacks{
		OnTelemetry: func(orig, interp float64) {
			c.Status.SetTelemetry(orig, interp)
		},
		OnFatalFailure: func(reason string) {
			logger.Error("pipeline fatal failure", "reason", reason)
			c.Status.SetFatal(reason)
		},
		OnRecovered: c.Status.RecordRecovery,
	}
	if cfg.Preview {
		cb.OnPresent = func(img image.Image) { c.Preview.Offer(img, time.Now()) }
	}
	c.Pipeline = pipeline.New(cfg, logger, cb, pipeline.Options{Refresh: pipeline.TickerFactory(logger)})
	c.Capture = NewCaptureSwitch(cfg, c.Pipeline, c.RootView.ActiveRegion, logger)
	return c
}

// WireUI builds the widgets and presenters. schedule re-arms the UI tick.
func (c *AppContainer) WireUI(onExit func(), schedule func()) {
	c.PipelinePresenter = presenter.NewPipelinePresenter(c.Status, c.Pipeline, c.Capture, c.RootView, c.Logger)
	c.RootView.Build(c.PipelinePresenter.Toggle, onExit)
	c.StatsPresenter = presenter.NewStatsPresenter(c.Runs, c.Pipeline, c.Status, c.RootView)
	c.PreviewPresenter = presenter.NewPreviewPresenter(c.Preview, c.RootView)
	c.Loop = presenter.NewLoop(c.PipelinePresenter, c.StatsPresenter, c.PreviewPresenter, schedule)
}

// Shutdown stops capture and the pipeline if they are running.
func (c *AppContainer) Shutdown() {
	c.Capture.Stop()
	_ = c.Pipeline.Stop()
}
