package presenter

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/soocke/frameboost-go/pipeline"
)

// EnabledModel holds the user's on/off choice and any fatal stop reported
// by the pipeline.
type EnabledModel interface {
	Enabled() bool
	SetEnabled(bool)
	TakeFatal() (string, bool)
}

// PipelineControl narrows what the presenter needs from the pipeline.
type PipelineControl interface {
	Start() error
	Stop() error
}

// LifecycleContract is the capture service's start/stop surface.
type LifecycleContract interface {
	Start()
	Stop()
}

// PipelineView updates UI elements affected by switching the pipeline.
type PipelineView interface {
	PreviewReset()
	ConfigEditable(bool)
	SetStatus(text string)
}

// PipelinePresenter switches capture and the interpolation pipeline together.
// The pipeline starts first so no captured frame is dropped for lack of a
// graphics context; capture stops first on the way down.
type PipelinePresenter struct {
	model    EnabledModel
	pipeline PipelineControl
	capture  LifecycleContract
	view     PipelineView
	logger   *slog.Logger
}

func NewPipelinePresenter(model EnabledModel, p PipelineControl, capture LifecycleContract, view PipelineView, logger *slog.Logger) *PipelinePresenter {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &PipelinePresenter{model: model, pipeline: p, capture: capture, view: view, logger: logger}
}

func (c *PipelinePresenter) ready() bool {
	return c != nil && c.model != nil && c.pipeline != nil && c.capture != nil && c.view != nil
}

// Enable starts the pipeline then capture. Idempotent.
func (c *PipelinePresenter) Enable() {
	if !c.ready() || c.model.Enabled() {
		return
	}
	if err := c.pipeline.Start(); err != nil && !errors.Is(err, pipeline.ErrAlreadyRunning) {
		c.logger.Error("pipeline start failed", "error", err)
		c.view.SetStatus(fmt.Sprintf("Start failed: %v", err))
		return
	}
	c.capture.Start()
	c.model.SetEnabled(true)
	c.view.ConfigEditable(false)
	c.view.SetStatus("Running")
}

// Disable stops capture then the pipeline and resets the preview. Idempotent.
func (c *PipelinePresenter) Disable() {
	if !c.ready() || !c.model.Enabled() {
		return
	}
	c.capture.Stop()
	if err := c.pipeline.Stop(); err != nil && !errors.Is(err, pipeline.ErrNotRunning) {
		c.logger.Warn("pipeline stop failed", "error", err)
	}
	c.model.SetEnabled(false)
	c.view.PreviewReset()
	c.view.ConfigEditable(true)
	c.view.SetStatus("Stopped")
}

// Toggle flips enabled state delegating to Enable/Disable.
func (c *PipelinePresenter) Toggle() {
	if !c.ready() {
		return
	}
	if c.model.Enabled() {
		c.Disable()
		return
	}
	c.Enable()
}

// Tick folds a fatal stop reported by the pipeline back into the UI: capture
// is stopped and the controls are unlocked.
func (c *PipelinePresenter) Tick() {
	if !c.ready() {
		return
	}
	reason, ok := c.model.TakeFatal()
	if !ok {
		return
	}
	c.capture.Stop()
	c.model.SetEnabled(false)
	c.view.PreviewReset()
	c.view.ConfigEditable(true)
	c.view.SetStatus("Stopped: " + reason)
}
