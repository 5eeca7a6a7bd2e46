package view

import (
	"image"
	"log/slog"
	"time"

	"github.com/soocke/frameboost-go/config"
	"github.com/soocke/frameboost-go/ui/theme"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// RootView composes the top-level application layout and wires UI callbacks.
// It owns high-level subviews but exposes minimal exported fields for presenters.
type RootView struct {
	cfg     *config.Config
	cfgPath string
	logger  *slog.Logger

	// Subviews
	Stats       StatsPanel
	ConfigPanel ConfigPanel
	Preview     Preview
	Selection   SelectionOverlay

	// Widgets
	StatusLabel *TLabelWidget
}

// UI is the view surface the presenters drive.
type UI interface {
	SetStatus(text string)
	ConfigEditable(enabled bool)
	PreviewReset()
	UpdatePreview(img image.Image)
	SetRun(run, total time.Duration)
	SetRates(original, interpolated float64)
	SetRecoveries(n int)
}

var _ UI = (*RootView)(nil)

func NewRootView(cfg *config.Config, cfgPath string, logger *slog.Logger) *RootView {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &RootView{cfg: cfg, cfgPath: cfgPath, logger: logger}
}

// Build constructs the layout. Handlers are invoked on user actions.
func (rv *RootView) Build(onToggle func(), onExit func()) {
	if rv == nil {
		return
	}
	// Row 0: stats strip
	statsFrame := Frame()
	Grid(statsFrame, Row(0), Column(0), Columnspan(4), Sticky("we"), Padx("0.3m"), Pady("0.3m"))
	rv.Stats = NewStatsPanel(statsFrame, 0)

	// Row 1: status label + buttons
	rv.StatusLabel = TLabel(Txt("Stopped"), Style(theme.StyleStatusLabel))
	Grid(rv.StatusLabel, Row(1), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))

	rv.Selection = NewSelectionOverlay(rv.cfg, rv.cfgPath, rv.logger)
	btnFrame := Frame()
	Grid(btnFrame, Row(1), Column(4), Sticky("ne"), Padx("0.3m"), Pady("0.3m"))
	toggleBtn := TButton(Txt("Start / Stop"), Command(onToggle), Style(theme.StylePrimaryButton))
	Grid(toggleBtn, In(btnFrame), Row(0), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	regionBtn := Button(Txt("Capture Region"), Command(rv.Selection.OpenOrFocus))
	Grid(regionBtn, In(btnFrame), Row(1), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	exitBtn := TButton(Txt("Exit"), Command(onExit), Style(theme.StyleDangerButton))
	Grid(exitBtn, In(btnFrame), Row(2), Column(0), Sticky("we"), Padx("0.2m"), Pady("0.2m"))

	// Config panel rows
	rv.ConfigPanel = NewConfigPanel(rv.cfg, rv.cfgPath, rv.logger)
	endRow := rv.ConfigPanel.Build(2)

	rv.Preview = NewPreview(endRow)
}

// ActiveRegion returns the confirmed capture rectangle, nil for full screen.
func (rv *RootView) ActiveRegion() *image.Rectangle {
	if rv == nil || rv.Selection == nil {
		return nil
	}
	return rv.Selection.ActiveRect()
}

func (rv *RootView) SetStatus(text string) {
	if rv != nil && rv.StatusLabel != nil {
		rv.StatusLabel.Configure(Txt(text))
	}
}

// ConfigEditable toggles config panel editability.
func (rv *RootView) ConfigEditable(enabled bool) {
	if rv != nil && rv.ConfigPanel != nil {
		rv.ConfigPanel.SetEditable(enabled)
	}
}

func (rv *RootView) PreviewReset() {
	if rv != nil && rv.Preview != nil {
		rv.Preview.Reset()
	}
}

func (rv *RootView) UpdatePreview(img image.Image) {
	if rv != nil && rv.Preview != nil {
		rv.Preview.UpdatePreview(img)
	}
}

func (rv *RootView) SetRun(run, total time.Duration) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetRun(run, total)
	}
}

func (rv *RootView) SetRates(original, interpolated float64) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetRates(original, interpolated)
	}
}

func (rv *RootView) SetRecoveries(n int) {
	if rv != nil && rv.Stats != nil {
		rv.Stats.SetRecoveries(n)
	}
}
