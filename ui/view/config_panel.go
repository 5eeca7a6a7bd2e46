package view

import (
	"log/slog"
	"strconv"
	"strings"

	"github.com/soocke/frameboost-go/config"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders.
	. "modernc.org/tk9.0"
)

// ConfigPanel is the settings form. Edits are written into the shared
// *config.Config and saved on Apply; the pipeline reads them on its next
// start, so the panel is locked while a run is active.
type ConfigPanel interface {
	Build(startRow int) (endRow int)
	SetEditable(enabled bool)
	ApplyChanges()
}

// field binds one text entry to a config value. parse returns false for
// input that should leave the value untouched.
type field struct {
	label  string
	format func(c *config.Config) string
	parse  func(c *config.Config, s string) bool
	entry  *TextWidget
}

type configPanel struct {
	cfg      *config.Config
	cfgPath  string
	logger   *slog.Logger
	fields   []*field
	applyBtn *ButtonWidget
}

func NewConfigPanel(cfg *config.Config, cfgPath string, logger *slog.Logger) ConfigPanel {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &configPanel{cfg: cfg, cfgPath: cfgPath, logger: logger, fields: configFields()}
}

func intField(label string, ptr func(*config.Config) *int) *field {
	return &field{
		label:  label,
		format: func(c *config.Config) string { return strconv.Itoa(*ptr(c)) },
		parse: func(c *config.Config, s string) bool {
			n, err := strconv.Atoi(s)
			if err == nil {
				*ptr(c) = n
			}
			return err == nil
		},
	}
}

func floatField(label string, ptr func(*config.Config) *float64) *field {
	return &field{
		label:  label,
		format: func(c *config.Config) string { return strconv.FormatFloat(*ptr(c), 'f', 1, 64) },
		parse: func(c *config.Config, s string) bool {
			f, err := strconv.ParseFloat(s, 64)
			if err == nil {
				*ptr(c) = f
			}
			return err == nil
		},
	}
}

func configFields() []*field {
	return []*field{
		intField("Target FPS (0 = auto)", func(c *config.Config) *int { return &c.TargetFPS }),
		floatField("Refresh Rate Hz", func(c *config.Config) *float64 { return &c.RefreshRate }),
		intField("Frame Width", func(c *config.Config) *int { return &c.FrameWidth }),
		intField("Frame Height", func(c *config.Config) *int { return &c.FrameHeight }),
		intField("Queue Capacity (0 = auto)", func(c *config.Config) *int { return &c.QueueCapacity }),
		{
			label:  "Capture Source (screen/synthetic)",
			format: func(c *config.Config) string { return c.CaptureSource },
			parse: func(c *config.Config, s string) bool {
				if s == "" {
					return false
				}
				c.CaptureSource = strings.ToLower(s)
				return true
			},
		},
		floatField("Capture FPS", func(c *config.Config) *float64 { return &c.CaptureFPS }),
		{
			label:  "Debug Logging (true/false)",
			format: func(c *config.Config) string { return strconv.FormatBool(c.Debug) },
			parse: func(c *config.Config, s string) bool {
				b, err := strconv.ParseBool(s)
				if err == nil {
					c.Debug = b
				}
				return err == nil
			},
		},
	}
}

func (v *configPanel) Build(startRow int) int {
	row := startRow
	for _, f := range v.fields {
		Grid(Label(Txt(f.label), Anchor("w")), Row(row), Column(0), Sticky("w"), Padx("0.4m"), Pady("0.15m"))
		f.entry = Text(Height(1), Width(16))
		Grid(f.entry, Row(row), Column(1), Sticky("we"), Padx("0.4m"), Pady("0.15m"))
		f.entry.Insert("1.0", f.format(v.cfg))
		row++
	}
	v.applyBtn = Button(Txt("Apply Changes"), Command(v.ApplyChanges))
	Grid(v.applyBtn, Row(row), Column(0), Columnspan(2), Sticky("we"), Padx("0.4m"), Pady("0.3m"))
	return row + 1
}

func (v *configPanel) SetEditable(enabled bool) {
	state := "disabled"
	if enabled {
		state = "normal"
	}
	for _, f := range v.fields {
		if f.entry != nil {
			f.entry.Configure(State(state))
		}
	}
	if v.applyBtn != nil {
		v.applyBtn.Configure(State(state))
	}
}

// ApplyChanges parses every entry into a copy of the config; the copy only
// replaces the live config when it validates.
func (v *configPanel) ApplyChanges() {
	if v.cfg == nil {
		return
	}
	next := *v.cfg
	for _, f := range v.fields {
		if f.entry == nil {
			continue
		}
		text := strings.TrimSpace(strings.Join(f.entry.Get("1.0", END), ""))
		if !f.parse(&next, text) {
			v.logger.Warn("config field ignored", "field", f.label, "value", text)
		}
	}
	if err := next.Validate(); err != nil {
		v.logger.Warn("config rejected", "error", err)
		return
	}
	*v.cfg = next
	if err := v.cfg.Save(v.cfgPath); err != nil {
		v.logger.Error("config save failed", "error", err)
		return
	}
	v.logger.Info("config saved", "path", v.cfgPath, "target_fps", next.TargetFPS, "refresh_hz", next.RefreshRate)
	v.refresh()
}

// refresh shows values as normalized by Validate.
func (v *configPanel) refresh() {
	for _, f := range v.fields {
		if f.entry == nil {
			continue
		}
		f.entry.Delete("1.0", END)
		f.entry.Insert("1.0", f.format(v.cfg))
	}
}
