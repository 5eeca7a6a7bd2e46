package view

import (
	"fmt"
	"image"
	"log/slog"
	"strings"
	"sync/atomic"

	"github.com/soocke/frameboost-go/config"
	"github.com/soocke/frameboost-go/domain/capture"

	//lint:ignore ST1001 Dot import is intentional for concise Tk widget DSL builders
	. "modernc.org/tk9.0"
)

// SelectionOverlay is a see-through, resizable window marking the screen
// region that feeds the pipeline. Confirming stores the window geometry as
// the capture rectangle and persists it in the config.
type SelectionOverlay interface {
	OpenOrFocus()
	Clear()
	ActiveRect() *image.Rectangle
}

const overlayKey = "#008080" // rendered transparent on platforms that support it

type selectionOverlay struct {
	logger  *slog.Logger
	cfg     *config.Config
	cfgPath string
	rect    atomic.Pointer[image.Rectangle] // read by the capture goroutine
	win     *ToplevelWidget
}

func NewSelectionOverlay(cfg *config.Config, cfgPath string, logger *slog.Logger) SelectionOverlay {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	v := &selectionOverlay{logger: logger, cfg: cfg, cfgPath: cfgPath}
	if cfg != nil {
		v.rect.Store(cfg.Selection())
	}
	return v
}

func (v *selectionOverlay) OpenOrFocus() {
	if v.win != nil {
		WmAttributes(v.win.Window, "-topmost", 1)
		return
	}
	v.win = App.Toplevel(Borderwidth(3), Relief("solid"), Background(overlayKey))
	v.win.WmTitle("Capture Region")
	w := v.win.Window
	WmGeometry(w, v.initialGeometry())
	WmAttributes(w, "-topmost", 1)
	WmAttributes(w, "-transparentcolor", overlayKey)
	GridRowConfigure(w, 0, Weight(1))
	GridColumnConfigure(w, 0, Weight(1))

	Grid(v.win.Frame(Background(overlayKey)), Row(0), Column(0), Sticky("nsew"))
	bar := v.win.Frame()
	Grid(bar, Row(1), Column(0), Sticky("we"))
	for col, b := range []struct {
		text string
		fn   func()
	}{
		{"Confirm [Enter]", v.confirm},
		{"Full Screen", v.Clear},
		{"Cancel [Esc]", v.close},
	} {
		Grid(v.win.Button(Txt(b.text), Command(b.fn)), In(bar), Row(0), Column(col), Sticky("we"), Padx("0.2m"), Pady("0.2m"))
	}
	Bind(v.win, "<Return>", Command(v.confirm))
	Bind(v.win, "<Escape>", Command(v.close))
}

// Clear reverts to full-screen capture.
func (v *selectionOverlay) Clear() {
	v.rect.Store(nil)
	if v.cfg != nil {
		v.cfg.SelectionW, v.cfg.SelectionH = 0, 0
		v.persist()
	}
	v.logger.Info("capture region cleared")
	v.close()
}

func (v *selectionOverlay) confirm() {
	if v.win == nil {
		return
	}
	r, ok := parseGeometry(WmGeometry(v.win.Window))
	if !ok {
		v.logger.Warn("capture region not understood, keeping previous")
		v.close()
		return
	}
	v.rect.Store(&r)
	if v.cfg != nil {
		v.cfg.SelectionX, v.cfg.SelectionY = r.Min.X, r.Min.Y
		v.cfg.SelectionW, v.cfg.SelectionH = r.Dx(), r.Dy()
		v.persist()
	}
	v.logger.Info("capture region set", "rect", r.String())
	v.close()
}

func (v *selectionOverlay) persist() {
	if err := v.cfg.Save(v.cfgPath); err != nil {
		v.logger.Error("config save failed", "error", err)
	}
}

func (v *selectionOverlay) close() {
	if v.win != nil {
		Destroy(v.win)
		v.win = nil
	}
}

// ActiveRect returns a copy of the confirmed region, nil for full screen.
func (v *selectionOverlay) ActiveRect() *image.Rectangle {
	r := v.rect.Load()
	if r == nil || r.Empty() {
		return nil
	}
	out := *r
	return &out
}

// initialGeometry reopens the overlay over the stored region, or centers a
// window covering two thirds of the screen.
func (v *selectionOverlay) initialGeometry() string {
	if r := v.ActiveRect(); r != nil {
		return formatGeometry(*r)
	}
	screen, err := capture.ScreenBounds()
	if err != nil || screen.Empty() {
		v.logger.Warn("screen bounds unavailable", "error", err)
		screen = image.Rect(0, 0, 1920, 1080)
	}
	w, h := max(screen.Dx()*2/3, 1), max(screen.Dy()*5/9, 1)
	origin := screen.Min.Add(image.Pt((screen.Dx()-w)/2, (screen.Dy()-h)/2))
	return formatGeometry(image.Rectangle{Min: origin, Max: origin.Add(image.Pt(w, h))})
}

func formatGeometry(r image.Rectangle) string {
	return fmt.Sprintf("%dx%d+%d+%d", r.Dx(), r.Dy(), r.Min.X, r.Min.Y)
}

// parseGeometry reads a Tk "WxH+X+Y" geometry string.
func parseGeometry(g string) (image.Rectangle, bool) {
	var w, h, x, y int
	if n, err := fmt.Sscanf(strings.TrimSpace(g), "%dx%d+%d+%d", &w, &h, &x, &y); err != nil || n != 4 {
		return image.Rectangle{}, false
	}
	if w <= 0 || h <= 0 {
		return image.Rectangle{}, false
	}
	return image.Rect(x, y, x+w, y+h), true
}
