package view

import (
	"fmt"
	"time"

	//lint:ignore ST1001 Dot import for concise Tk widget DSL.
	. "modernc.org/tk9.0"
)

// StatsPanel shows run durations, frame rates and recovery count.
type StatsPanel interface {
	SetRun(run, total time.Duration)
	SetRates(original, interpolated float64)
	SetRecoveries(n int)
}

type statsPanel struct {
	runLbl      *LabelWidget
	totalLbl    *LabelWidget
	origLbl     *LabelWidget
	interpLbl   *LabelWidget
	recoveryLbl *LabelWidget
}

// NewStatsPanel lays the labels out in one row of parent starting at column 0.
func NewStatsPanel(parent *FrameWidget, row int) StatsPanel {
	s := &statsPanel{
		runLbl:      Label(Width(14), Anchor("w")),
		totalLbl:    Label(Width(14), Anchor("w")),
		origLbl:     Label(Width(16), Anchor("w")),
		interpLbl:   Label(Width(18), Anchor("w")),
		recoveryLbl: Label(Width(14), Anchor("w")),
	}
	for col, l := range []*LabelWidget{s.runLbl, s.totalLbl, s.origLbl, s.interpLbl, s.recoveryLbl} {
		Grid(l, In(parent), Row(row), Column(col), Sticky("w"), Padx("0.2m"))
	}
	s.SetRun(0, 0)
	s.SetRates(0, 0)
	s.SetRecoveries(0)
	return s
}

func clock(d time.Duration) string {
	seconds := int(d.Seconds())
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func (s *statsPanel) SetRun(run, total time.Duration) {
	if s == nil || s.runLbl == nil {
		return
	}
	s.runLbl.Configure(Txt("Run: " + clock(run)))
	s.totalLbl.Configure(Txt("Total: " + clock(total)))
}

func (s *statsPanel) SetRates(original, interpolated float64) {
	if s == nil || s.origLbl == nil {
		return
	}
	s.origLbl.Configure(Txt(fmt.Sprintf("Source: %.1f fps", original)))
	s.interpLbl.Configure(Txt(fmt.Sprintf("Output: %.1f fps", interpolated)))
}

func (s *statsPanel) SetRecoveries(n int) {
	if s == nil || s.recoveryLbl == nil {
		return
	}
	s.recoveryLbl.Configure(Txt(fmt.Sprintf("Recoveries: %d", n)))
}
