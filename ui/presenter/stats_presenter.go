package presenter

import (
	"time"

	"github.com/soocke/frameboost-go/ui/model"
)

// RunningSource reports whether a pipeline run is active.
type RunningSource interface{ Running() bool }

// TelemetrySource exposes the latest rates and recovery count.
type TelemetrySource interface {
	Telemetry() (original, interpolated float64)
	Recoveries() int
}

// StatsView displays run durations and frame rates.
type StatsView interface {
	SetRun(run, total time.Duration)
	SetRates(original, interpolated float64)
	SetRecoveries(n int)
}

// StatsPresenter formats run time and telemetry for the view.
type StatsPresenter struct {
	runs      *model.RunModel
	running   RunningSource
	telemetry TelemetrySource
	view      StatsView
}

func NewStatsPresenter(runs *model.RunModel, running RunningSource, telemetry TelemetrySource, view StatsView) *StatsPresenter {
	return &StatsPresenter{runs: runs, running: running, telemetry: telemetry, view: view}
}

func (p *StatsPresenter) Tick(now time.Time) {
	if p == nil || p.runs == nil || p.running == nil || p.view == nil {
		return
	}
	p.runs.OnTick(p.running.Running(), now)
	p.view.SetRun(p.runs.Values())
	if p.telemetry != nil {
		p.view.SetRates(p.telemetry.Telemetry())
		p.view.SetRecoveries(p.telemetry.Recoveries())
	}
}
