package presenter

import "time"

// Loop aggregates feature presenters and drives periodic updates.
//
// It calls Tick on the sub-presenters and invokes a scheduler callback.
// The zero value is usable (methods are nil-safe).
type Loop struct {
	Pipeline *PipelinePresenter
	Stats    *StatsPresenter
	Preview  *PreviewPresenter
	Schedule func()
}

func NewLoop(p *PipelinePresenter, stats *StatsPresenter, preview *PreviewPresenter, schedule func()) *Loop {
	return &Loop{Pipeline: p, Stats: stats, Preview: preview, Schedule: schedule}
}

func (l *Loop) Tick() {
	if l == nil {
		return
	}
	// Fatal stops first so the stats tick sees the pipeline as stopped.
	l.Pipeline.Tick()
	l.Stats.Tick(time.Now())
	l.Preview.Tick()
	if l.Schedule != nil {
		l.Schedule()
	}
}
