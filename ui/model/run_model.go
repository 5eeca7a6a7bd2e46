package model

import "time"

// RunModel tracks how long the pipeline has been running, per run and in
// total. Presenters poll Values from the UI tick. The zero value is ready to
// use; it is not synchronized.
type RunModel struct {
	active      bool
	started     time.Time
	current     time.Duration
	accumulated time.Duration
	runs        int
}

// NewRunModel returns a ready-to-use RunModel.
func NewRunModel() *RunModel { return &RunModel{} }

// OnTick advances the model with the pipeline's running state at now.
func (m *RunModel) OnTick(running bool, now time.Time) {
	if m == nil {
		return
	}
	switch {
	case running && !m.active:
		m.active = true
		m.started = now
		m.current = 0
		m.runs++
	case running:
		m.current = now.Sub(m.started)
	case m.active:
		m.current = now.Sub(m.started)
		m.accumulated += m.current
		m.active = false
	}
}

// Values returns the current (or last) run duration and the total across
// runs, including the ongoing one.
func (m *RunModel) Values() (run, total time.Duration) {
	if m == nil {
		return 0, 0
	}
	total = m.accumulated
	if m.active {
		total += m.current
	}
	return m.current, total
}

// Runs counts started runs.
func (m *RunModel) Runs() int {
	if m == nil {
		return 0
	}
	return m.runs
}
