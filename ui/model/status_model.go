package model

import (
	"sync"
	"sync/atomic"
)

// StatusModel collects what the pipeline reports through its callbacks.
// Callbacks arrive on pipeline goroutines while the UI reads on its own
// tick, so all fields are synchronized. The zero value is usable.
type StatusModel struct {
	enabled atomic.Bool

	mu           sync.Mutex
	originalFPS  float64
	interpFPS    float64
	recoveries   int
	fatal        string
	fatalPending bool
}

// Enabled reports whether the user switched the pipeline on.
func (m *StatusModel) Enabled() bool {
	if m == nil {
		return false
	}
	return m.enabled.Load()
}

// SetEnabled stores the enabled flag; enabling clears a previous fatal reason.
func (m *StatusModel) SetEnabled(b bool) {
	if m == nil || m.enabled.Swap(b) == b {
		return
	}
	if b {
		m.mu.Lock()
		m.fatal, m.fatalPending = "", false
		m.mu.Unlock()
	}
}

// SetTelemetry stores the latest window's rates.
func (m *StatusModel) SetTelemetry(original, interpolated float64) {
	m.mu.Lock()
	m.originalFPS, m.interpFPS = original, interpolated
	m.mu.Unlock()
}

// Telemetry returns the latest rates.
func (m *StatusModel) Telemetry() (original, interpolated float64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.originalFPS, m.interpFPS
}

// RecordRecovery counts a rebuilt graphics context.
func (m *StatusModel) RecordRecovery() {
	m.mu.Lock()
	m.recoveries++
	m.mu.Unlock()
}

// Recoveries returns how many times the context was rebuilt.
func (m *StatusModel) Recoveries() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.recoveries
}

// SetFatal records why the pipeline stopped on its own.
func (m *StatusModel) SetFatal(reason string) {
	m.mu.Lock()
	m.fatal, m.fatalPending = reason, true
	m.mu.Unlock()
}

// TakeFatal returns a fatal reason once; later calls report false until the
// next SetFatal.
func (m *StatusModel) TakeFatal() (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.fatalPending {
		return "", false
	}
	m.fatalPending = false
	return m.fatal, true
}
