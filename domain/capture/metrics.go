package capture

import (
	"log/slog"
	"time"
)

// CaptureStats summarises capture loop behaviour for instrumentation.
type CaptureStats struct {
	Captures       uint64
	Skipped        uint64
	Resized        uint64
	AvgCapture     time.Duration
	LastCapture    time.Time
	LatestFrameAge time.Duration
	Sequence       uint64
}

func (s CaptureStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Uint64("captures", s.Captures),
		slog.Uint64("skipped", s.Skipped),
		slog.Uint64("resized", s.Resized),
		slog.Duration("avg_capture", s.AvgCapture),
		slog.Duration("age", s.LatestFrameAge),
	)
}
