package pacing

import (
	"math"
	"time"
)

// Smoothing weights: the capture-interval ratio carries 0.7, the elapsed
// ratio 0.3.
const (
	prevWeight = 0.7
	rawWeight  = 0.3
)

// DefaultRefreshHz is assumed until the display reports its rate.
const DefaultRefreshHz = 60.0

// Clamp01 limits v to [0,1]; NaN maps to 0.
func Clamp01(v float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	return min(max(v, 0), 1)
}

// RawFactor is elapsed/interval clamped to [0,1]. A non-positive interval
// shows the newest frame.
func RawFactor(elapsed, interval time.Duration) float64 {
	if interval <= 0 {
		return 1
	}
	return Clamp01(float64(elapsed) / float64(interval))
}

// Smooth blends the capture-interval ratio with the raw factor.
func Smooth(prev, raw float64) float64 {
	return Clamp01(prevWeight*Clamp01(prev) + rawWeight*Clamp01(raw))
}

// Factor computes the blend weight for a tick at now given the two newest
// capture timestamps. The "previous" term is the ratio of the last capture
// interval to the target interval, not the previously used factor.
func Factor(now, prevTs, latestTs int64, targetInterval time.Duration) float64 {
	raw := RawFactor(time.Duration(now-latestTs), targetInterval)
	prev := RawFactor(time.Duration(latestTs-prevTs), targetInterval)
	return Smooth(prev, raw)
}

// ValidRate reports whether hz is a usable refresh rate: positive and finite.
func ValidRate(hz float64) bool {
	return hz > 0 && !math.IsInf(hz, 0) && !math.IsNaN(hz)
}

// TargetForRefresh maps a display refresh rate to the output frame rate:
// up to 60Hz -> 75, up to 90Hz -> 120, faster -> 144.
func TargetForRefresh(hz float64) int {
	if !ValidRate(hz) {
		hz = DefaultRefreshHz
	}
	switch {
	case hz <= 60:
		return 75
	case hz <= 90:
		return 120
	default:
		return 144
	}
}

// Interval converts a rate in Hz to a period. Non-positive rates fall back to
// DefaultRefreshHz.
func Interval(hz float64) time.Duration {
	if !ValidRate(hz) {
		hz = DefaultRefreshHz
	}
	return time.Duration(float64(time.Second) / hz)
}

// MissedTicks returns how many refresh periods fit between last and now,
// never less than one.
func MissedTicks(now, last int64, interval time.Duration) int {
	if interval <= 0 || now <= last {
		return 1
	}
	n := (now - last) / int64(interval)
	if n < 1 {
		return 1
	}
	if n > math.MaxInt32 {
		return math.MaxInt32
	}
	return int(n)
}

// BackfillCount bounds catch-up work for a stall of missed ticks to one
// refresh period's worth of frames: min(missed-1, int(hz)).
func BackfillCount(missed int, hz float64) int {
	if missed <= 1 || !ValidRate(hz) {
		return 0
	}
	return min(missed-1, int(min(hz, math.MaxInt32)))
}
