package pacing

import (
	"math"
	"testing"
	"time"
)

func TestRawFactor_AlwaysInUnitRange(t *testing.T) {
	interval := time.Second / 75
	for _, elapsed := range []time.Duration{0, -time.Second, 1, interval / 3, interval, 10 * interval, time.Hour, math.MaxInt64} {
		if f := RawFactor(elapsed, interval); f < 0 || f > 1 {
			t.Fatalf("RawFactor(%v) = %v", elapsed, f)
		}
	}
	if RawFactor(time.Millisecond, 0) != 1 {
		t.Fatalf("zero interval should show newest frame")
	}
}

func TestFactor_AlwaysInUnitRange(t *testing.T) {
	interval := time.Second / 120
	base := int64(10 * time.Second)
	for _, gap := range []int64{0, 1, int64(interval), int64(time.Second)} {
		for _, delay := range []int64{-int64(time.Second), 0, int64(interval) / 2, int64(time.Minute)} {
			f := Factor(base+gap+delay, base, base+gap, interval)
			if f < 0 || f > 1 || math.IsNaN(f) {
				t.Fatalf("gap=%d delay=%d factor=%v", gap, delay, f)
			}
		}
	}
}

func TestRawFactor_HalfIntervalIsHalf(t *testing.T) {
	interval := time.Second / 75
	t1, t2 := int64(time.Second), int64(time.Second)+int64(interval)
	now := t2 + int64(interval)/2
	if f := RawFactor(time.Duration(now-t2), interval); math.Abs(f-0.5) > 1e-6 {
		t.Fatalf("raw factor %v, want 0.5", f)
	}
	_ = t1
}

func TestFactor_Smoothing(t *testing.T) {
	interval := 10 * time.Millisecond
	// capture interval 5ms -> prev 0.5; elapsed 10ms -> raw 1.
	got := Factor(int64(25*time.Millisecond), int64(10*time.Millisecond), int64(15*time.Millisecond), interval)
	want := 0.7*0.5 + 0.3*1
	if math.Abs(got-want) > 1e-9 {
		t.Fatalf("factor %v, want %v", got, want)
	}
}

func TestTargetForRefresh(t *testing.T) {
	cases := []struct {
		hz   float64
		want int
	}{
		{30, 75}, {60, 75}, {72, 120}, {90, 120}, {90.5, 144}, {120, 144}, {240, 144},
	}
	for _, tc := range cases {
		if got := TargetForRefresh(tc.hz); got != tc.want {
			t.Errorf("TargetForRefresh(%v) = %d, want %d", tc.hz, got, tc.want)
		}
	}
}

func TestBackfillCount_Bounded(t *testing.T) {
	cases := []struct {
		missed int
		hz     float64
		want   int
	}{
		{0, 60, 0}, {1, 60, 0}, {2, 60, 1}, {10, 60, 9}, {61, 60, 60}, {300, 60, 60}, {1 << 30, 144, 144},
	}
	for _, tc := range cases {
		if got := BackfillCount(tc.missed, tc.hz); got != tc.want {
			t.Errorf("BackfillCount(%d, %v) = %d, want %d", tc.missed, tc.hz, got, tc.want)
		}
	}
}

func TestMissedTicks(t *testing.T) {
	iv := Interval(60)
	if n := MissedTicks(int64(5*time.Second), 0, iv); n != 300 {
		t.Fatalf("5s at 60Hz = %d ticks", n)
	}
	if MissedTicks(10, 20, iv) != 1 || MissedTicks(10, 0, 0) != 1 {
		t.Fatalf("degenerate inputs should count one tick")
	}
}

func TestValidRate(t *testing.T) {
	cases := []struct {
		hz   float64
		want bool
	}{
		{60, true}, {0.5, true}, {0, false}, {-60, false},
		{math.NaN(), false}, {math.Inf(1), false}, {math.Inf(-1), false},
	}
	for _, tc := range cases {
		if got := ValidRate(tc.hz); got != tc.want {
			t.Errorf("ValidRate(%v) = %v, want %v", tc.hz, got, tc.want)
		}
	}
}

func TestNonFiniteRatesUseDefaults(t *testing.T) {
	for _, hz := range []float64{math.NaN(), math.Inf(1), math.Inf(-1)} {
		if got := TargetForRefresh(hz); got != TargetForRefresh(DefaultRefreshHz) {
			t.Errorf("TargetForRefresh(%v) = %d", hz, got)
		}
		if got := BackfillCount(10, hz); got != 0 {
			t.Errorf("BackfillCount(10, %v) = %d, want 0", hz, got)
		}
		if got := Interval(hz); got != Interval(DefaultRefreshHz) {
			t.Errorf("Interval(%v) = %v", hz, got)
		}
	}
}
