package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	def := DefaultConfig()
	if cfg.RefreshRate != def.RefreshRate || cfg.FrameWidth != def.FrameWidth || cfg.FailureThreshold != def.FailureThreshold {
		t.Fatalf("expected defaults, got %+v", cfg)
	}
}

func TestSaveLoad_RoundTripKeepsOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.json")
	cfg := DefaultConfig()
	cfg.TargetFPS = 90
	cfg.QueueCapacity = 4
	cfg.CaptureSource = SourceSynthetic
	if err := cfg.Save(path); err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := Load(path)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if got.TargetFPS != 90 || got.QueueCapacity != 4 || got.CaptureSource != SourceSynthetic {
		t.Fatalf("overrides lost: %+v", got)
	}
}

func TestLoad_BadJSON(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o600); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err == nil {
		t.Fatalf("expected decode error")
	}
	if cfg == nil || cfg.RefreshRate != 60 {
		t.Fatalf("expected defaults alongside error, got %+v", cfg)
	}
}

func TestValidate_ClampsOutOfRange(t *testing.T) {
	cfg := &Config{
		TargetFPS:             -5,
		RefreshRate:           0,
		FrameWidth:            -1,
		FrameHeight:           0,
		QueueCapacity:         1,
		TelemetryWindowMillis: 100,
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.TargetFPS != 0 || cfg.RefreshRate != 60 || cfg.FrameWidth != 640 || cfg.FrameHeight != 360 {
		t.Fatalf("clamp failed: %+v", cfg)
	}
	if cfg.QueueCapacity != 2 {
		t.Fatalf("queue capacity must be at least 2, got %d", cfg.QueueCapacity)
	}
	if cfg.TelemetryWindowMillis != 500 {
		t.Fatalf("telemetry window must be >= 500ms, got %d", cfg.TelemetryWindowMillis)
	}
	if cfg.CaptureSource != SourceScreen {
		t.Fatalf("empty source should default to screen, got %q", cfg.CaptureSource)
	}
}

func TestValidate_UnknownSource(t *testing.T) {
	cfg := DefaultConfig()
	cfg.CaptureSource = "webcam"
	if err := cfg.Validate(); err == nil {
		t.Fatalf("expected error for unknown source")
	}
	if cfg.CaptureSource != SourceScreen {
		t.Fatalf("source not reset: %q", cfg.CaptureSource)
	}
}

func TestApplyEnv(t *testing.T) {
	t.Setenv("FRAMEBOOST_TARGET_FPS", "120")
	t.Setenv("FRAMEBOOST_REFRESH_HZ", "90")
	t.Setenv("FRAMEBOOST_QUEUE_CAPACITY", "not-a-number")
	t.Setenv("FRAMEBOOST_PREVIEW", "false")
	cfg := DefaultConfig()
	if err := cfg.ApplyEnv(); err != nil {
		t.Fatalf("apply env: %v", err)
	}
	if cfg.TargetFPS != 120 || cfg.RefreshRate != 90 || cfg.Preview {
		t.Fatalf("env overrides not applied: %+v", cfg)
	}
	if cfg.QueueCapacity != 0 {
		t.Fatalf("unparsable env should keep default, got %d", cfg.QueueCapacity)
	}
}

func TestSelection(t *testing.T) {
	cfg := DefaultConfig()
	if cfg.Selection() != nil {
		t.Fatalf("default config should capture the full screen")
	}
	cfg.SelectionX, cfg.SelectionY, cfg.SelectionW, cfg.SelectionH = 10, 20, 300, 200
	r := cfg.Selection()
	if r == nil || r.Min.X != 10 || r.Min.Y != 20 || r.Dx() != 300 || r.Dy() != 200 {
		t.Fatalf("selection %v", r)
	}
}
