package config

import (
	"encoding/json"
	"fmt"
	"image"
	"os"
	"strconv"
	"time"
)

// Capture sources understood by the capture service.
const (
	SourceScreen    = "screen"
	SourceSynthetic = "synthetic"
)

// Config holds runtime configuration for the frame pipeline and app behavior.
// Fields may be loaded from a JSON file, overridden by FRAMEBOOST_* environment
// variables and finally by command-line flags.
type Config struct {
	Debug   bool `json:"debug"`
	Preview bool `json:"preview"`

	// Pacing. TargetFPS 0 derives the target from RefreshRate.
	TargetFPS   int     `json:"target_fps"`
	RefreshRate float64 `json:"refresh_rate"`

	// Frame geometry and queueing. QueueCapacity 0 means max(2, cpus/2).
	FrameWidth        int `json:"frame_width"`
	FrameHeight       int `json:"frame_height"`
	QueueCapacity     int `json:"queue_capacity"`
	BufferPoolCeiling int `json:"buffer_pool_ceiling"`
	TexturePoolSize   int `json:"texture_pool_size"`
	UploadQueueDepth  int `json:"upload_queue_depth"`

	// Recovery
	FailureThreshold      int `json:"failure_threshold"`
	SkipThreshold         int `json:"skip_threshold"`
	RecoveryAttempts      int `json:"recovery_attempts"`
	RecoveryBackoffMillis int `json:"recovery_backoff_ms"`

	TelemetryWindowMillis int `json:"telemetry_window_ms"`

	// Capture
	CaptureSource string  `json:"capture_source"`
	CaptureFPS    float64 `json:"capture_fps"`
	SelectionX    int     `json:"selection_x"`
	SelectionY    int     `json:"selection_y"`
	SelectionW    int     `json:"selection_w"`
	SelectionH    int     `json:"selection_h"`
}

// DefaultConfig returns a Config populated with standard defaults.
func DefaultConfig() *Config {
	return &Config{
		Debug:                 false,
		Preview:               true,
		TargetFPS:             0,
		RefreshRate:           60,
		FrameWidth:            640,
		FrameHeight:           360,
		QueueCapacity:         0,
		BufferPoolCeiling:     120,
		TexturePoolSize:       3,
		UploadQueueDepth:      8,
		FailureThreshold:      3,
		SkipThreshold:         15,
		RecoveryAttempts:      3,
		RecoveryBackoffMillis: 200,
		TelemetryWindowMillis: 500,
		CaptureSource:         SourceScreen,
		CaptureFPS:            45,
	}
}

// Validate clamps/normalizes values to safe ranges. It only returns an error
// for values that cannot be clamped to something meaningful.
func (c *Config) Validate() error {
	if c.TargetFPS < 0 {
		c.TargetFPS = 0
	}
	if c.RefreshRate <= 0 {
		c.RefreshRate = 60
	}
	if c.FrameWidth <= 0 {
		c.FrameWidth = 640
	}
	if c.FrameHeight <= 0 {
		c.FrameHeight = 360
	}
	if c.QueueCapacity < 0 {
		c.QueueCapacity = 0
	}
	if c.QueueCapacity == 1 {
		c.QueueCapacity = 2
	}
	if c.BufferPoolCeiling <= 0 {
		c.BufferPoolCeiling = 120
	}
	if c.TexturePoolSize <= 0 {
		c.TexturePoolSize = 3
	}
	if c.UploadQueueDepth <= 0 {
		c.UploadQueueDepth = 8
	}
	if c.FailureThreshold <= 0 {
		c.FailureThreshold = 3
	}
	if c.SkipThreshold <= 0 {
		c.SkipThreshold = 15
	}
	if c.RecoveryAttempts <= 0 {
		c.RecoveryAttempts = 3
	}
	if c.RecoveryBackoffMillis < 0 {
		c.RecoveryBackoffMillis = 200
	}
	if c.TelemetryWindowMillis < 500 {
		c.TelemetryWindowMillis = 500
	}
	if c.CaptureFPS < 0 {
		c.CaptureFPS = 0
	}
	switch c.CaptureSource {
	case SourceScreen, SourceSynthetic:
	case "":
		c.CaptureSource = SourceScreen
	default:
		bad := c.CaptureSource
		c.CaptureSource = SourceScreen
		return fmt.Errorf("config: unknown capture source %q", bad)
	}
	return nil
}

// RecoveryBackoff returns the sleep between recovery attempts.
func (c *Config) RecoveryBackoff() time.Duration {
	return time.Duration(c.RecoveryBackoffMillis) * time.Millisecond
}

// TelemetryWindow returns the rolling FPS window.
func (c *Config) TelemetryWindow() time.Duration {
	return time.Duration(c.TelemetryWindowMillis) * time.Millisecond
}

// Selection returns the stored capture rectangle, nil for the full screen.
func (c *Config) Selection() *image.Rectangle {
	if c.SelectionW <= 0 || c.SelectionH <= 0 {
		return nil
	}
	r := image.Rect(c.SelectionX, c.SelectionY, c.SelectionX+c.SelectionW, c.SelectionY+c.SelectionH)
	return &r
}

// FrameBytes is the RGBA byte size of one configured frame.
func (c *Config) FrameBytes() int { return c.FrameWidth * c.FrameHeight * 4 }

// Load attempts to read configuration from the given JSON file path. If the file does not
// exist it returns DefaultConfig(). On JSON error it returns defaults with the error.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return cfg, err
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	if err := dec.Decode(cfg); err != nil {
		return cfg, err
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Save writes the configuration to the given path in JSON format.
func (c *Config) Save(path string) error {
	_ = c.Validate()
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	return enc.Encode(c)
}

// ApplyEnv overrides fields from FRAMEBOOST_* environment variables. Unset or
// unparsable variables leave the current value untouched.
func (c *Config) ApplyEnv() error {
	c.Debug = envBool("FRAMEBOOST_DEBUG", c.Debug)
	c.Preview = envBool("FRAMEBOOST_PREVIEW", c.Preview)
	c.TargetFPS = envInt("FRAMEBOOST_TARGET_FPS", c.TargetFPS)
	c.RefreshRate = envFloat("FRAMEBOOST_REFRESH_HZ", c.RefreshRate)
	c.FrameWidth = envInt("FRAMEBOOST_FRAME_WIDTH", c.FrameWidth)
	c.FrameHeight = envInt("FRAMEBOOST_FRAME_HEIGHT", c.FrameHeight)
	c.QueueCapacity = envInt("FRAMEBOOST_QUEUE_CAPACITY", c.QueueCapacity)
	c.CaptureSource = envStr("FRAMEBOOST_CAPTURE_SOURCE", c.CaptureSource)
	c.CaptureFPS = envFloat("FRAMEBOOST_CAPTURE_FPS", c.CaptureFPS)
	return c.Validate()
}

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func envFloat(key string, fallback float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return fallback
}

func envBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
