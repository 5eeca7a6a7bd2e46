package main

import (
	"io"
	"log/slog"
	"os"
)

// NewLogger returns a structured JSON slog.Logger with the given level writing to w
// (stdout when nil). Debug level also records the source position.
func NewLogger(level slog.Leveler, w io.Writer) *slog.Logger {
	if w == nil {
		w = os.Stdout
	}
	opts := &slog.HandlerOptions{Level: level}
	if level.Level() <= slog.LevelDebug {
		opts.AddSource = true
	}
	return slog.New(slog.NewJSONHandler(w, opts)).With("app", "frameboost")
}
