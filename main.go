package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/soocke/frameboost-go/app"
	"github.com/soocke/frameboost-go/config"
)

func main() {
	cfgPath := flag.String("config", "frameboost.json", "path to the JSON config file")
	headless := flag.Bool("headless", false, "run without the control window")
	source := flag.String("source", "", "capture source override (screen or synthetic)")
	debugFlag := flag.Bool("debug", false, "debug logging and runtime stats")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	bootLogger := NewLogger(slog.LevelInfo, nil)
	if err != nil {
		bootLogger.Warn("config load failed, using defaults", "path", *cfgPath, "error", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		bootLogger.Warn("invalid environment override", "error", err)
	}
	if *source != "" {
		cfg.CaptureSource = *source
	}
	if *debugFlag {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		bootLogger.Warn("config adjusted", "error", err)
	}

	level := slog.LevelInfo
	if cfg.Debug {
		level = slog.LevelDebug
	}
	logger := NewLogger(level, nil)

	application := app.NewApp("Frameboost", 820, 640, cfg, *cfgPath, logger)
	if !*headless {
		application.Start()
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := application.RunHeadless(ctx); err != nil {
		logger.Error("headless run failed", "error", err)
		stop()
		os.Exit(1)
	}
}
