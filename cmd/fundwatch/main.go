// Command fundwatch extracts current unit prices for a configured set of
// wholesale managed funds from their factsheet pages and appends them to a
// CSV time series. It is meant to run unattended from a scheduler (cron,
// systemd timer); when extraction fails persistently it emails the operator.
//
// Usage:
//
//	fundwatch -config config.yaml
//	fundwatch -config config.yaml -headful   # watch the browser work
//
// Exit codes: 0 all funds extracted, 1 at least one fund failed,
// 2 fatal error (configuration, browser startup, persistence).
package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/hazyhaar/fundwatch/config"
	"github.com/hazyhaar/fundwatch/notify"
	"github.com/hazyhaar/fundwatch/pipeline"
	"github.com/hazyhaar/fundwatch/renderer"
	"github.com/hazyhaar/fundwatch/runlog"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to configuration file")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	headful := flag.Bool("headful", false, "run a visible browser regardless of configuration")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	code := run(ctx, logger, *configPath, *headful)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, logger *slog.Logger, configPath string, headful bool) int {
	// Secrets may live in a .env next to the binary; missing file is fine.
	_ = godotenv.Load()

	cfg, err := config.LoadFile(configPath)
	if err != nil {
		logger.Error("fundwatch: configuration", "error", err)
		return 2
	}
	if headful {
		cfg.Browser.Mode = "headful"
	}

	factory := renderer.NewFactory(renderer.BrowserConfig{
		Headful:          cfg.Browser.Mode == "headful",
		ResourceBlocking: cfg.Browser.ResourceBlocking,
		Logger:           logger,
	})
	notifier := notify.New(cfg.Email, logger)

	var history *runlog.DB
	if cfg.Files.RunHistoryDB != "" {
		history, err = runlog.Open(cfg.Files.RunHistoryDB)
		if err != nil {
			// Run history is auxiliary: losing it costs recovery detection,
			// not price data.
			logger.Warn("fundwatch: run history unavailable", "error", err)
			history = nil
		} else {
			defer history.Close()
		}
	}

	p := pipeline.New(cfg, factory, notifier, history, logger)
	sum, err := p.Run(ctx)
	if err != nil {
		logger.Error("fundwatch: fatal", "error", err)
		return 2
	}
	if sum.Failed > 0 {
		return 1
	}
	return 0
}
