package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/fundwatch/config"
	"github.com/hazyhaar/fundwatch/renderer"
)

// Runner iterates the configured targets, one at a time, against a single
// renderer session acquired for the whole run.
//
// A failure on one fund never aborts processing of subsequent funds; every
// target produces exactly one outcome, in configuration order.
type Runner struct {
	factory         renderer.Factory
	timeout         time.Duration
	maxAttempts     int
	defaultCurrency string
	logger          *slog.Logger

	now func() time.Time
}

// RunnerOption configures a Runner.
type RunnerOption func(*Runner)

// WithClock overrides the runner's clock. Used in tests.
func WithClock(now func() time.Time) RunnerOption {
	return func(r *Runner) { r.now = now }
}

// NewRunner creates a Runner from browser configuration.
func NewRunner(factory renderer.Factory, cfg config.BrowserConfig, logger *slog.Logger, opts ...RunnerOption) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	r := &Runner{
		factory:         factory,
		timeout:         cfg.PageLoadTimeout(),
		maxAttempts:     cfg.MaxAttempts,
		defaultCurrency: cfg.DefaultCurrency,
		logger:          logger,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Run processes every target and returns the aggregate result. The renderer
// session is acquired once and released on every exit path. The returned
// error is non-nil only when no session could be acquired at all.
func (r *Runner) Run(ctx context.Context, targets []Target) (*RunResult, error) {
	rend, err := r.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("scrape: acquire renderer: %w", err)
	}
	defer func() {
		if err := rend.Close(); err != nil {
			r.logger.Warn("scrape: renderer close failed", "error", err)
		}
	}()

	ex := &Extractor{
		Renderer:        rend,
		Timeout:         r.timeout,
		MaxAttempts:     r.maxAttempts,
		DefaultCurrency: r.defaultCurrency,
		Logger:          r.logger,
		Now:             r.now,
	}

	result := &RunResult{Outcomes: make([]Outcome, 0, len(targets))}
	for _, target := range targets {
		outcome := ex.Extract(ctx, target)
		if !outcome.OK() {
			r.logger.Error("scrape: fund failed",
				"fund", target.Label(), "reason", outcome.Reason, "attempts", outcome.Attempts)
		}
		result.Outcomes = append(result.Outcomes, outcome)
	}

	r.logger.Info("scrape: run complete",
		"targets", len(targets), "succeeded", result.Succeeded(), "failed", result.Failed())
	return result, nil
}
