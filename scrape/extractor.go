package scrape

import (
	"context"
	"log/slog"
	"time"

	"github.com/hazyhaar/fundwatch/parse"
	"github.com/hazyhaar/fundwatch/renderer"
)

// Extractor drives one renderer session against a single target with a
// bounded retry policy.
//
// Transient load failures (navigation error, render timeout) are retried up
// to MaxAttempts. A page that loads but is structurally wrong is a parse
// failure and is never retried.
type Extractor struct {
	Renderer        renderer.Renderer
	Timeout         time.Duration
	MaxAttempts     int
	DefaultCurrency string
	Logger          *slog.Logger

	// Now is the clock, overridable in tests. Defaults to time.Now.
	Now func() time.Time
}

func (e *Extractor) now() time.Time {
	if e.Now != nil {
		return e.Now()
	}
	return time.Now()
}

// Extract processes one target and returns its outcome. It never writes
// anywhere; the caller owns persistence.
func (e *Extractor) Extract(ctx context.Context, target Target) Outcome {
	log := e.Logger
	if log == nil {
		log = slog.Default()
	}

	attempts := 0
	for attempts < e.MaxAttempts {
		attempts++

		if err := e.Renderer.Navigate(ctx, target.URL); err != nil {
			log.Warn("scrape: navigate failed",
				"fund", target.Label(), "attempt", attempts, "error", err)
			continue
		}
		if err := e.Renderer.WaitReady(ctx, e.Timeout); err != nil {
			log.Warn("scrape: page not ready",
				"fund", target.Label(), "attempt", attempts, "error", err)
			continue
		}
		html, err := e.Renderer.HTML(ctx)
		if err != nil {
			log.Warn("scrape: html capture failed",
				"fund", target.Label(), "attempt", attempts, "error", err)
			continue
		}

		fields, err := parse.Factsheet(html)
		if err != nil {
			// Structural failure: retrying cannot fix a malformed page.
			log.Error("scrape: parse failed",
				"fund", target.Label(), "attempt", attempts, "error", err)
			return Outcome{Target: target, Reason: ReasonParseError, Attempts: attempts, Err: err}
		}

		rec, err := e.buildRecord(target, fields)
		if err != nil {
			log.Error("scrape: record invalid",
				"fund", target.Label(), "attempt", attempts, "error", err)
			return Outcome{Target: target, Reason: ReasonParseError, Attempts: attempts, Err: err}
		}

		log.Info("scrape: extracted",
			"fund", rec.Symbol, "price", rec.Price,
			"date", rec.EffectiveDate.Format(DateLayout), "attempt", attempts)
		return Outcome{Target: target, Record: rec, Attempts: attempts}
	}

	return Outcome{Target: target, Reason: ReasonTimeoutExhausted, Attempts: attempts}
}

// buildRecord merges page fields with target overrides and validates the
// result. Overrides always win over page-extracted values.
func (e *Extractor) buildRecord(target Target, f *parse.Fields) (*Record, error) {
	extractedAt := e.now()
	today := extractedAt.UTC().Truncate(24 * time.Hour)

	rec := &Record{
		Price:       f.Price,
		Currency:    f.Currency,
		ExtractedAt: extractedAt,
	}

	rec.Symbol = target.Symbol
	if rec.Symbol == "" {
		rec.Symbol = f.Symbol
	}
	if rec.Symbol == "" {
		return nil, &parse.FieldError{Field: "symbol", Detail: "absent from page and configuration"}
	}

	rec.Name = target.Name
	if rec.Name == "" {
		rec.Name = f.Name
	}
	if rec.Name == "" {
		rec.Name = rec.Symbol
	}

	if rec.Currency == "" {
		rec.Currency = e.DefaultCurrency
	}

	// Funds that publish a price without a date are taken as effective today.
	rec.EffectiveDate = f.EffectiveDate
	if !f.DateFound {
		rec.EffectiveDate = today
	}
	if rec.EffectiveDate.After(today) {
		return nil, &parse.FieldError{
			Field:  "effective_date",
			Detail: "in the future: " + rec.EffectiveDate.Format(DateLayout),
		}
	}

	return rec, nil
}
