// Package scrape implements the extraction pipeline: per-fund retryable
// extraction against a rendered factsheet, failure isolation across funds,
// and escalation of failed runs into a single notification.
package scrape

import (
	"time"

	"github.com/hazyhaar/fundwatch/config"
)

// Target identifies one fund to extract. Symbol and Name, when set, override
// the page-extracted values.
type Target struct {
	URL    string
	Symbol string
	Name   string
}

// Label returns the best available identity for logs and notifications.
func (t Target) Label() string {
	switch {
	case t.Symbol != "":
		return t.Symbol
	case t.Name != "":
		return t.Name
	default:
		return t.URL
	}
}

// Targets converts configured funds into extraction targets, preserving
// configuration order.
func Targets(funds []config.Fund) []Target {
	targets := make([]Target, len(funds))
	for i, f := range funds {
		targets[i] = Target{URL: f.URL, Symbol: f.Symbol, Name: f.Name}
	}
	return targets
}

// Record is one normalized price observation.
type Record struct {
	Symbol        string
	Name          string
	Price         float64
	EffectiveDate time.Time // calendar date, midnight UTC
	Currency      string
	ExtractedAt   time.Time
}

// Key is the uniqueness key of a price observation.
type Key struct {
	Symbol string
	Date   string // YYYY-MM-DD
}

// DateLayout is the calendar-date format used in keys and the CSV artifact.
const DateLayout = "2006-01-02"

// Key returns the (symbol, effective date) identity of the record.
func (r Record) Key() Key {
	return Key{Symbol: r.Symbol, Date: r.EffectiveDate.Format(DateLayout)}
}

// FailReason classifies why a fund could not be extracted.
type FailReason string

const (
	// ReasonTimeoutExhausted means every attempt ended in a transient load
	// failure (slow page or unreachable address).
	ReasonTimeoutExhausted FailReason = "timeout-exhausted"

	// ReasonParseError means the page loaded but the required fields were
	// absent or malformed. Not retried.
	ReasonParseError FailReason = "parse-error"
)

// Outcome is the result of processing one target: either a Record or a
// classified failure. Returned by value so the orchestrator's continue-on-
// failure behaviour is a plain branch.
type Outcome struct {
	Target   Target
	Record   *Record // nil on failure
	Reason   FailReason
	Attempts int
	Err      error // underlying cause, for logging only
}

// OK reports whether the outcome carries a record.
func (o Outcome) OK() bool { return o.Record != nil }

// RunResult aggregates the outcomes of one run, in target order.
type RunResult struct {
	Outcomes []Outcome
}

// Succeeded counts successful outcomes.
func (r *RunResult) Succeeded() int {
	n := 0
	for _, o := range r.Outcomes {
		if o.OK() {
			n++
		}
	}
	return n
}

// Failed counts failed outcomes.
func (r *RunResult) Failed() int { return len(r.Outcomes) - r.Succeeded() }

// Records returns the successfully extracted records, in target order.
func (r *RunResult) Records() []Record {
	var recs []Record
	for _, o := range r.Outcomes {
		if o.OK() {
			recs = append(recs, *o.Record)
		}
	}
	return recs
}
