// Package pipeline assembles one extraction run: load the price store, scrape
// every configured fund, merge and flush the artifact, escalate failures, and
// record the run in the history database.
//
// Failure policy, top to bottom: per-fund failures are isolated inside the
// scrape runner; persistence failures abort the run and escalate
// unconditionally; anything unexpected is caught once here and treated the
// same way; a notification that cannot be delivered is logged and dropped.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/hazyhaar/fundwatch/config"
	"github.com/hazyhaar/fundwatch/notify"
	"github.com/hazyhaar/fundwatch/renderer"
	"github.com/hazyhaar/fundwatch/runlog"
	"github.com/hazyhaar/fundwatch/scrape"
	"github.com/hazyhaar/fundwatch/store"
)

// Pipeline owns one run's collaborators. History may be nil when run history
// is disabled.
type Pipeline struct {
	cfg      *config.Config
	factory  renderer.Factory
	notifier notify.Notifier
	history  *runlog.DB
	logger   *slog.Logger
	now      func() time.Time
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithClock overrides the pipeline clock. Used in tests.
func WithClock(now func() time.Time) Option {
	return func(p *Pipeline) { p.now = now }
}

// New creates a Pipeline.
func New(cfg *config.Config, factory renderer.Factory, notifier notify.Notifier,
	history *runlog.DB, logger *slog.Logger, opts ...Option) *Pipeline {
	if logger == nil {
		logger = slog.Default()
	}
	p := &Pipeline{
		cfg:      cfg,
		factory:  factory,
		notifier: notifier,
		history:  history,
		logger:   logger,
		now:      time.Now,
	}
	for _, o := range opts {
		o(p)
	}
	return p
}

// Summary is what one run amounted to. The CLI maps it to an exit code.
type Summary struct {
	Targets   int
	Succeeded int
	Failed    int
	Appended  int
	Pruned    int
	Fatal     bool
}

// Run executes one extraction run. The returned error is non-nil only for
// fatal conditions; per-fund failures are reported through the Summary.
func (p *Pipeline) Run(ctx context.Context) (sum *Summary, err error) {
	started := p.now()

	// Unexpected failures anywhere below are persistence-failure-equivalent:
	// caught once here, logged, escalated.
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("pipeline: unexpected failure: %v", r)
			sum = &Summary{Fatal: true}
			p.logger.Error("pipeline: run aborted", "error", err)
			p.send(ctx, scrape.Fatal("the run", err))
			p.recordFatal(ctx, started, err)
		}
	}()

	st, err := store.Open(p.cfg.Files.OutputCSV, p.logger)
	if err != nil {
		return p.abort(ctx, started, "loading the price store", err)
	}

	runner := scrape.NewRunner(p.factory, p.cfg.Browser, p.logger, scrape.WithClock(p.now))
	result, err := runner.Run(ctx, scrape.Targets(p.cfg.Funds))
	if err != nil {
		return p.abort(ctx, started, "starting the browser session", err)
	}

	sum = &Summary{
		Targets:   len(result.Outcomes),
		Succeeded: result.Succeeded(),
		Failed:    result.Failed(),
	}

	sum.Appended = st.Append(result.Records())
	sum.Pruned = st.Prune(p.cfg.Files.RetentionDays, p.now())
	if err := st.Flush(); err != nil {
		p.recordRun(ctx, started, result, true, err.Error())
		return p.abortKeepSummary(ctx, sum, "writing the price store", err)
	}

	if n := scrape.Escalate(result); n != nil {
		p.send(ctx, n)
	}

	p.finishHistory(ctx, started, result)

	p.logger.Info("pipeline: run finished",
		"targets", sum.Targets, "succeeded", sum.Succeeded, "failed", sum.Failed,
		"appended", sum.Appended, "pruned", sum.Pruned)
	return sum, nil
}

// abort handles a fatal condition before any outcomes exist.
func (p *Pipeline) abort(ctx context.Context, started time.Time, stage string, err error) (*Summary, error) {
	p.logger.Error("pipeline: run aborted", "stage", stage, "error", err)
	p.send(ctx, scrape.Fatal(stage, err))
	p.recordFatal(ctx, started, err)
	return &Summary{Fatal: true}, fmt.Errorf("pipeline: %s: %w", stage, err)
}

// abortKeepSummary handles a fatal condition after extraction produced a
// result worth reporting.
func (p *Pipeline) abortKeepSummary(ctx context.Context, sum *Summary, stage string, err error) (*Summary, error) {
	p.logger.Error("pipeline: run aborted", "stage", stage, "error", err)
	p.send(ctx, scrape.Fatal(stage, err))
	sum.Fatal = true
	return sum, fmt.Errorf("pipeline: %s: %w", stage, err)
}

// send delivers an escalation, honouring the email enable flag and subject
// prefix. Delivery failures are logged and go no further.
func (p *Pipeline) send(ctx context.Context, n *scrape.Notification) {
	if !p.cfg.Email.Enabled {
		p.logger.Info("pipeline: escalation suppressed, email disabled", "subject", n.Subject)
		return
	}
	subject := n.Subject
	if prefix := p.cfg.Email.SubjectPrefix; prefix != "" {
		subject = prefix + " " + subject
	}
	if err := p.notifier.Notify(ctx, subject, n.Body); err != nil {
		p.logger.Error("pipeline: notification delivery failed", "subject", subject, "error", err)
	}
}

// finishHistory records the run and, when a clean run follows a failed one,
// sends the all-clear.
func (p *Pipeline) finishHistory(ctx context.Context, started time.Time, result *scrape.RunResult) {
	if p.history == nil {
		return
	}

	prev, err := p.history.LastRun(ctx)
	if err != nil {
		p.logger.Warn("pipeline: reading last run failed", "error", err)
	}

	p.recordRun(ctx, started, result, false, "")

	if err := p.history.Cleanup(ctx, p.cfg.Files.RetentionDays); err != nil {
		p.logger.Warn("pipeline: history cleanup failed", "error", err)
	}

	if result.Failed() == 0 && prev != nil && !prev.Clean() {
		p.logger.Info("pipeline: run succeeded after prior failure")
		p.send(ctx, scrape.Recovery())
	}
}

func (p *Pipeline) recordRun(ctx context.Context, started time.Time, result *scrape.RunResult, fatal bool, fatalReason string) {
	if p.history == nil {
		return
	}
	run := runlog.Run{
		StartedAt:   started,
		FinishedAt:  p.now(),
		Targets:     len(result.Outcomes),
		Succeeded:   result.Succeeded(),
		Failed:      result.Failed(),
		Fatal:       fatal,
		FatalReason: fatalReason,
	}
	if _, err := p.history.RecordRun(ctx, run, result.Outcomes); err != nil {
		p.logger.Warn("pipeline: recording run failed", "error", err)
	}
}

func (p *Pipeline) recordFatal(ctx context.Context, started time.Time, cause error) {
	if p.history == nil {
		return
	}
	run := runlog.Run{
		StartedAt:   started,
		FinishedAt:  p.now(),
		Fatal:       true,
		FatalReason: cause.Error(),
	}
	if _, err := p.history.RecordRun(ctx, run, nil); err != nil {
		p.logger.Warn("pipeline: recording run failed", "error", err)
	}
}
