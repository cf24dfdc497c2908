package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync/atomic"
	"time"

	"github.com/couchcryptid/water-violation-explainer/internal/domain"
	"github.com/couchcryptid/water-violation-explainer/internal/observability"
	"github.com/google/uuid"
)

// Selector returns the violations due for explanation, in processing order.
type Selector interface {
	SelectViolations(ctx context.Context, opts domain.SelectOptions) ([]domain.ViolationContext, error)
}

// Composer builds an explanation for one violation. It never fails.
type Composer interface {
	Compose(ctx context.Context, v domain.ViolationContext) domain.Explanation
}

// Store persists one composed explanation.
type Store interface {
	SaveExplanation(ctx context.Context, e domain.Explanation) error
}

// Notifier announces persisted explanations to downstream consumers.
type Notifier interface {
	Notify(ctx context.Context, events []domain.ExplanationEvent) error
}

// Summary tallies the outcome of one generation cycle.
type Summary struct {
	RunID       string
	Selected    int
	Succeeded   int
	Failed      int
	Fallbacks   int
	Interrupted bool
}

func (s Summary) String() string {
	return fmt.Sprintf("Completed: %d successful, %d errors", s.Succeeded, s.Failed)
}

// CompletedRun is the summary of a finished cycle and when it finished.
type CompletedRun struct {
	Summary
	FinishedAt time.Time
}

const (
	initialBackoff = 200 * time.Millisecond
	maxBackoff     = 5 * time.Second

	// publishTimeout bounds event publishing once the cycle's context is gone.
	publishTimeout = 10 * time.Second
)

// Pipeline drives Selector, Composer and Store over the selected violations,
// one at a time and in selector order.
type Pipeline struct {
	selector Selector
	composer Composer
	store    Store
	notifier Notifier
	logger   *slog.Logger
	metrics  *observability.Metrics
	last     atomic.Pointer[CompletedRun]
}

// New creates a Pipeline with the given stages and observability. Pass a nil
// notifier to disable event publishing.
func New(s Selector, c Composer, st Store, n Notifier, logger *slog.Logger, metrics *observability.Metrics) *Pipeline {
	return &Pipeline{
		selector: s,
		composer: c,
		store:    st,
		notifier: n,
		logger:   logger,
		metrics:  metrics,
	}
}

// CheckReadiness returns nil once a generation cycle has completed,
// or an error describing why the service is not yet ready.
func (p *Pipeline) CheckReadiness(_ context.Context) error {
	if p.last.Load() == nil {
		return errors.New("no generation cycle has completed yet")
	}
	return nil
}

// LastRun returns the most recently completed cycle. Cycles that failed
// selection are not recorded.
func (p *Pipeline) LastRun() (CompletedRun, bool) {
	run := p.last.Load()
	if run == nil {
		return CompletedRun{}, false
	}
	return *run, true
}

// RunOnce selects, composes and stores explanations for one cycle. Only a
// selection failure is returned as an error; generation and persistence
// failures are logged and counted in the summary. Cancelling ctx stops the
// cycle before the next violation is started; a violation whose composition
// was cut short by the cancellation is dropped, not counted as a failure.
// Events for explanations saved before the cancellation are still published.
func (p *Pipeline) RunOnce(ctx context.Context, opts domain.SelectOptions) (Summary, error) {
	start := time.Now()
	summary := Summary{RunID: uuid.NewString()}
	logger := p.logger.With("run_id", summary.RunID)

	p.metrics.PipelineRunning.Set(1)
	defer p.metrics.PipelineRunning.Set(0)

	violations, err := p.selector.SelectViolations(ctx, opts)
	if err != nil {
		p.metrics.RunFailures.Inc()
		return summary, fmt.Errorf("select violations: %w", err)
	}
	summary.Selected = len(violations)
	p.metrics.ViolationsSelected.Add(float64(len(violations)))

	if len(violations) == 0 {
		logger.Info("no violations found that need explanations")
		p.finish(logger, summary, start)
		return summary, nil
	}
	logSelection(logger, violations)

	events := make([]domain.ExplanationEvent, 0, len(violations))
	for i, v := range violations {
		if ctx.Err() != nil {
			summary.Interrupted = true
			logger.Warn("run interrupted, not starting remaining violations",
				"remaining", len(violations)-i, "reason", ctx.Err())
			break
		}

		logger.Info("processing violation",
			"progress", fmt.Sprintf("%d/%d", i+1, len(violations)),
			"pws_name", v.PWSName,
			"contaminant", v.ContaminantName,
			"begin_date", orUnknownDate(v.NonComplBeginDate),
			"status", v.Status,
		)

		e := p.composer.Compose(ctx, v)
		if ctx.Err() != nil {
			summary.Interrupted = true
			logger.Warn("run interrupted, dropping in-flight violation",
				"violation_id", v.ViolationID,
				"pwsid", v.PWSID,
				"period", v.SubmissionYearQuarter,
				"remaining", len(violations)-i-1,
				"reason", ctx.Err(),
			)
			break
		}
		if e.Source == domain.SourceFallback {
			summary.Fallbacks++
		}

		if err := p.store.SaveExplanation(ctx, e); err != nil {
			summary.Failed++
			p.metrics.SaveErrors.Inc()
			logger.Error("save explanation failed",
				"error", err,
				"violation_id", v.ViolationID,
				"pwsid", v.PWSID,
				"period", v.SubmissionYearQuarter,
			)
			continue
		}

		summary.Succeeded++
		p.metrics.ExplanationsSaved.Inc()
		logger.Info("generated explanation", "violation_id", v.ViolationID, "source", e.Source)
		events = append(events, domain.NewExplanationEvent(summary.RunID, v, e))
	}

	p.publish(ctx, logger, events)
	p.finish(logger, summary, start)
	return summary, nil
}

// Run repeats RunOnce every interval until the context is cancelled.
// Selection failures are retried with exponential backoff.
func (p *Pipeline) Run(ctx context.Context, interval time.Duration, opts domain.SelectOptions) error {
	p.logger.Info("pipeline started", "interval", interval)

	backoff := initialBackoff
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		default:
		}

		wait := interval
		if _, err := p.RunOnce(ctx, opts); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			p.logger.Error("generation cycle failed", "error", err, "retry_in", backoff)
			wait = backoff
			backoff = nextBackoff(backoff, maxBackoff)
		} else {
			backoff = initialBackoff
		}

		if !sleepWithContext(ctx, wait) {
			p.logger.Info("pipeline stopping", "reason", ctx.Err())
			return nil
		}
	}
}

func (p *Pipeline) publish(ctx context.Context, logger *slog.Logger, events []domain.ExplanationEvent) {
	if p.notifier == nil || len(events) == 0 {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()
	if err := p.notifier.Notify(ctx, events); err != nil {
		logger.Warn("publish explanation events failed", "error", err, "count", len(events))
		return
	}
	p.metrics.EventsPublished.Add(float64(len(events)))
}

func (p *Pipeline) finish(logger *slog.Logger, summary Summary, start time.Time) {
	p.metrics.RunDuration.Observe(time.Since(start).Seconds())
	finished := domain.Now().UTC()
	p.metrics.LastRunSuccess.Set(float64(finished.Unix()))
	p.last.Store(&CompletedRun{Summary: summary, FinishedAt: finished})

	logger.Info(summary.String(),
		"selected", summary.Selected,
		"successful", summary.Succeeded,
		"errors", summary.Failed,
		"fallbacks", summary.Fallbacks,
		"interrupted", summary.Interrupted,
	)
}

// logSelection reports the count and begin-date range of the selected set.
func logSelection(logger *slog.Logger, violations []domain.ViolationContext) {
	dates := make([]string, 0, len(violations))
	for _, v := range violations {
		if v.NonComplBeginDate != "" {
			dates = append(dates, v.NonComplBeginDate)
		}
	}
	if len(dates) == 0 {
		logger.Info("found violations to process", "count", len(violations))
		return
	}
	// ISO dates order lexically.
	logger.Info("found violations to process",
		"count", len(violations),
		"latest", slices.Max(dates),
		"earliest", slices.Min(dates),
	)
}

func orUnknownDate(s string) string {
	if s == "" {
		return "Unknown date"
	}
	return s
}

func nextBackoff(current, maxBackoff time.Duration) time.Duration {
	next := current * 2
	if next > maxBackoff {
		return maxBackoff
	}
	return next
}

func sleepWithContext(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return true
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
