package pipeline_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/couchcryptid/water-violation-explainer/internal/adapter/memory"
	"github.com/couchcryptid/water-violation-explainer/internal/domain"
	"github.com/couchcryptid/water-violation-explainer/internal/observability"
	"github.com/couchcryptid/water-violation-explainer/internal/pipeline"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- mocks ---

type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.ExplanationEvent
	err    error
}

func (n *recordingNotifier) Notify(ctx context.Context, events []domain.ExplanationEvent) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return err
	}
	if n.err != nil {
		return n.err
	}
	n.events = append(n.events, events...)
	return nil
}

type countingSelector struct {
	calls atomic.Int64
	err   error
}

func (s *countingSelector) SelectViolations(_ context.Context, _ domain.SelectOptions) ([]domain.ViolationContext, error) {
	s.calls.Add(1)
	return nil, s.err
}

// cancellingComposer cancels the run after composing the first violation.
type cancellingComposer struct {
	inner  pipeline.Composer
	cancel context.CancelFunc
}

func (c *cancellingComposer) Compose(ctx context.Context, v domain.ViolationContext) domain.Explanation {
	e := c.inner.Compose(ctx, v)
	c.cancel()
	return e
}

// cancellingGenerator cancels the run while answering call number at.
type cancellingGenerator struct {
	at     int
	calls  int
	cancel context.CancelFunc
}

func (g *cancellingGenerator) Generate(ctx context.Context, _ string) (string, error) {
	g.calls++
	if g.calls == g.at {
		g.cancel()
		return "", ctx.Err()
	}
	return generatedJSON, nil
}

func seededRepository() *memory.Repository {
	repo := memory.New(true)
	repo.AddViolation(criticalViolation(), true)

	older := criticalViolation()
	older.ViolationID = "3301"
	older.NonComplBeginDate = "2023-06-15"
	older.PopulationServed = 2000
	repo.AddViolation(older, true)

	archived := criticalViolation()
	archived.ViolationID = "1207"
	archived.Status = domain.StatusArchived
	repo.AddViolation(archived, true)

	notHealthBased := criticalViolation()
	notHealthBased.ViolationID = "7777"
	repo.AddViolation(notHealthBased, false)
	return repo
}

func newPipeline(repo *memory.Repository, store pipeline.Store, gen pipeline.Generator, n pipeline.Notifier, logger *slog.Logger) (*pipeline.Pipeline, *observability.Metrics) {
	metrics := observability.NewMetricsForTesting()
	composer := pipeline.NewComposer(gen, domain.DefaultCatalog(), "Georgia", modelVersion, logger, metrics)
	if store == nil {
		store = repo
	}
	return pipeline.New(repo, composer, store, n, logger, metrics), metrics
}

// --- tests ---

func TestRunOnce_HappyPath(t *testing.T) {
	clock := freezeClock(t)
	repo := seededRepository()
	notifier := &recordingNotifier{}
	var logs bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&logs, nil))

	p, metrics := newPipeline(repo, nil, &stubGenerator{response: generatedJSON}, notifier, logger)
	require.Error(t, p.CheckReadiness(context.Background()))
	_, ok := p.LastRun()
	require.False(t, ok)

	summary, err := p.RunOnce(context.Background(), domain.SelectOptions{})
	require.NoError(t, err)

	last, ok := p.LastRun()
	require.True(t, ok)
	assert.Equal(t, summary, last.Summary)
	assert.Equal(t, clock.Now().UTC(), last.FinishedAt)

	assert.Equal(t, 2, summary.Selected)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Fallbacks)
	assert.NotEmpty(t, summary.RunID)
	assert.Equal(t, "Completed: 2 successful, 0 errors", summary.String())

	saved := repo.Explanations()
	require.Len(t, saved, 2)
	assert.Equal(t, "4412", saved[0].ViolationID)
	assert.Equal(t, "3301", saved[1].ViolationID)

	require.Len(t, notifier.events, 2)
	assert.Equal(t, summary.RunID, notifier.events[0].RunID)
	assert.Equal(t, "1005", notifier.events[0].ContaminantCode)

	assert.NoError(t, p.CheckReadiness(context.Background()))
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.ExplanationsSaved), 0)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.EventsPublished), 0)
	assert.Contains(t, logs.String(), "Completed: 2 successful, 0 errors")
	assert.Contains(t, logs.String(), "progress=1/2")
	assert.Contains(t, logs.String(), "latest=2024-01-01 earliest=2023-06-15")
}

func TestRunOnce_IdempotentWithoutRegenerate(t *testing.T) {
	freezeClock(t)
	repo := seededRepository()
	p, _ := newPipeline(repo, nil, &stubGenerator{response: generatedJSON}, nil, discardLogger())
	ctx := context.Background()

	first, err := p.RunOnce(ctx, domain.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, first.Succeeded)

	second, err := p.RunOnce(ctx, domain.SelectOptions{})
	require.NoError(t, err)
	assert.Zero(t, second.Selected)
	assert.Len(t, repo.Explanations(), 2)

	third, err := p.RunOnce(ctx, domain.SelectOptions{Regenerate: true})
	require.NoError(t, err)
	assert.Equal(t, 2, third.Succeeded)
	assert.Len(t, repo.Explanations(), 4)
	assert.Len(t, repo.Current(criticalViolation().Key()), 1)
}

func TestRunOnce_IncludeHistoricalAndLimit(t *testing.T) {
	freezeClock(t)
	repo := seededRepository()
	p, _ := newPipeline(repo, nil, nil, nil, discardLogger())

	summary, err := p.RunOnce(context.Background(), domain.SelectOptions{IncludeHistorical: true, Limit: 3})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Selected)
	assert.Equal(t, 3, summary.Fallbacks)

	saved := repo.Explanations()
	require.Len(t, saved, 3)
	assert.Equal(t, "1207", saved[2].ViolationID)
	assert.Contains(t, saved[2].ExplanationText, "has been resolved")
}

func TestRunOnce_FallbackOnPlainText(t *testing.T) {
	freezeClock(t)
	repo := memory.New(true)
	repo.AddViolation(criticalViolation(), true)
	p, _ := newPipeline(repo, nil, &stubGenerator{response: "The water is fine."}, nil, discardLogger())

	summary, err := p.RunOnce(context.Background(), domain.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Equal(t, 1, summary.Fallbacks)

	saved := repo.Explanations()
	require.Len(t, saved, 1)
	assert.Equal(t, domain.SourceFallback, saved[0].Source)
	assert.Equal(t, 10, saved[0].SeverityScore)
	assert.Equal(t, domain.RiskCritical, saved[0].RiskLevel)
	assert.Contains(t, saved[0].ExplanationText, "Arsenic")
}

func TestRunOnce_DryRun(t *testing.T) {
	freezeClock(t)
	repo := memory.New(true)
	repo.AddViolation(criticalViolation(), true)
	dryRun := pipeline.NewDryRunStore(discardLogger())
	p, _ := newPipeline(repo, dryRun, &stubGenerator{response: generatedJSON}, nil, discardLogger())

	summary, err := p.RunOnce(context.Background(), domain.SelectOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Succeeded)
	assert.Empty(t, repo.Explanations())
	require.Len(t, dryRun.Writes(), 1)
	assert.Equal(t, "4412", dryRun.Writes()[0].ViolationID)
}

func TestRunOnce_SelectionFailure(t *testing.T) {
	repo := seededRepository()
	repo.FailSelect(errors.New("connection refused"))
	gen := &stubGenerator{response: generatedJSON}
	p, metrics := newPipeline(repo, nil, gen, nil, discardLogger())

	_, err := p.RunOnce(context.Background(), domain.SelectOptions{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "select violations")
	assert.Empty(t, gen.prompts)
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.RunFailures), 0)
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestRunOnce_SaveFailureContinues(t *testing.T) {
	freezeClock(t)
	repo := seededRepository()
	repo.FailSave(errors.New("unique violation"))
	notifier := &recordingNotifier{}
	var logs bytes.Buffer
	p, metrics := newPipeline(repo, nil, &stubGenerator{response: generatedJSON}, notifier, slog.New(slog.NewTextHandler(&logs, nil)))

	summary, err := p.RunOnce(context.Background(), domain.SelectOptions{})
	require.NoError(t, err)

	assert.Zero(t, summary.Succeeded)
	assert.Equal(t, 2, summary.Failed)
	assert.Equal(t, "Completed: 0 successful, 2 errors", summary.String())
	assert.Empty(t, notifier.events)
	assert.InDelta(t, 2, testutil.ToFloat64(metrics.SaveErrors), 0)
	assert.Contains(t, logs.String(), "violation_id=4412")
	assert.Contains(t, logs.String(), "violation_id=3301")
}

func TestRunOnce_NotifyFailureDoesNotChangeTally(t *testing.T) {
	freezeClock(t)
	repo := seededRepository()
	p, metrics := newPipeline(repo, nil, nil, &recordingNotifier{err: errors.New("broker down")}, discardLogger())

	summary, err := p.RunOnce(context.Background(), domain.SelectOptions{})
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, testutil.ToFloat64(metrics.EventsPublished))
}

func TestRunOnce_CancellationDuringComposeDropsViolation(t *testing.T) {
	freezeClock(t)
	repo := seededRepository()
	metrics := observability.NewMetricsForTesting()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	composer := &cancellingComposer{
		inner:  pipeline.NewComposer(nil, domain.DefaultCatalog(), "Georgia", modelVersion, discardLogger(), metrics),
		cancel: cancel,
	}
	store := pipeline.NewDryRunStore(discardLogger())
	p := pipeline.New(repo, composer, store, nil, discardLogger(), metrics)

	summary, err := p.RunOnce(ctx, domain.SelectOptions{})
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 2, summary.Selected)
	assert.Zero(t, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Empty(t, store.Writes())
}

func TestRunOnce_CancellationDuringGenerateKeepsSavedWork(t *testing.T) {
	freezeClock(t)
	repo := seededRepository()
	notifier := &recordingNotifier{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	gen := &cancellingGenerator{at: 2, cancel: cancel}
	p, metrics := newPipeline(repo, nil, gen, notifier, discardLogger())

	summary, err := p.RunOnce(ctx, domain.SelectOptions{})
	require.NoError(t, err)
	assert.True(t, summary.Interrupted)
	assert.Equal(t, 2, summary.Selected)
	assert.Equal(t, 1, summary.Succeeded)
	assert.Zero(t, summary.Failed)
	assert.Zero(t, summary.Fallbacks)
	assert.Equal(t, "Completed: 1 successful, 0 errors", summary.String())

	saved := repo.Explanations()
	require.Len(t, saved, 1)
	assert.Equal(t, "4412", saved[0].ViolationID)

	require.Len(t, notifier.events, 1)
	assert.Equal(t, "4412", notifier.events[0].ViolationID)
	assert.Zero(t, testutil.ToFloat64(metrics.SaveErrors))
	assert.InDelta(t, 1, testutil.ToFloat64(metrics.EventsPublished), 0)
}

func TestRun_RepeatsUntilCancelled(t *testing.T) {
	sel := &countingSelector{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(sel, pipeline.NewComposer(nil, nil, "Georgia", modelVersion, discardLogger(), metrics),
		pipeline.NewDryRunStore(discardLogger()), nil, discardLogger(), metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx, time.Hour, domain.SelectOptions{}))
	assert.Equal(t, int64(1), sel.calls.Load())
	assert.NoError(t, p.CheckReadiness(context.Background()))
}

func TestRun_BacksOffOnSelectionFailure(t *testing.T) {
	sel := &countingSelector{err: errors.New("connection refused")}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(sel, pipeline.NewComposer(nil, nil, "Georgia", modelVersion, discardLogger(), metrics),
		pipeline.NewDryRunStore(discardLogger()), nil, discardLogger(), metrics)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	require.NoError(t, p.Run(ctx, time.Hour, domain.SelectOptions{}))
	// Attempts at 0ms and 200ms, then a 400ms wait outlives the context.
	assert.Equal(t, int64(2), sel.calls.Load())
	assert.Error(t, p.CheckReadiness(context.Background()))
}

func TestRun_CancelledContext(t *testing.T) {
	sel := &countingSelector{}
	metrics := observability.NewMetricsForTesting()
	p := pipeline.New(sel, pipeline.NewComposer(nil, nil, "Georgia", modelVersion, discardLogger(), metrics),
		pipeline.NewDryRunStore(discardLogger()), nil, discardLogger(), metrics)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	require.NoError(t, p.Run(ctx, time.Hour, domain.SelectOptions{}))
	assert.Zero(t, sel.calls.Load())
}
