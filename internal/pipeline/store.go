package pipeline

import (
	"context"
	"log/slog"
	"sync"

	"github.com/couchcryptid/water-violation-explainer/internal/domain"
)

// DryRunStore stands in for the record store when no changes should be made.
// It logs each would-be write, keeps it for inspection, and reports success.
type DryRunStore struct {
	logger *slog.Logger

	mu     sync.Mutex
	writes []domain.Explanation
}

// NewDryRunStore creates a DryRunStore.
func NewDryRunStore(logger *slog.Logger) *DryRunStore {
	return &DryRunStore{logger: logger}
}

func (s *DryRunStore) SaveExplanation(_ context.Context, e domain.Explanation) error {
	s.mu.Lock()
	s.writes = append(s.writes, e)
	s.mu.Unlock()

	s.logger.Info("dry run: would save explanation",
		"violation_id", e.ViolationID,
		"pwsid", e.PWSID,
		"period", e.SubmissionYearQuarter,
		"severity_score", e.SeverityScore,
		"health_risk_level", e.RiskLevel,
		"source", e.Source,
		"model_version", e.ModelVersion,
	)
	return nil
}

// Writes returns the explanations that would have been saved.
func (s *DryRunStore) Writes() []domain.Explanation {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Explanation, len(s.writes))
	copy(out, s.writes)
	return out
}
