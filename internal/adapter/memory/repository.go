// Package memory provides an in-process record store implementing the
// violation selector and explanation store contracts. It is used for local
// runs without a database and as the store double in tests.
package memory

import (
	"context"
	"slices"
	"sync"

	"github.com/couchcryptid/water-violation-explainer/internal/domain"
)

type violationRow struct {
	violation   domain.ViolationContext
	healthBased bool
}

// Repository holds violations and explanation rows in memory.
type Repository struct {
	supersede bool

	mu           sync.RWMutex
	violations   []violationRow
	explanations []domain.Explanation
	selectErr    error
	saveErr      error
}

// New creates an empty Repository. With supersede set, saving an explanation
// marks earlier current rows for the same key as no longer current.
func New(supersede bool) *Repository {
	return &Repository{supersede: supersede}
}

// AddViolation registers a source violation row.
func (r *Repository) AddViolation(v domain.ViolationContext, healthBased bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.violations = append(r.violations, violationRow{violation: v, healthBased: healthBased})
}

// FailSelect makes subsequent selections return err. Pass nil to clear.
func (r *Repository) FailSelect(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.selectErr = err
}

// FailSave makes subsequent saves return err. Pass nil to clear.
func (r *Repository) FailSave(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.saveErr = err
}

// SelectViolations returns health-based violations in the requested status
// set, skipping those with a current explanation unless regenerating. The
// limit applies after ordering.
func (r *Repository) SelectViolations(ctx context.Context, opts domain.SelectOptions) ([]domain.ViolationContext, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.selectErr != nil {
		return nil, r.selectErr
	}

	statuses := opts.Statuses()
	out := make([]domain.ViolationContext, 0, len(r.violations))
	for _, row := range r.violations {
		v := row.violation
		if !row.healthBased || !slices.Contains(statuses, v.Status) {
			continue
		}
		if !opts.Regenerate && r.hasCurrentLocked(v.SubmissionYearQuarter, v.ViolationID) {
			continue
		}
		out = append(out, v)
	}

	domain.SortForExplanation(out)
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// SaveExplanation appends e as the current row for its key.
func (r *Repository) SaveExplanation(ctx context.Context, e domain.Explanation) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.saveErr != nil {
		return r.saveErr
	}

	if r.supersede {
		for i := range r.explanations {
			if r.explanations[i].Key == e.Key {
				r.explanations[i].IsCurrent = false
			}
		}
	}
	e.IsCurrent = true
	r.explanations = append(r.explanations, e)
	return nil
}

// Explanations returns a copy of every stored explanation row in insert order.
func (r *Repository) Explanations() []domain.Explanation {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.explanations)
}

// Current returns the current explanation rows for key.
func (r *Repository) Current(key domain.Key) []domain.Explanation {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []domain.Explanation
	for _, e := range r.explanations {
		if e.Key == key && e.IsCurrent {
			out = append(out, e)
		}
	}
	return out
}

// The existence check matches on period and violation id only, as the
// record store's query does.
func (r *Repository) hasCurrentLocked(period, violationID string) bool {
	for _, e := range r.explanations {
		if e.IsCurrent && e.SubmissionYearQuarter == period && e.ViolationID == violationID {
			return true
		}
	}
	return false
}
