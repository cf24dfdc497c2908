package domain

import (
	"cmp"
	"slices"
	"time"
)

// oldestDate stands in for a missing begin date when ordering.
var oldestDate = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

// SelectOptions controls which violations are due for explanation.
type SelectOptions struct {
	Limit             int // 0 means no limit
	Regenerate        bool
	IncludeHistorical bool
}

// Statuses returns the status set selected by these options.
func (o SelectOptions) Statuses() []Status {
	if o.IncludeHistorical {
		return AllStatuses
	}
	return CurrentStatuses
}

// statusRank is the final tie-breaker:
// Unaddressed < Addressed < Resolved < Archived < anything else.
func statusRank(s Status) int {
	switch s {
	case StatusUnaddressed:
		return 1
	case StatusAddressed:
		return 2
	case StatusResolved:
		return 3
	case StatusArchived:
		return 4
	default:
		return 5
	}
}

func statusGroup(s Status) int {
	if s.IsCurrent() {
		return 1
	}
	return 2
}

// CompareForExplanation orders violations for processing: current before
// historical, newest begin date first (missing dates count as 1900-01-01),
// larger population first, then status rank. Remaining ties fall back to the
// row key so the order is total.
func CompareForExplanation(a, b ViolationContext) int {
	if c := cmp.Compare(statusGroup(a.Status), statusGroup(b.Status)); c != 0 {
		return c
	}
	if c := beginOrOldest(b).Compare(beginOrOldest(a)); c != 0 {
		return c
	}
	if c := cmp.Compare(b.PopulationServed, a.PopulationServed); c != 0 {
		return c
	}
	if c := cmp.Compare(statusRank(a.Status), statusRank(b.Status)); c != 0 {
		return c
	}
	return cmp.Or(
		cmp.Compare(a.SubmissionYearQuarter, b.SubmissionYearQuarter),
		cmp.Compare(a.PWSID, b.PWSID),
		cmp.Compare(a.ViolationID, b.ViolationID),
	)
}

// SortForExplanation sorts violations in place by CompareForExplanation.
func SortForExplanation(vs []ViolationContext) {
	slices.SortStableFunc(vs, CompareForExplanation)
}

func beginOrOldest(v ViolationContext) time.Time {
	if t, ok := v.BeginDate(); ok {
		return t
	}
	return oldestDate
}
