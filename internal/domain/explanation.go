package domain

import (
	"math"
	"time"
)

// Source records which path produced an explanation's text.
type Source string

const (
	SourceModel    Source = "model"
	SourceFallback Source = "fallback"
)

// ExplanationFields are the six resident-facing text fields.
type ExplanationFields struct {
	ExplanationText        string `json:"explanation_text"`
	HealthImpact           string `json:"health_impact"`
	RecommendedActions     string `json:"recommended_actions"`
	TimelineContext        string `json:"timeline_context"`
	VulnerableGroups       string `json:"vulnerable_groups"`
	ContaminantExplanation string `json:"contaminant_explanation"`
}

// Explanation is a composed explanation ready to persist.
type Explanation struct {
	Key
	ExplanationFields

	SeverityScore int
	RiskLevel     RiskLevel
	ModelVersion  string
	Source        Source
	IsCurrent     bool
	CreatedAt     time.Time
}

// Assessment holds the values derived from a violation before composing text.
type Assessment struct {
	Score      int
	Risk       RiskLevel
	Health     HealthInfo
	DaysSince  int
	Historical bool
}

// Assess scores and classifies a violation and gathers its health text.
// DaysSince is 0 when the begin date is missing or unparsable.
func Assess(v ViolationContext, catalog *Catalog) Assessment {
	score := Score(v)
	return Assessment{
		Score:      score,
		Risk:       ClassifyRisk(score),
		Health:     catalog.Lookup(v.ContaminantCode),
		DaysSince:  daysSince(v, clock.Now()),
		Historical: v.Status.IsHistorical(),
	}
}

func daysSince(v ViolationContext, now time.Time) int {
	begin, ok := v.BeginDate()
	if !ok {
		return 0
	}
	return int(math.Floor(now.Sub(begin).Hours() / 24))
}
