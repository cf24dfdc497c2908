package domain

import "time"

// ExplanationEvent announces a persisted explanation to downstream consumers.
// Only metadata travels on the event; the text stays in the record store.
type ExplanationEvent struct {
	RunID                 string    `json:"run_id"`
	SubmissionYearQuarter string    `json:"submission_year_quarter"`
	ViolationID           string    `json:"violation_id"`
	PWSID                 string    `json:"pwsid"`
	ContaminantCode       string    `json:"contaminant_code"`
	Status                Status    `json:"violation_status"`
	SeverityScore         int       `json:"severity_score"`
	RiskLevel             RiskLevel `json:"health_risk_level"`
	Source                Source    `json:"source"`
	ModelVersion          string    `json:"model_version"`
	CreatedAt             time.Time `json:"created_at"`
}

// NewExplanationEvent builds the event for an explanation of v.
func NewExplanationEvent(runID string, v ViolationContext, e Explanation) ExplanationEvent {
	return ExplanationEvent{
		RunID:                 runID,
		SubmissionYearQuarter: e.SubmissionYearQuarter,
		ViolationID:           e.ViolationID,
		PWSID:                 e.PWSID,
		ContaminantCode:       v.ContaminantCode,
		Status:                v.Status,
		SeverityScore:         e.SeverityScore,
		RiskLevel:             e.RiskLevel,
		Source:                e.Source,
		ModelVersion:          e.ModelVersion,
		CreatedAt:             e.CreatedAt,
	}
}
