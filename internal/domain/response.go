package domain

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

var (
	// ErrUnparsableResponse means neither the raw text nor a ```json fenced
	// block decoded as a JSON object.
	ErrUnparsableResponse = errors.New("response is not a JSON object")

	// ErrMissingField means the JSON object lacked one of the six text fields.
	ErrMissingField = errors.New("response is missing a required field")
)

// jsonFencePattern matches the body of a ```json fenced block.
var jsonFencePattern = regexp.MustCompile("(?s)```json\\s*(.*?)```")

// generatedFields mirrors ExplanationFields with pointers so absent keys can
// be told apart from empty strings. Any severity or risk claims in the
// response are not decoded.
type generatedFields struct {
	ExplanationText        *string `json:"explanation_text"`
	HealthImpact           *string `json:"health_impact"`
	RecommendedActions     *string `json:"recommended_actions"`
	TimelineContext        *string `json:"timeline_context"`
	VulnerableGroups       *string `json:"vulnerable_groups"`
	ContaminantExplanation *string `json:"contaminant_explanation"`
}

// ParseGeneratedFields decodes the six explanation fields from service text.
// The whole text is tried first, then the first ```json fenced block.
func ParseGeneratedFields(raw string) (ExplanationFields, error) {
	raw = strings.TrimSpace(raw)

	fields, err := decodeFields(raw)
	if err == nil {
		return fields, nil
	}
	if !errors.Is(err, ErrUnparsableResponse) {
		return ExplanationFields{}, err
	}

	m := jsonFencePattern.FindStringSubmatch(raw)
	if len(m) != 2 {
		return ExplanationFields{}, ErrUnparsableResponse
	}
	return decodeFields(strings.TrimSpace(m[1]))
}

func decodeFields(s string) (ExplanationFields, error) {
	var g generatedFields
	if err := json.Unmarshal([]byte(s), &g); err != nil {
		return ExplanationFields{}, fmt.Errorf("%w: %v", ErrUnparsableResponse, err)
	}

	required := []struct {
		name  string
		value *string
	}{
		{"explanation_text", g.ExplanationText},
		{"health_impact", g.HealthImpact},
		{"recommended_actions", g.RecommendedActions},
		{"timeline_context", g.TimelineContext},
		{"vulnerable_groups", g.VulnerableGroups},
		{"contaminant_explanation", g.ContaminantExplanation},
	}
	for _, f := range required {
		if f.value == nil || strings.TrimSpace(*f.value) == "" {
			return ExplanationFields{}, fmt.Errorf("%w: %s", ErrMissingField, f.name)
		}
	}

	return ExplanationFields{
		ExplanationText:        *g.ExplanationText,
		HealthImpact:           *g.HealthImpact,
		RecommendedActions:     *g.RecommendedActions,
		TimelineContext:        *g.TimelineContext,
		VulnerableGroups:       *g.VulnerableGroups,
		ContaminantExplanation: *g.ContaminantExplanation,
	}, nil
}
