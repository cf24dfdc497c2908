package domain

import "fmt"

// FallbackFields builds a templated explanation from the violation and its
// assessment alone. It is used whenever the generation service fails or its
// output cannot be parsed, and cannot fail itself.
func FallbackFields(v ViolationContext, a Assessment) ExplanationFields {
	name := v.ContaminantName
	if name == "" {
		name = "contaminant"
	}

	if a.Historical {
		return ExplanationFields{
			ExplanationText:        fmt.Sprintf("The %s level in your water system was previously detected and has been resolved. This provides transparency about your water system history.", name),
			HealthImpact:           a.Health.HealthEffects,
			RecommendedActions:     "This violation has been resolved, but you can review your water system's history for transparency.",
			TimelineContext:        fmt.Sprintf("This violation occurred %d days ago and has since been resolved.", a.DaysSince),
			VulnerableGroups:       a.Health.VulnerableGroups,
			ContaminantExplanation: fmt.Sprintf("%s is a contaminant that can affect drinking water quality and public health.", name),
		}
	}

	return ExplanationFields{
		ExplanationText:        fmt.Sprintf("The %s level in your water system exceeded federal safety standards. This violation requires attention to ensure safe drinking water.", name),
		HealthImpact:           a.Health.HealthEffects,
		RecommendedActions:     "Consider using bottled water or a certified water filter until this violation is resolved. Contact your water system for updates.",
		TimelineContext:        fmt.Sprintf("This violation has been ongoing for %d days. Resolution timeline depends on the specific remediation required.", a.DaysSince),
		VulnerableGroups:       a.Health.VulnerableGroups,
		ContaminantExplanation: fmt.Sprintf("%s is a contaminant that can affect drinking water quality and public health.", name),
	}
}
