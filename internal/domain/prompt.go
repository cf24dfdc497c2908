package domain

import (
	"strconv"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// SystemInstruction is sent as the system message with every generation request.
const SystemInstruction = "You are a helpful public health communication expert."

const notSpecified = "Not specified"

var numberPrinter = message.NewPrinter(language.English)

// BuildPrompt renders the generation request for one violation. state names
// the state served by the record store (e.g. "Georgia").
func BuildPrompt(v ViolationContext, a Assessment, state string) string {
	var b strings.Builder

	b.WriteString("You are a public health communication expert helping residents understand water quality violations.\n")
	b.WriteString("Create a clear, accessible explanation of this drinking water violation for public consumption.\n\n")

	b.WriteString("Water System: " + v.PWSName + " (PWSID: " + v.PWSID + ")\n")
	b.WriteString("Location: " + formatLocation(v.CityServed, v.CountyServed, state) + "\n")
	b.WriteString("Population Served: " + numberPrinter.Sprintf("%d", v.PopulationServed) + "\n")
	b.WriteString("School/Daycare System: " + yesNo(v.IsSchoolOrDaycare) + "\n\n")

	b.WriteString("Violation Details:\n")
	b.WriteString("- Contaminant: " + v.ContaminantName + " (Code: " + v.ContaminantCode + ")\n")
	b.WriteString("- Violation Type: " + v.ViolationDescription + "\n")
	b.WriteString("- Measured Level: " + formatMeasure(v.Measure, v.UnitOfMeasure) + "\n")
	b.WriteString("- Federal Limit (MCL): " + orNotSpecified(v.FederalMCL) + "\n")
	b.WriteString("- Status: " + string(v.Status) + " " + statusFraming(a.Historical) + "\n")
	b.WriteString("- Duration: " + strconv.Itoa(a.DaysSince) + " days since violation began\n")
	b.WriteString("- Public Notification Tier: " + formatTier(v.PublicNotification) + "\n\n")

	b.WriteString("Health Information:\n")
	b.WriteString("- Typical Health Effects: " + a.Health.HealthEffects + "\n")
	b.WriteString("- Most Vulnerable Groups: " + a.Health.VulnerableGroups + "\n")
	b.WriteString("- Exposure Type: " + a.Health.ExposureDuration + "\n\n")

	b.WriteString(`Please provide a response in JSON format with these exact fields:

{
    "explanation_text": "A 2-3 sentence clear explanation of what happened and why it matters",
    "health_impact": "Specific health effects this contaminant can cause, focusing on the most relevant risks",
    "recommended_actions": "Practical steps residents can take (e.g., filters, bottled water, boiling)",
    "timeline_context": "How long this has been an issue and what to expect for resolution",
    "vulnerable_groups": "Who is most at risk (infants, pregnant women, elderly, etc.)",
    "contaminant_explanation": "What this contaminant is and how it gets into water in simple terms"
}

Guidelines:
- Use plain English, avoid technical jargon
- Be factual but not alarmist
- Focus on actionable information
- Keep each field concise but informative
- Mention specific risk levels when appropriate
`)
	if a.Historical {
		b.WriteString("- IMPORTANT: This is a PAST violation that has been resolved. Make sure to clarify this in your explanation and recommended actions.\n")
	} else {
		b.WriteString("- IMPORTANT: This is a CURRENT active violation requiring immediate attention.\n")
	}
	return b.String()
}

func statusFraming(historical bool) string {
	if historical {
		return "(PAST VIOLATION - Has been resolved)"
	}
	return "(CURRENT VIOLATION)"
}

func formatLocation(city, county, state string) string {
	parts := make([]string, 0, 3)
	if city != "" {
		parts = append(parts, city)
	}
	if county != "" {
		parts = append(parts, county+" County")
	}
	if state != "" {
		parts = append(parts, state)
	}
	if len(parts) == 0 {
		return notSpecified
	}
	return strings.Join(parts, ", ")
}

func formatMeasure(measure *float64, unit string) string {
	if measure == nil {
		return "Not reported"
	}
	s := strconv.FormatFloat(*measure, 'f', -1, 64)
	if unit != "" {
		s += " " + unit
	}
	return s
}

func formatTier(tier *int) string {
	if tier == nil {
		return notSpecified
	}
	return strconv.Itoa(*tier)
}

func orNotSpecified(s string) string {
	if strings.TrimSpace(s) == "" {
		return notSpecified
	}
	return s
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
