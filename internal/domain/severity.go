package domain

// RiskLevel is the four-level health risk scale shown to residents.
type RiskLevel string

const (
	RiskLow      RiskLevel = "LOW"
	RiskMedium   RiskLevel = "MEDIUM"
	RiskHigh     RiskLevel = "HIGH"
	RiskCritical RiskLevel = "CRITICAL"
)

// Rank orders risk levels: LOW=1 < MEDIUM=2 < HIGH=3 < CRITICAL=4. Unknown levels rank 0.
func (r RiskLevel) Rank() int {
	switch r {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

const (
	baseScore = 5
	minScore  = 1
	maxScore  = 10
)

// highRiskContaminants: arsenic, atrazine, aldicarb, carbofuran.
var highRiskContaminants = map[string]bool{
	"1005": true,
	"2050": true,
	"2047": true,
	"2046": true,
}

// mediumRiskContaminants: zinc, calcium, total dissolved solids.
var mediumRiskContaminants = map[string]bool{
	"1095": true,
	"1919": true,
	"1930": true,
}

// Score computes the 1-10 severity of a violation. Contributions are applied
// in a fixed order starting from a base of 5 and the total is clamped.
// Absent optional fields contribute nothing.
func Score(v ViolationContext) int {
	score := baseScore
	score += contaminantWeight(v.ContaminantCode)
	score += statusWeight(v.Status)
	score += populationWeight(v.PopulationServed)
	if v.IsSchoolOrDaycare {
		score += 2
	}
	score += tierWeight(v.PublicNotification)
	score += exceedanceWeight(v)
	return clamp(score, minScore, maxScore)
}

func contaminantWeight(code string) int {
	switch {
	case highRiskContaminants[code]:
		return 3
	case mediumRiskContaminants[code]:
		return 1
	default:
		return 0
	}
}

func statusWeight(s Status) int {
	switch s {
	case StatusUnaddressed:
		return 2
	case StatusAddressed:
		return 1
	case StatusResolved:
		return -1
	case StatusArchived:
		return -2
	default:
		return 0
	}
}

func populationWeight(population int) int {
	switch {
	case population > 10000:
		return 2
	case population > 1000:
		return 1
	default:
		return 0
	}
}

func tierWeight(tier *int) int {
	if tier == nil {
		return 0
	}
	switch *tier {
	case 1:
		return 3
	case 2:
		return 1
	default:
		return 0
	}
}

// exceedanceWeight compares the measured value against the federal MCL.
// A limit that does not parse as a positive number contributes nothing.
func exceedanceWeight(v ViolationContext) int {
	if v.Measure == nil {
		return 0
	}
	limit, ok := v.FederalMCLValue()
	if !ok || limit <= 0 {
		return 0
	}
	switch {
	case *v.Measure > limit*2:
		return 2
	case *v.Measure > limit*1.5:
		return 1
	default:
		return 0
	}
}

// ClassifyRisk maps a severity score to a risk level:
//   - >= 8 CRITICAL
//   - >= 6 HIGH
//   - >= 4 MEDIUM
//   - otherwise LOW
func ClassifyRisk(score int) RiskLevel {
	switch {
	case score >= 8:
		return RiskCritical
	case score >= 6:
		return RiskHigh
	case score >= 4:
		return RiskMedium
	default:
		return RiskLow
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
