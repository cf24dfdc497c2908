package domain

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Status is the SDWIS violation lifecycle status.
type Status string

const (
	StatusUnaddressed Status = "Unaddressed"
	StatusAddressed   Status = "Addressed"
	StatusResolved    Status = "Resolved"
	StatusArchived    Status = "Archived"
)

// CurrentStatuses are selected by default.
var CurrentStatuses = []Status{StatusUnaddressed, StatusAddressed}

// AllStatuses are selected when historical violations are included.
var AllStatuses = []Status{StatusUnaddressed, StatusAddressed, StatusResolved, StatusArchived}

// IsCurrent reports whether the violation is still open.
func (s Status) IsCurrent() bool {
	return s == StatusUnaddressed || s == StatusAddressed
}

// IsHistorical reports whether the violation has been returned to compliance.
func (s Status) IsHistorical() bool {
	return s == StatusResolved || s == StatusArchived
}

// Key identifies one source violation row.
type Key struct {
	SubmissionYearQuarter string
	ViolationID           string
	PWSID                 string
}

func (k Key) String() string {
	return fmt.Sprintf("%s/%s/%s", k.PWSID, k.SubmissionYearQuarter, k.ViolationID)
}

// dateLayout is the ISO date format used for non-compliance period dates.
const dateLayout = "2006-01-02"

// ViolationContext is the joined view of a violation, its water system,
// reference-code descriptions and served geography.
type ViolationContext struct {
	SubmissionYearQuarter string
	ViolationID           string
	PWSID                 string
	PWSName               string
	PopulationServed      int
	IsSchoolOrDaycare     bool

	ContaminantCode      string
	ContaminantName      string
	ViolationCode        string
	ViolationDescription string

	Measure       *float64
	UnitOfMeasure string
	FederalMCL    string
	StateMCL      *float64

	Status             Status
	NonComplBeginDate  string // YYYY-MM-DD
	NonComplEndDate    string // YYYY-MM-DD, empty while open
	PublicNotification *int   // tier 1-3
	CountyServed       string
	CityServed         string
}

// Key returns the identity of the source violation row.
func (v ViolationContext) Key() Key {
	return Key{
		SubmissionYearQuarter: v.SubmissionYearQuarter,
		ViolationID:           v.ViolationID,
		PWSID:                 v.PWSID,
	}
}

// BeginDate parses the non-compliance begin date.
func (v ViolationContext) BeginDate() (time.Time, bool) {
	return parseDate(v.NonComplBeginDate)
}

// FederalMCLValue parses the federal MCL. Non-numeric limits such as "TT"
// (treatment technique) report false.
func (v ViolationContext) FederalMCLValue() (float64, bool) {
	s := strings.TrimSpace(v.FederalMCL)
	if s == "" {
		return 0, false
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

func parseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
