// Package domain models EPA Safe Drinking Water Information System (SDWIS)
// violation data and the rules that turn a violation into a resident-facing
// explanation.
//
// # Data Source
//
// Violation, water-system, reference-code and geographic-area rows come from
// the quarterly SDWIS state extracts, bulk-loaded into PostgreSQL by an
// upstream loader. This package never reads the extracts directly; it sees one
// joined [ViolationContext] per violation row.
//
// # SDWIS Conventions
//
// Violation identity:
//
//	(submission_year_quarter, violation_id, pwsid), e.g. ("2024Q4", "4412", "GA0670000").
//	The same violation_id can reappear in later submission periods.
//
// Lifecycle status (violation_status):
//
//	Unaddressed  no enforcement action yet
//	Addressed    enforcement action taken, still out of compliance
//	Resolved     returned to compliance
//	Archived     resolved more than five years ago
//	Unaddressed and Addressed are "current"; Resolved and Archived are "historical".
//
// Dates:
//
//	non_compl_per_begin_date / non_compl_per_end_date are ISO dates (YYYY-MM-DD).
//	Unparsable or missing dates are treated as unknown, never as errors.
//
// Limits:
//
//	federal_mcl is free text in the extract ("0.010", "TT", ""); only values that
//	parse as numbers take part in exceedance scoring.
//
// Public notification tier:
//
//	1 = within 24 hours (acute), 2 = within 30 days, 3 = annual report.
//
// # Severity Classification
//
// The score starts at 5 and adds fixed contributions for contaminant class,
// status, population served, school/daycare service, notification tier and MCL
// exceedance, clamped to [1,10]. See [Score]. The four-level risk scale is
// derived from the score alone:
//
//	score >= 8 CRITICAL | >= 6 HIGH | >= 4 MEDIUM | else LOW
//
// # Explanations
//
// An explanation has six text fields produced by a text-generation service
// ([ParseGeneratedFields]) or by fixed templates ([FallbackFields]). The
// severity score and risk level are always computed here and attached
// afterwards; whatever the service says about them is ignored.
package domain
