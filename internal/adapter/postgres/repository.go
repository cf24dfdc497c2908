// Package postgres implements the violation selector and explanation store
// over a PostgreSQL record store.
package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/couchcryptid/water-violation-explainer/internal/domain"
	"github.com/lib/pq"
)

const defaultTxTimeout = 5 * time.Second

// Ordering mirrors domain.CompareForExplanation.
const selectViolationsQuery = `
SELECT
    v.submission_year_quarter,
    v.violation_id,
    v.pwsid,
    p.pws_name,
    COALESCE(p.population_served_count, 0) AS population_served,
    COALESCE(p.is_school_or_daycare_ind = 'Y', FALSE) AS is_school_or_daycare,
    v.contaminant_code,
    COALESCE(rc_cont.value_description, 'Unknown Contaminant') AS contaminant_name,
    v.violation_code,
    COALESCE(rc_viol.value_description, 'Unknown Violation') AS violation_description,
    v.viol_measure,
    v.unit_of_measure,
    v.federal_mcl,
    v.state_mcl,
    v.violation_status,
    v.non_compl_per_begin_date::text,
    v.non_compl_per_end_date::text,
    v.public_notification_tier,
    geo.county_served,
    geo.city_served
FROM violations_enforcement v
JOIN public_water_systems p ON v.pwsid = p.pwsid
LEFT JOIN reference_codes rc_cont ON rc_cont.value_type = 'CONTAMINANT_CODE' AND rc_cont.value_code = v.contaminant_code
LEFT JOIN reference_codes rc_viol ON rc_viol.value_type = 'VIOLATION_CODE' AND rc_viol.value_code = v.violation_code
LEFT JOIN geographic_areas geo ON v.pwsid = geo.pwsid AND geo.area_type_code = 'CN'
WHERE v.is_health_based_ind = 'Y'
  AND v.violation_status = ANY($1)
  AND ($2 OR NOT EXISTS (
      SELECT 1 FROM violation_ai_explanations ai
      WHERE ai.submission_year_quarter = v.submission_year_quarter
        AND ai.violation_id = v.violation_id
        AND ai.is_current = TRUE
  ))
ORDER BY
    CASE WHEN v.violation_status IN ('Unaddressed', 'Addressed') THEN 1 ELSE 2 END,
    COALESCE(v.non_compl_per_begin_date, '1900-01-01'::date) DESC,
    COALESCE(p.population_served_count, 0) DESC,
    CASE v.violation_status
        WHEN 'Unaddressed' THEN 1
        WHEN 'Addressed' THEN 2
        WHEN 'Resolved' THEN 3
        WHEN 'Archived' THEN 4
        ELSE 5
    END,
    v.submission_year_quarter,
    v.pwsid,
    v.violation_id
LIMIT $3
`

const supersedeQuery = `
UPDATE violation_ai_explanations
SET is_current = FALSE
WHERE submission_year_quarter = $1 AND violation_id = $2 AND pwsid = $3 AND is_current
`

const insertExplanationQuery = `
INSERT INTO violation_ai_explanations (
    submission_year_quarter, violation_id, pwsid, explanation_text, health_risk_level,
    health_impact, recommended_actions, timeline_context,
    severity_score, vulnerable_groups, contaminant_explanation,
    model_version, source, is_current, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, TRUE, $14)
`

// Repository reads violations and writes explanations through database/sql.
type Repository struct {
	db        *sql.DB
	supersede bool
	txTimeout time.Duration
}

// Open connects to the record store at dsn and verifies the connection.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// New creates a Repository. With supersede set, each save flips the prior
// current row for the same key to not current in the same transaction.
func New(db *sql.DB, supersede bool) *Repository {
	return &Repository{db: db, supersede: supersede, txTimeout: defaultTxTimeout}
}

// EnsureSchema creates the explanations table if it does not exist.
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, explanationsSchema); err != nil {
		return fmt.Errorf("create explanations schema: %w", err)
	}
	return nil
}

// CheckReadiness pings the database.
func (r *Repository) CheckReadiness(ctx context.Context) error {
	if err := r.db.PingContext(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// SelectViolations returns the violations due for explanation in processing order.
func (r *Repository) SelectViolations(ctx context.Context, opts domain.SelectOptions) ([]domain.ViolationContext, error) {
	statuses := make([]string, 0, len(opts.Statuses()))
	for _, s := range opts.Statuses() {
		statuses = append(statuses, string(s))
	}

	var limit sql.NullInt64
	if opts.Limit > 0 {
		limit = sql.NullInt64{Int64: int64(opts.Limit), Valid: true}
	}

	rows, err := r.db.QueryContext(ctx, selectViolationsQuery, pq.Array(statuses), opts.Regenerate, limit)
	if err != nil {
		return nil, fmt.Errorf("query violations: %w", err)
	}
	defer rows.Close()

	var out []domain.ViolationContext
	for rows.Next() {
		v, err := scanViolation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return out, nil
}

// SaveExplanation inserts e as the current explanation for its key.
func (r *Repository) SaveExplanation(ctx context.Context, e domain.Explanation) error {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.txTimeout)
		defer cancel()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save explanation: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if r.supersede {
		if _, err := tx.ExecContext(ctx, supersedeQuery, e.SubmissionYearQuarter, e.ViolationID, e.PWSID); err != nil {
			return fmt.Errorf("supersede explanation %s: %w", e.Key, err)
		}
	}

	createdAt := e.CreatedAt
	if createdAt.IsZero() {
		createdAt = domain.Now().UTC()
	}
	_, err = tx.ExecContext(ctx, insertExplanationQuery,
		e.SubmissionYearQuarter,
		e.ViolationID,
		e.PWSID,
		e.ExplanationText,
		string(e.RiskLevel),
		e.HealthImpact,
		e.RecommendedActions,
		e.TimelineContext,
		e.SeverityScore,
		e.VulnerableGroups,
		e.ContaminantExplanation,
		e.ModelVersion,
		string(e.Source),
		createdAt,
	)
	if err != nil {
		return fmt.Errorf("insert explanation %s: %w", e.Key, err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit explanation %s: %w", e.Key, err)
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanViolation(row scanner) (domain.ViolationContext, error) {
	var (
		v            domain.ViolationContext
		pwsName      sql.NullString
		contaminant  sql.NullString
		violCode     sql.NullString
		measure      sql.NullFloat64
		unit         sql.NullString
		federalMCL   sql.NullString
		stateMCL     sql.NullFloat64
		status       sql.NullString
		beginDate    sql.NullString
		endDate      sql.NullString
		tier         sql.NullInt64
		county, city sql.NullString
	)

	err := row.Scan(
		&v.SubmissionYearQuarter,
		&v.ViolationID,
		&v.PWSID,
		&pwsName,
		&v.PopulationServed,
		&v.IsSchoolOrDaycare,
		&contaminant,
		&v.ContaminantName,
		&violCode,
		&v.ViolationDescription,
		&measure,
		&unit,
		&federalMCL,
		&stateMCL,
		&status,
		&beginDate,
		&endDate,
		&tier,
		&county,
		&city,
	)
	if err != nil {
		return domain.ViolationContext{}, err
	}

	v.PWSName = pwsName.String
	v.ContaminantCode = contaminant.String
	v.ViolationCode = violCode.String
	v.UnitOfMeasure = unit.String
	v.FederalMCL = federalMCL.String
	v.Status = domain.Status(status.String)
	v.NonComplBeginDate = beginDate.String
	v.NonComplEndDate = endDate.String
	v.CountyServed = county.String
	v.CityServed = city.String
	if measure.Valid {
		v.Measure = &measure.Float64
	}
	if stateMCL.Valid {
		v.StateMCL = &stateMCL.Float64
	}
	if tier.Valid {
		t := int(tier.Int64)
		v.PublicNotification = &t
	}
	return v, nil
}
