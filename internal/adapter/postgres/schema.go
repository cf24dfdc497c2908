package postgres

// explanationsSchema creates the table owned by this service. The source
// tables (violations_enforcement, public_water_systems, reference_codes,
// geographic_areas) are populated by the bulk loader and are only read here.
const explanationsSchema = `
CREATE TABLE IF NOT EXISTS violation_ai_explanations (
    id                      BIGSERIAL PRIMARY KEY,
    submission_year_quarter VARCHAR(7)  NOT NULL,
    violation_id            VARCHAR(20) NOT NULL,
    pwsid                   VARCHAR(9)  NOT NULL,
    explanation_text        TEXT        NOT NULL,
    health_impact           TEXT        NOT NULL,
    recommended_actions     TEXT        NOT NULL,
    timeline_context        TEXT        NOT NULL,
    vulnerable_groups       TEXT        NOT NULL,
    contaminant_explanation TEXT        NOT NULL,
    severity_score          SMALLINT    NOT NULL CHECK (severity_score BETWEEN 1 AND 10),
    health_risk_level       VARCHAR(8)  NOT NULL,
    model_version           VARCHAR(50) NOT NULL,
    source                  VARCHAR(8)  NOT NULL DEFAULT 'model',
    is_current              BOOLEAN     NOT NULL DEFAULT TRUE,
    created_at              TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_violation_ai_explanations_current
    ON violation_ai_explanations (submission_year_quarter, violation_id)
    WHERE is_current;
`
