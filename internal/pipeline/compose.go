package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/couchcryptid/water-violation-explainer/internal/domain"
	"github.com/couchcryptid/water-violation-explainer/internal/observability"
)

// Generator turns a prompt into free-form text from a text-generation service.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// ExplanationComposer implements Composer. It asks the generator for the six
// explanation fields and falls back to deterministic templates whenever the
// call fails or the response cannot be parsed.
type ExplanationComposer struct {
	generator    Generator
	catalog      *domain.Catalog
	state        string
	modelVersion string
	logger       *slog.Logger
	metrics      *observability.Metrics
}

// NewComposer creates an ExplanationComposer. Pass a nil generator to
// produce fallback explanations only.
func NewComposer(g Generator, catalog *domain.Catalog, state, modelVersion string, logger *slog.Logger, metrics *observability.Metrics) *ExplanationComposer {
	if catalog == nil {
		catalog = domain.DefaultCatalog()
	}
	return &ExplanationComposer{
		generator:    g,
		catalog:      catalog,
		state:        state,
		modelVersion: modelVersion,
		logger:       logger,
		metrics:      metrics,
	}
}

// Compose always returns an explanation. Severity and risk are computed
// locally and never taken from the generated text.
func (c *ExplanationComposer) Compose(ctx context.Context, v domain.ViolationContext) domain.Explanation {
	a := domain.Assess(v, c.catalog)

	fields, source := c.generate(ctx, v, a)

	c.metrics.ExplanationsComposed.WithLabelValues(string(source)).Inc()

	return domain.Explanation{
		Key:               v.Key(),
		ExplanationFields: fields,
		SeverityScore:     a.Score,
		RiskLevel:         a.Risk,
		ModelVersion:      c.modelVersion,
		Source:            source,
		IsCurrent:         true,
		CreatedAt:         domain.Now().UTC(),
	}
}

func (c *ExplanationComposer) generate(ctx context.Context, v domain.ViolationContext, a domain.Assessment) (domain.ExplanationFields, domain.Source) {
	if c.generator == nil {
		return domain.FallbackFields(v, a), domain.SourceFallback
	}

	prompt := domain.BuildPrompt(v, a, c.state)

	start := time.Now()
	raw, err := c.generator.Generate(ctx, prompt)
	c.metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		c.metrics.GenerationRequests.WithLabelValues("error").Inc()
		c.logger.Error("generation failed, using fallback",
			"error", err,
			"violation_id", v.ViolationID,
			"pwsid", v.PWSID,
		)
		return domain.FallbackFields(v, a), domain.SourceFallback
	}

	fields, err := domain.ParseGeneratedFields(raw)
	if err != nil {
		c.metrics.GenerationRequests.WithLabelValues("unparsable").Inc()
		c.logger.Error("generated response rejected, using fallback",
			"error", err,
			"missing_field", errors.Is(err, domain.ErrMissingField),
			"violation_id", v.ViolationID,
			"pwsid", v.PWSID,
		)
		return domain.FallbackFields(v, a), domain.SourceFallback
	}

	c.metrics.GenerationRequests.WithLabelValues("success").Inc()
	return fields, domain.SourceModel
}
