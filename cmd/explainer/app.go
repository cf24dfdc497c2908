package main

import (
	"context"
	"database/sql"
	"log/slog"

	kafkaadapter "github.com/couchcryptid/water-violation-explainer/internal/adapter/kafka"
	"github.com/couchcryptid/water-violation-explainer/internal/adapter/openai"
	"github.com/couchcryptid/water-violation-explainer/internal/adapter/postgres"
	"github.com/couchcryptid/water-violation-explainer/internal/config"
	"github.com/couchcryptid/water-violation-explainer/internal/domain"
	"github.com/couchcryptid/water-violation-explainer/internal/observability"
	"github.com/couchcryptid/water-violation-explainer/internal/pipeline"
)

// app holds the wired components shared by run and serve.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	db       *sql.DB
	repo     *postgres.Repository
	writer   *kafkaadapter.Writer
	pipeline *pipeline.Pipeline
}

func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, metrics *observability.Metrics, dryRun bool) (*app, error) {
	catalog, err := domain.LoadCatalog(cfg.CatalogPath)
	if err != nil {
		return nil, err
	}

	db, err := postgres.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	repo := postgres.New(db, cfg.SupersedePrevious)

	a := &app{cfg: cfg, logger: logger, db: db, repo: repo}

	var store pipeline.Store = repo
	if dryRun {
		logger.Info("dry run mode, no changes will be made")
		store = pipeline.NewDryRunStore(logger)
	} else if err := repo.EnsureSchema(ctx); err != nil {
		a.Close()
		return nil, err
	}

	var generator pipeline.Generator
	if cfg.GenerationEnabled {
		generator = openai.NewClient(openai.Options{
			APIKey:      cfg.OpenAIAPIKey,
			BaseURL:     cfg.OpenAIBaseURL,
			Model:       cfg.OpenAIModel,
			Timeout:     cfg.OpenAITimeout,
			Temperature: cfg.OpenAITemperature,
			MaxTokens:   cfg.OpenAIMaxTokens,
		})
		metrics.GenerationEnabled.Set(1)
		logger.Info("text generation enabled", "model", cfg.OpenAIModel, "model_version", cfg.ModelVersion)
	} else {
		metrics.GenerationEnabled.Set(0)
		logger.Info("text generation disabled, using templated explanations")
	}

	var notifier pipeline.Notifier
	if cfg.EventsEnabled() && !dryRun {
		a.writer = kafkaadapter.NewWriter(cfg, logger)
		notifier = a.writer
		logger.Info("explanation events enabled", "topic", cfg.KafkaTopic)
	}

	composer := pipeline.NewComposer(generator, catalog, cfg.StateName, cfg.ModelVersion, logger, metrics)
	a.pipeline = pipeline.New(repo, composer, store, notifier, logger, metrics)
	return a, nil
}

func (a *app) Close() {
	if a.writer != nil {
		if err := a.writer.Close(); err != nil {
			a.logger.Error("kafka writer close error", "error", err)
		}
	}
	if err := a.db.Close(); err != nil {
		a.logger.Error("database close error", "error", err)
	}
}
