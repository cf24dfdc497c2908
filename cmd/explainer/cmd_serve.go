package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	httpadapter "github.com/couchcryptid/water-violation-explainer/internal/adapter/http"
	"github.com/couchcryptid/water-violation-explainer/internal/config"
	"github.com/couchcryptid/water-violation-explainer/internal/observability"
)

var serveFlags struct {
	selectFlags
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run explanation cycles every RUN_INTERVAL and expose health endpoints",
	Long: `Serve repeats the explanation cycle every RUN_INTERVAL until interrupted.
It listens on HTTP_ADDR with /healthz, /readyz, /metrics and /runs/last.
Readiness requires a reachable database and at least one completed cycle.

Serve only explains violations without a current explanation. It has no
--regenerate flag because every cycle would rewrite every explanation;
use "explainer run --regenerate" for a one-off regeneration.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	bindSelectFlags(serveCmd, &serveFlags.selectFlags)
}

func runServe(_ *cobra.Command, _ []string) error {
	opts, err := serveFlags.options()
	if err != nil {
		return err
	}

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	logger := observability.NewLogger(cfg)
	metrics := observability.NewMetrics()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg, logger, metrics, false)
	if err != nil {
		return err
	}
	defer a.Close()

	checks := []httpadapter.Check{
		{Name: "database", Checker: a.repo},
		{Name: "generation_cycle", Checker: a.pipeline},
	}
	srv := httpadapter.NewServer(cfg.HTTPAddr, checks, a.pipeline, logger)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return a.pipeline.Run(gctx, cfg.RunInterval, opts)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http server shutdown: %w", err)
		}
		return nil
	})

	err = g.Wait()
	logger.Info("shutdown complete")
	return err
}
