package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/couchcryptid/water-violation-explainer/internal/config"
	"github.com/couchcryptid/water-violation-explainer/internal/domain"
	"github.com/couchcryptid/water-violation-explainer/internal/observability"
)

// selectFlags are shared by run and serve. Only run binds --regenerate.
type selectFlags struct {
	limit             int
	regenerate        bool
	includeHistorical bool
}

func (f selectFlags) options() (domain.SelectOptions, error) {
	if f.limit < 0 {
		return domain.SelectOptions{}, fmt.Errorf("--limit must not be negative, got %d", f.limit)
	}
	return domain.SelectOptions{
		Limit:             f.limit,
		Regenerate:        f.regenerate,
		IncludeHistorical: f.includeHistorical,
	}, nil
}

func bindSelectFlags(cmd *cobra.Command, f *selectFlags) {
	cmd.Flags().IntVar(&f.limit, "limit", 0, "Limit number of violations to process (0 = no limit)")
	cmd.Flags().BoolVar(&f.includeHistorical, "include-historical", false, "Include Resolved and Archived violations")
}

var runFlags struct {
	selectFlags
	dryRun bool
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one explanation cycle and print a summary",
	Long: `Run selects the violations due for explanation, composes one explanation
per violation in priority order, stores each result, and prints
"Completed: N successful, M errors".

A failed selection query exits non-zero. Generation and storage failures
are logged per violation and counted in the summary.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	bindSelectFlags(runCmd, &runFlags.selectFlags)
	runCmd.Flags().BoolVar(&runFlags.regenerate, "regenerate", false, "Regenerate explanations for violations that already have one")
	runCmd.Flags().BoolVar(&runFlags.dryRun, "dry-run", false, "Show what would be done without making changes")
}

func runRun(cmd *cobra.Command, _ []string) error {
	opts, err := runFlags.options()
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

	a, err := newApp(ctx, cfg, logger, metrics, runFlags.dryRun)
	if err != nil {
		return err
	}
	defer a.Close()

	summary, err := a.pipeline.RunOnce(ctx, opts)
	if err != nil {
		logger.Error("run failed", "error", err)
		return err
	}

	fmt.Fprintln(cmd.OutOrStdout(), summary.String())
	return nil
}
