package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/donaldgifford/discount-notifier/internal/api/handlers"
	"github.com/donaldgifford/discount-notifier/internal/engine"
)

func runCmd() *cobra.Command {
	var opts appOptions

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run every collector once and notify",
		Long: "Runs the configured collectors once, filters products by discount,\n" +
			"drops ones already notified, and delivers the rest. Exits 0 when the run\n" +
			"completes, even if some collectors failed.",
		Example: `  # Run everything against the production destinations
  discount-notifier run --config config.yaml

  # Run two retailers against the dev destinations
  discount-notifier run --only harrods --only end --dev

  # Collect and filter without sending anything
  discount-notifier run --dry-run --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runOnce(ctx, opts)
		},
	}

	cmd.Flags().StringSliceVar(&opts.only, "only", nil, "run only these source keys (repeatable)")
	cmd.Flags().BoolVar(&opts.dev, "dev", false, "deliver to dev destinations")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "log notifications instead of sending them")
	cmd.Flags().BoolVar(&opts.noDedup, "no-dedup", false, "notify every qualifying product, including repeats")

	return cmd
}

func runOnce(ctx context.Context, opts appOptions) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}
	log := newLogger(cfg)

	a, err := newApp(ctx, cfg, opts, log)
	if err != nil {
		return err
	}
	defer a.Close()

	log.Info("starting run",
		"sources", len(a.engine.Sources()),
		"destinations", strings.Join(destinationNames(a.notifiers), ","),
		"dry_run", opts.dryRun,
	)

	summary, err := a.engine.Run(ctx)
	if err != nil {
		if errors.Is(err, engine.ErrNoCollectors) {
			return withExitCode(ExitNoCollectors, err)
		}
		return err
	}

	view := handlers.NewRunSummaryView(summary)
	if jsonOutput() {
		err = outputJSON(stdout, view)
	} else {
		err = printRunSummary(stdout, &view)
	}
	if err != nil {
		return fmt.Errorf("writing summary: %w", err)
	}

	switch {
	case summary.Cancelled:
		return withExitCode(ExitInterrupted, context.Canceled)
	case summary.AllCollectorsFailed():
		return withExitCode(ExitFailure, errAllCollectorsFailed)
	}
	return nil
}
