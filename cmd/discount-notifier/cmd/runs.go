package cmd

import (
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/discount-notifier/internal/api/client"
)

func runsCmd() *cobra.Command {
	runsRoot := &cobra.Command{
		Use:   "runs",
		Short: "Trigger and inspect runs on a serving instance",
		Long: "Talks to a running \"discount-notifier serve\" over its API to start a\n" +
			"run, show the latest summary, or list a run's deliveries.",
	}

	runsRoot.AddCommand(
		runsTriggerCmd(),
		runsLatestCmd(),
		runsDeliveriesCmd(),
	)

	return runsRoot
}

func runsTriggerCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "trigger",
		Short:   "Start a run now",
		Example: `  discount-notifier runs trigger --server http://notifier:8080`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			err := newClient().TriggerRun(cmd.Context())
			if apiclient.IsStatus(err, http.StatusConflict) {
				_, _ = fmt.Fprintln(stdout, "A run is already in progress.")
				return nil
			}
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(stdout, "Run started.")
			return nil
		},
	}
}

func runsLatestCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "latest",
		Short: "Show the most recent run summary",
		Example: `  discount-notifier runs latest
  discount-notifier runs latest --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			latest, err := newClient().LatestRun(cmd.Context())
			if apiclient.IsStatus(err, http.StatusNotFound) {
				_, _ = fmt.Fprintln(stdout, "No run has completed yet.")
				return nil
			}
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(stdout, latest)
			}
			if latest.Running {
				_, _ = fmt.Fprintln(stdout, "A run is in progress.")
			}
			if latest.Summary == nil {
				return nil
			}
			return printRunSummary(stdout, latest.Summary)
		},
	}
}

func runsDeliveriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "deliveries <run_id>",
		Short:   "List the recorded deliveries of a run",
		Args:    cobra.ExactArgs(1),
		Example: `  discount-notifier runs deliveries 3f1c2a9e-5b7d-4c1e-9a2f-0d8e6b4c1a77`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deliveries, err := newClient().Deliveries(cmd.Context(), args[0])
			if apiclient.IsStatus(err, http.StatusNotFound) {
				_, _ = fmt.Fprintf(stdout, "No deliveries recorded for run %q.\n", args[0])
				return nil
			}
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(stdout, deliveries)
			}
			return printDeliveriesTable(stdout, deliveries)
		},
	}
}
