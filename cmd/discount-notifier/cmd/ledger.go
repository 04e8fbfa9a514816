package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	apiclient "github.com/donaldgifford/discount-notifier/internal/api/client"
)

func ledgerCmd() *cobra.Command {
	ledgerRoot := &cobra.Command{
		Use:   "ledger",
		Short: "Inspect the persisted de-duplication ledger",
	}
	ledgerRoot.AddCommand(ledgerListCmd())
	return ledgerRoot
}

func ledgerListCmd() *cobra.Command {
	var (
		retailer string
		within   time.Duration
		limit    int
		offset   int
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List products that have already been notified",
		Example: `  # Everything notified in the last 6 hours
  discount-notifier ledger list --within 6h

  # One retailer, paged
  discount-notifier ledger list --retailer harrods --limit 20 --offset 20`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := apiclient.EntryFilter{
				Retailer: retailer,
				Limit:    limit,
				Offset:   offset,
			}
			if within > 0 {
				f.Since = time.Now().Add(-within)
			}

			entries, total, err := newClient().LedgerEntries(cmd.Context(), f)
			if err != nil {
				return err
			}
			if jsonOutput() {
				return outputJSON(stdout, entries)
			}
			if len(entries) == 0 {
				_, _ = fmt.Fprintln(stdout, "No ledger entries found.")
				return nil
			}

			_, _ = fmt.Fprintf(stdout, "Showing %d of %d entries\n\n", len(entries), total)
			return printEntriesTable(stdout, entries)
		},
	}

	cmd.Flags().StringVar(&retailer, "retailer", "", "filter by retailer")
	cmd.Flags().DurationVar(&within, "within", 0, "only entries first seen within this duration")
	cmd.Flags().IntVar(&limit, "limit", 50, "number of entries")
	cmd.Flags().IntVar(&offset, "offset", 0, "pagination offset")
	return cmd
}
