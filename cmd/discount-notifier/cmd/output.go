package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/donaldgifford/discount-notifier/internal/api/handlers"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// stdout is where command output goes; tests replace it.
var stdout io.Writer = os.Stdout

// tabWriter wraps tabwriter with error tracking.
type tabWriter struct {
	*tabwriter.Writer
	err error
}

func newTabWriter(w io.Writer) *tabWriter {
	return &tabWriter{Writer: tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)}
}

func (tw *tabWriter) writef(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.Writer, format, args...)
}

func (tw *tabWriter) finish() error {
	if tw.err != nil {
		return tw.err
	}
	return tw.Flush()
}

// printRunSummary renders the per-collector table, the totals and the
// delivery outcomes of a run.
func printRunSummary(w io.Writer, v *handlers.RunSummaryView) error {
	tw := newTabWriter(w)
	tw.writef("RETAILER\tSTATUS\tPRODUCTS\tTRANSPORT\tELAPSED\tERROR\n")
	for _, c := range v.Collectors {
		tw.writef("%s\t%s\t%d\t%s\t%s\t%s\n",
			c.Retailer,
			c.Status,
			c.ProductCount,
			c.Escalation.Outcome,
			formatElapsed(time.Duration(c.ElapsedMS)*time.Millisecond),
			truncate(oneLine(c.Error), 60),
		)
	}
	tw.writef("\n")
	tw.writef("Run:\t%s\n", v.RunID)
	tw.writef("Collectors:\t%d ok, %d failed (%.0f%%)\n", v.Successes, v.Failures, v.SuccessRatio*100)
	tw.writef("Scraped:\t%d (%d invalid)\n", v.ProductsScraped, v.ProductsInvalid)
	tw.writef("Qualifying:\t%d (%d already notified)\n", v.Qualifying, v.Duplicates)
	tw.writef("Notified:\t%d\n", v.Notified)
	tw.writef("Elapsed:\t%s\n", formatElapsed(time.Duration(v.ElapsedMS)*time.Millisecond))
	if v.Cancelled {
		tw.writef("Cancelled:\tyes, delivery skipped\n")
	}

	if len(v.Deliveries) > 0 {
		tw.writef("\nDESTINATION\tDELIVERED\tATTEMPTS\tPRODUCTS\tERROR\n")
		for _, d := range v.Deliveries {
			tw.writef("%s\t%v\t%d\t%d\t%s\n",
				d.Destination, d.Delivered, d.Attempts, d.Products, truncate(oneLine(d.Error), 60))
		}
	}
	return tw.finish()
}

func printDeliveriesTable(w io.Writer, deliveries []handlers.DeliveryView) error {
	tw := newTabWriter(w)
	tw.writef("DESTINATION\tDELIVERED\tATTEMPTS\tPRODUCTS\tRECORDED\tERROR\n")
	for _, d := range deliveries {
		tw.writef("%s\t%v\t%d\t%d\t%s\t%s\n",
			d.Outcome.Destination,
			d.Outcome.Delivered,
			d.Outcome.Attempts,
			d.Outcome.Products,
			d.CreatedAt.Local().Format(time.DateTime),
			truncate(oneLine(d.Outcome.Error), 60),
		)
	}
	return tw.finish()
}

func printEntriesTable(w io.Writer, entries []domain.DedupEntry) error {
	tw := newTabWriter(w)
	tw.writef("FIRST SEEN\tKEY\n")
	for _, e := range entries {
		tw.writef("%s\t%s\n", e.FirstSeen.Local().Format(time.DateTime), truncate(e.Key, 100))
	}
	return tw.finish()
}

func printTestResults(w io.Writer, names []string, failures map[string]error) error {
	tw := newTabWriter(w)
	tw.writef("DESTINATION\tRESULT\n")
	for _, name := range names {
		result := "ok"
		if err, failed := failures[name]; failed {
			result = "FAILED: " + truncate(oneLine(err.Error()), 80)
		}
		tw.writef("%s\t%s\n", name, result)
	}
	return tw.finish()
}

func outputJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func formatElapsed(d time.Duration) string {
	return d.Round(100 * time.Millisecond).String()
}

func oneLine(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
