package client

import (
	"context"
	"net/url"
	"strconv"
	"time"

	"github.com/donaldgifford/discount-notifier/internal/api/handlers"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// LatestRun is the server's view of the most recent run.
type LatestRun struct {
	Running bool                     `json:"running"`
	Summary *handlers.RunSummaryView `json:"summary,omitempty"`
}

// TriggerRun asks the server to start a run. It returns an *APIError with
// status 409 while another run is in progress.
func (c *Client) TriggerRun(ctx context.Context) error {
	return c.post(ctx, "/api/v1/runs", nil, nil)
}

// LatestRun returns the most recent run summary.
func (c *Client) LatestRun(ctx context.Context) (*LatestRun, error) {
	var out LatestRun
	if err := c.get(ctx, "/api/v1/runs/latest", &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Deliveries returns the recorded delivery outcomes of a run.
func (c *Client) Deliveries(ctx context.Context, runID string) ([]handlers.DeliveryView, error) {
	var out struct {
		Deliveries []handlers.DeliveryView `json:"deliveries"`
	}
	if err := c.get(ctx, "/api/v1/runs/"+url.PathEscape(runID)+"/deliveries", &out); err != nil {
		return nil, err
	}
	return out.Deliveries, nil
}

// EntryFilter narrows a ledger listing.
type EntryFilter struct {
	Retailer string
	Since    time.Time
	Limit    int
	Offset   int
}

// LedgerEntries lists persisted ledger entries and the total matching count.
func (c *Client) LedgerEntries(ctx context.Context, f EntryFilter) ([]domain.DedupEntry, int, error) {
	params := url.Values{}
	if f.Retailer != "" {
		params.Set("retailer", f.Retailer)
	}
	if !f.Since.IsZero() {
		params.Set("since", f.Since.UTC().Format(time.RFC3339))
	}
	if f.Limit > 0 {
		params.Set("limit", strconv.Itoa(f.Limit))
	}
	if f.Offset > 0 {
		params.Set("offset", strconv.Itoa(f.Offset))
	}

	path := "/api/v1/ledger/entries"
	if len(params) > 0 {
		path += "?" + params.Encode()
	}

	var out struct {
		Entries []domain.DedupEntry `json:"entries"`
		Total   int                 `json:"total"`
	}
	if err := c.get(ctx, path, &out); err != nil {
		return nil, 0, err
	}
	return out.Entries, out.Total, nil
}
