package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/discount-notifier/internal/store"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// HistoryHandler serves the persisted ledger and delivery history.
type HistoryHandler struct {
	store store.Store
}

// NewHistoryHandler creates a new HistoryHandler.
func NewHistoryHandler(s store.Store) *HistoryHandler {
	return &HistoryHandler{store: s}
}

// --- Input/Output types ---

// ListEntriesInput is the input for listing ledger entries.
type ListEntriesInput struct {
	Retailer string `query:"retailer" doc:"Filter by retailer"`
	Since    string `query:"since"    doc:"Only entries first seen at or after this RFC 3339 time"`
	Limit    int    `query:"limit"    doc:"Number of results (default 50)"                         minimum:"1" maximum:"500"`
	Offset   int    `query:"offset"   doc:"Pagination offset"                                      minimum:"0"`
	OrderBy  string `query:"order_by" doc:"Sort field"                                             enum:"first_seen,key,"`
}

// ListEntriesOutput is the response for listing ledger entries.
type ListEntriesOutput struct {
	Body struct {
		Entries []domain.DedupEntry `json:"entries"`
		Total   int                 `json:"total"`
		Limit   int                 `json:"limit"`
		Offset  int                 `json:"offset"`
	}
}

// ListDeliveriesInput is the input for a run's delivery history.
type ListDeliveriesInput struct {
	RunID string `path:"run_id" doc:"Run identifier"`
}

// DeliveryView is one persisted delivery outcome.
type DeliveryView struct {
	RunID     string                 `json:"run_id"`
	Outcome   domain.DeliveryOutcome `json:"outcome"`
	CreatedAt time.Time              `json:"created_at"`
}

// ListDeliveriesOutput is the response for a run's delivery history.
type ListDeliveriesOutput struct {
	Body struct {
		Deliveries []DeliveryView `json:"deliveries"`
	}
}

// --- Handlers ---

// ListEntries returns ledger entries with optional filters and pagination.
func (h *HistoryHandler) ListEntries(
	ctx context.Context,
	input *ListEntriesInput,
) (*ListEntriesOutput, error) {
	q := &store.EntryQuery{
		Limit:   input.Limit,
		Offset:  input.Offset,
		OrderBy: input.OrderBy,
	}
	if input.Retailer != "" {
		q.Retailer = &input.Retailer
	}
	if input.Since != "" {
		since, err := time.Parse(time.RFC3339, input.Since)
		if err != nil {
			return nil, huma.Error422UnprocessableEntity("since must be an RFC 3339 time")
		}
		q.Since = &since
	}

	entries, total, err := h.store.ListEntries(ctx, q)
	if err != nil {
		return nil, huma.Error500InternalServerError("ledger query failed: " + err.Error())
	}
	if entries == nil {
		entries = []domain.DedupEntry{}
	}

	resp := &ListEntriesOutput{}
	resp.Body.Entries = entries
	resp.Body.Total = total
	resp.Body.Limit = q.Limit
	resp.Body.Offset = q.Offset
	return resp, nil
}

// ListDeliveries returns the recorded delivery outcomes of one run.
func (h *HistoryHandler) ListDeliveries(
	ctx context.Context,
	input *ListDeliveriesInput,
) (*ListDeliveriesOutput, error) {
	records, err := h.store.ListDeliveries(ctx, input.RunID)
	if err != nil {
		return nil, huma.Error500InternalServerError("delivery query failed: " + err.Error())
	}
	if len(records) == 0 {
		return nil, huma.Error404NotFound("no deliveries recorded for run " + input.RunID)
	}

	resp := &ListDeliveriesOutput{}
	resp.Body.Deliveries = make([]DeliveryView, 0, len(records))
	for _, r := range records {
		resp.Body.Deliveries = append(resp.Body.Deliveries, DeliveryView{
			RunID:     r.RunID,
			Outcome:   r.Outcome,
			CreatedAt: r.CreatedAt,
		})
	}
	return resp, nil
}

// RegisterHistoryRoutes registers ledger and delivery history endpoints.
func RegisterHistoryRoutes(api huma.API, h *HistoryHandler) {
	huma.Register(api, huma.Operation{
		OperationID: "list-ledger-entries",
		Method:      http.MethodGet,
		Path:        "/api/v1/ledger/entries",
		Summary:     "List ledger entries",
		Description: "Returns persisted de-duplication keys with optional retailer and time filters.",
		Tags:        []string{"ledger"},
	}, h.ListEntries)

	huma.Register(api, huma.Operation{
		OperationID: "list-run-deliveries",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/{run_id}/deliveries",
		Summary:     "List deliveries for a run",
		Description: "Returns the recorded delivery outcome for each destination of a run.",
		Tags:        []string{"runs"},
		Errors:      []int{http.StatusNotFound},
	}, h.ListDeliveries)
}
