package handlers

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/danielgtaylor/huma/v2"

	"github.com/donaldgifford/discount-notifier/internal/engine"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// RunController starts runs and reports on them. *engine.Engine implements it.
type RunController interface {
	Run(ctx context.Context) (*domain.RunSummary, error)
	Running() bool
	LastSummary() *domain.RunSummary
}

// RunsHandler triggers runs and serves the latest summary.
type RunsHandler struct {
	runs RunController
	ctx  context.Context
	log  *slog.Logger
	wg   sync.WaitGroup
}

// NewRunsHandler creates a RunsHandler. Triggered runs use ctx, so
// cancelling it cancels them.
func NewRunsHandler(ctx context.Context, r RunController, log *slog.Logger) *RunsHandler {
	if log == nil {
		log = slog.Default()
	}
	return &RunsHandler{runs: r, ctx: ctx, log: log}
}

// RunSummaryView is the API form of a run summary.
type RunSummaryView struct {
	RunID           string                       `json:"run_id"           doc:"Run identifier"`
	StartedAt       time.Time                    `json:"started_at"`
	FinishedAt      time.Time                    `json:"finished_at"`
	ElapsedMS       int64                        `json:"elapsed_ms"`
	Cancelled       bool                         `json:"cancelled"`
	Successes       int                          `json:"successes"        doc:"Collectors that returned products or a partial result"`
	Failures        int                          `json:"failures"`
	SuccessRatio    float64                      `json:"success_ratio"`
	ProductsScraped int                          `json:"products_scraped"`
	ProductsInvalid int                          `json:"products_invalid"`
	Qualifying      int                          `json:"qualifying"       doc:"Products at or above the discount threshold"`
	Duplicates      int                          `json:"duplicates"`
	Notified        int                          `json:"notified"`
	Collectors      []domain.CollectorResultView `json:"collectors"`
	Deliveries      []domain.DeliveryOutcome     `json:"deliveries"`
}

// NewRunSummaryView builds the API view of s.
func NewRunSummaryView(s *domain.RunSummary) RunSummaryView {
	deliveries := s.Deliveries
	if deliveries == nil {
		deliveries = []domain.DeliveryOutcome{}
	}
	return RunSummaryView{
		RunID:           s.RunID,
		StartedAt:       s.StartedAt,
		FinishedAt:      s.FinishedAt,
		ElapsedMS:       s.Elapsed().Milliseconds(),
		Cancelled:       s.Cancelled,
		Successes:       s.Successes(),
		Failures:        s.Failures(),
		SuccessRatio:    s.SuccessRatio(),
		ProductsScraped: s.ProductsScraped,
		ProductsInvalid: s.ProductsInvalid,
		Qualifying:      s.Qualifying,
		Duplicates:      s.Duplicates,
		Notified:        s.Notified,
		Collectors:      s.CollectorViews(),
		Deliveries:      deliveries,
	}
}

// TriggerRunOutput is the response body for the trigger endpoint.
type TriggerRunOutput struct {
	Body struct {
		Status string `json:"status" example:"run started" doc:"Trigger status"`
	}
}

// LatestRunOutput is the response for the latest run endpoint.
type LatestRunOutput struct {
	Body struct {
		Running bool            `json:"running" doc:"Whether a run is in progress"`
		Summary *RunSummaryView `json:"summary,omitempty"`
	}
}

// Trigger starts a run in the background. It fails with 409 while another
// run is in progress.
func (h *RunsHandler) Trigger(_ context.Context, _ *struct{}) (*TriggerRunOutput, error) {
	if h.runs.Running() {
		return nil, huma.Error409Conflict(engine.ErrRunInProgress.Error())
	}

	h.wg.Add(1)
	go func() {
		defer h.wg.Done()
		summary, err := h.runs.Run(h.ctx)
		switch {
		case errors.Is(err, engine.ErrRunInProgress):
			h.log.Warn("triggered run skipped, another run is in progress")
		case err != nil:
			h.log.Error("triggered run failed", "error", err)
		default:
			h.log.Info("triggered run finished", "run_id", summary.RunID, "notified", summary.Notified)
		}
	}()

	resp := &TriggerRunOutput{}
	resp.Body.Status = "run started"
	return resp, nil
}

// Latest returns the summary of the most recent completed run.
func (h *RunsHandler) Latest(_ context.Context, _ *struct{}) (*LatestRunOutput, error) {
	last := h.runs.LastSummary()
	running := h.runs.Running()
	if last == nil && !running {
		return nil, huma.Error404NotFound("no run has completed yet")
	}

	resp := &LatestRunOutput{}
	resp.Body.Running = running
	if last != nil {
		view := NewRunSummaryView(last)
		resp.Body.Summary = &view
	}
	return resp, nil
}

// Wait blocks until triggered runs have returned.
func (h *RunsHandler) Wait() {
	h.wg.Wait()
}

// RegisterRunRoutes registers run endpoints with the Huma API.
func RegisterRunRoutes(api huma.API, h *RunsHandler) {
	huma.Register(api, huma.Operation{
		OperationID:   "trigger-run",
		Method:        http.MethodPost,
		Path:          "/api/v1/runs",
		Summary:       "Trigger a run",
		Description:   "Starts a full run in the background: collect, filter, de-duplicate and notify.",
		Tags:          []string{"runs"},
		DefaultStatus: http.StatusAccepted,
		Errors:        []int{http.StatusConflict},
	}, h.Trigger)

	huma.Register(api, huma.Operation{
		OperationID: "get-latest-run",
		Method:      http.MethodGet,
		Path:        "/api/v1/runs/latest",
		Summary:     "Get the latest run",
		Description: "Returns the summary of the most recent completed run and whether one is in progress.",
		Tags:        []string{"runs"},
		Errors:      []int{http.StatusNotFound},
	}, h.Latest)
}
