package domain

import (
	"time"
)

// RunSummary describes one orchestrator run.
type RunSummary struct {
	RunID      string            `json:"run_id"`
	StartedAt  time.Time         `json:"started_at"`
	FinishedAt time.Time         `json:"finished_at"`
	Cancelled  bool              `json:"cancelled,omitempty"`
	Collectors []CollectorResult `json:"-"`
	Deliveries []DeliveryOutcome `json:"deliveries"`

	ProductsScraped int `json:"products_scraped"`
	ProductsInvalid int `json:"products_invalid"`
	Qualifying      int `json:"qualifying"`
	Duplicates      int `json:"duplicates"`
	Notified        int `json:"notified"`
}

// Elapsed returns the total run time.
func (s *RunSummary) Elapsed() time.Duration {
	return s.FinishedAt.Sub(s.StartedAt)
}

// Successes returns the number of collectors that did not fail outright.
func (s *RunSummary) Successes() int {
	n := 0
	for i := range s.Collectors {
		if s.Collectors[i].Succeeded() {
			n++
		}
	}
	return n
}

// Failures returns the number of collectors with a Failure status.
func (s *RunSummary) Failures() int {
	return len(s.Collectors) - s.Successes()
}

// SuccessRatio returns successes over collectors run, or 0 with no collectors.
func (s *RunSummary) SuccessRatio() float64 {
	if len(s.Collectors) == 0 {
		return 0
	}
	return float64(s.Successes()) / float64(len(s.Collectors))
}

// AllCollectorsFailed reports whether every collector that ran failed.
func (s *RunSummary) AllCollectorsFailed() bool {
	return len(s.Collectors) > 0 && s.Successes() == 0
}

// FailedDeliveries returns the deliveries that exhausted their retries.
func (s *RunSummary) FailedDeliveries() []DeliveryOutcome {
	var out []DeliveryOutcome
	for _, d := range s.Deliveries {
		if !d.Delivered {
			out = append(out, d)
		}
	}
	return out
}

// CollectorViews returns serializable views of each collector result.
func (s *RunSummary) CollectorViews() []CollectorResultView {
	views := make([]CollectorResultView, 0, len(s.Collectors))
	for i := range s.Collectors {
		views = append(views, s.Collectors[i].View())
	}
	return views
}
