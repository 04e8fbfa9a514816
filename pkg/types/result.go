package domain

import (
	"slices"
	"time"
)

// CollectorStatus is the terminal status of one collector invocation.
type CollectorStatus string

// Collector status constants.
const (
	StatusSuccess        CollectorStatus = "success"
	StatusPartialFailure CollectorStatus = "partial_failure"
	StatusFailure        CollectorStatus = "failure"
)

// TransportMode identifies how a page was fetched.
type TransportMode string

// Transport mode constants.
const (
	TransportDirect    TransportMode = "direct"
	TransportAutomated TransportMode = "automated"
)

// EscalationOutcome tags how a collector invocation resolved its transport.
type EscalationOutcome string

// Escalation outcome constants.
const (
	// DirectSucceeded means the lightweight fetch produced valid content.
	DirectSucceeded EscalationOutcome = "direct_succeeded"
	// DirectFailed means the lightweight fetch failed with an error that is
	// not a blocking signal, so no browser session was attempted.
	DirectFailed EscalationOutcome = "direct_failed"
	// Escalated means the automated transport produced the result.
	Escalated EscalationOutcome = "escalated"
	// EscalationFailed means the automated transport was attempted and failed.
	EscalationFailed EscalationOutcome = "escalation_failed"
)

// EscalationDecision records why a collector did or did not escalate. It is
// diagnostic only and lives as long as the run.
type EscalationDecision struct {
	Outcome         EscalationOutcome `json:"outcome"`
	Evidence        string            `json:"evidence,omitempty"`
	AutomationError string            `json:"automation_error,omitempty"`
}

// CollectorResult is produced once per collector per run.
type CollectorResult struct {
	retailer   string
	products   []Product
	status     CollectorStatus
	elapsed    time.Duration
	err        string
	escalation EscalationDecision
}

// NewCollectorResult builds an immutable CollectorResult. The products slice
// is copied.
func NewCollectorResult(
	retailer string,
	products []Product,
	status CollectorStatus,
	elapsed time.Duration,
	err error,
	decision EscalationDecision,
) CollectorResult {
	r := CollectorResult{
		retailer:   retailer,
		products:   slices.Clone(products),
		status:     status,
		elapsed:    elapsed,
		escalation: decision,
	}
	if err != nil {
		r.err = err.Error()
	}
	return r
}

// Retailer returns the collector's retailer name.
func (r CollectorResult) Retailer() string { return r.retailer }

// Products returns a copy of the products found.
func (r CollectorResult) Products() []Product { return slices.Clone(r.products) }

// ProductCount returns the number of products found.
func (r CollectorResult) ProductCount() int { return len(r.products) }

// Status returns the terminal status.
func (r CollectorResult) Status() CollectorStatus { return r.status }

// Elapsed returns the wall time of the invocation.
func (r CollectorResult) Elapsed() time.Duration { return r.elapsed }

// Err returns the error detail, empty on success.
func (r CollectorResult) Err() string { return r.err }

// Escalation returns the escalation decision.
func (r CollectorResult) Escalation() EscalationDecision { return r.escalation }

// Succeeded reports whether the collector produced a usable result.
// Partial failures count as successes for the run ratio.
func (r CollectorResult) Succeeded() bool { return r.status != StatusFailure }

// CollectorResultView is the serializable form of CollectorResult.
type CollectorResultView struct {
	Retailer     string             `json:"retailer"`
	Status       CollectorStatus    `json:"status"`
	ProductCount int                `json:"product_count"`
	ElapsedMS    int64              `json:"elapsed_ms"`
	Error        string             `json:"error,omitempty"`
	Escalation   EscalationDecision `json:"escalation"`
}

// View returns a serializable summary of the result without the products.
func (r CollectorResult) View() CollectorResultView {
	return CollectorResultView{
		Retailer:     r.retailer,
		Status:       r.status,
		ProductCount: len(r.products),
		ElapsedMS:    r.elapsed.Milliseconds(),
		Error:        r.err,
		Escalation:   r.escalation,
	}
}
