// Package engine drives a run: every collector through its escalation
// controller, then the discount filter and de-dup ledger, then delivery.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/donaldgifford/discount-notifier/internal/collector"
	"github.com/donaldgifford/discount-notifier/internal/ledger"
	"github.com/donaldgifford/discount-notifier/internal/metrics"
	"github.com/donaldgifford/discount-notifier/internal/notify"
	"github.com/donaldgifford/discount-notifier/internal/store"
	"github.com/donaldgifford/discount-notifier/pkg/logger"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

var (
	// ErrNoCollectors is fatal: there was nothing to run.
	ErrNoCollectors = errors.New("no collectors to run")
	// ErrRunInProgress is returned when a run is requested while one is active.
	ErrRunInProgress = errors.New("a run is already in progress")
)

// Run results recorded on RunsTotal.
const (
	resultSuccess   = "success"
	resultPartial   = "partial"
	resultFailed    = "failed"
	resultCancelled = "cancelled"
)

// Runner executes one collector invocation and never fails; every outcome
// is folded into the result. *escalation.Controller implements it.
type Runner interface {
	Run(ctx context.Context, src *collector.Source) domain.CollectorResult
}

// Engine orchestrates collection, filtering, de-duplication and delivery.
type Engine struct {
	sources    []*collector.Source
	runner     Runner
	dispatcher *notify.Dispatcher
	notifiers  []notify.Notifier
	log        *slog.Logger

	threshold   decimal.Decimal
	concurrency int
	dedup       bool
	store       store.Store
	retention   time.Duration
	nowFunc     func() time.Time
	newRunID    func() string

	running atomic.Bool
	mu      sync.RWMutex
	last    *domain.RunSummary
}

// EngineOption configures the Engine.
type EngineOption func(*Engine)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(e *Engine) {
		e.log = l
	}
}

// WithThreshold sets the minimum discount percentage.
func WithThreshold(t decimal.Decimal) EngineOption {
	return func(e *Engine) {
		e.threshold = t
	}
}

// WithoutDedup disables the ledger: every qualifying product is delivered
// and nothing is persisted.
func WithoutDedup() EngineOption {
	return func(e *Engine) {
		e.dedup = false
	}
}

// WithConcurrency bounds how many collectors run at once.
func WithConcurrency(n int) EngineOption {
	return func(e *Engine) {
		if n > 0 {
			e.concurrency = n
		}
	}
}

// WithStore enables cross-run de-duplication and delivery history.
func WithStore(s store.Store) EngineOption {
	return func(e *Engine) {
		e.store = s
	}
}

// WithRetention sets the cross-run de-duplication window.
func WithRetention(d time.Duration) EngineOption {
	return func(e *Engine) {
		e.retention = d
	}
}

// WithNowFunc overrides the clock.
func WithNowFunc(f func() time.Time) EngineOption {
	return func(e *Engine) {
		e.nowFunc = f
	}
}

// WithRunIDFunc overrides run ID generation.
func WithRunIDFunc(f func() string) EngineOption {
	return func(e *Engine) {
		e.newRunID = f
	}
}

// NewEngine creates a new Engine with injected dependencies.
func NewEngine(
	sources []*collector.Source,
	runner Runner,
	dispatcher *notify.Dispatcher,
	notifiers []notify.Notifier,
	opts ...EngineOption,
) *Engine {
	eng := &Engine{
		sources:     sources,
		runner:      runner,
		dispatcher:  dispatcher,
		notifiers:   notifiers,
		log:         slog.Default(),
		threshold:   DefaultThreshold,
		concurrency: 1,
		dedup:       true,
		retention:   ledger.DefaultRetention,
		nowFunc:     time.Now,
		newRunID:    uuid.NewString,
	}
	for _, opt := range opts {
		opt(eng)
	}
	return eng
}

// LastSummary returns the summary of the most recent completed run, or nil.
func (eng *Engine) LastSummary() *domain.RunSummary {
	eng.mu.RLock()
	defer eng.mu.RUnlock()
	return eng.last
}

// Running reports whether a run is in progress.
func (eng *Engine) Running() bool {
	return eng.running.Load()
}

// Sources returns the configured sources.
func (eng *Engine) Sources() []*collector.Source {
	return eng.sources
}

// collected is one collector's contribution after filtering.
type collected struct {
	result     domain.CollectorResult
	fresh      []domain.Product
	invalid    int
	qualifying int
	duplicates int
}

// Run executes one full run. Individual collector failures never fail the
// run; the error is non-nil only when nothing could run. A cancelled run
// skips delivery and still returns its summary.
func (eng *Engine) Run(ctx context.Context) (*domain.RunSummary, error) {
	if len(eng.sources) == 0 {
		metrics.RunsTotal.WithLabelValues(resultFailed).Inc()
		return nil, ErrNoCollectors
	}
	if eng.runner == nil {
		metrics.RunsTotal.WithLabelValues(resultFailed).Inc()
		return nil, fmt.Errorf("%w: no runner configured", ErrNoCollectors)
	}
	if !eng.running.CompareAndSwap(false, true) {
		return nil, ErrRunInProgress
	}
	defer eng.running.Store(false)

	summary := &domain.RunSummary{
		RunID:     eng.newRunID(),
		StartedAt: eng.nowFunc(),
	}
	log := logger.ForRun(eng.log, summary.RunID)
	log.Info("run starting", "collectors", len(eng.sources), "concurrency", eng.concurrency)

	led := eng.openLedger(ctx, log)
	parts := eng.collect(ctx, led, log)

	var fresh []domain.Product
	for i := range parts {
		p := &parts[i]
		summary.Collectors = append(summary.Collectors, p.result)
		summary.ProductsScraped += p.result.ProductCount()
		summary.ProductsInvalid += p.invalid
		summary.Qualifying += p.qualifying
		summary.Duplicates += p.duplicates
		fresh = append(fresh, p.fresh...)
	}

	metrics.ProductsScrapedTotal.Add(float64(summary.ProductsScraped))
	metrics.ProductsInvalidTotal.Add(float64(summary.ProductsInvalid))
	metrics.ProductsQualifyingTotal.Add(float64(summary.Qualifying))
	metrics.ProductsDuplicateTotal.Add(float64(summary.Duplicates))

	if ctx.Err() != nil {
		summary.Cancelled = true
		log.Warn("run cancelled, skipping delivery", "pending", len(fresh))
	} else {
		eng.deliver(ctx, led, summary, fresh, log)
	}

	summary.FinishedAt = eng.nowFunc()
	eng.record(summary, log)
	return summary, nil
}

func (eng *Engine) openLedger(ctx context.Context, log *slog.Logger) *ledger.Ledger {
	opts := []ledger.Option{
		ledger.WithRetention(eng.retention),
		ledger.WithNowFunc(eng.nowFunc),
		ledger.WithLogger(log),
	}
	if eng.store != nil && eng.dedup {
		opts = append(opts, ledger.WithStore(eng.store))
	}
	led := ledger.New(opts...)
	if err := led.Open(ctx); err != nil {
		// A ledger that cannot load still de-duplicates within the run.
		log.Error("ledger unavailable, de-duplicating within this run only", "error", err)
	}
	return led
}

// collect runs every source through the runner, at most concurrency at a
// time. Each worker filters and claims its own products so the ledger
// decides between collectors that find the same item.
func (eng *Engine) collect(ctx context.Context, led *ledger.Ledger, log *slog.Logger) []collected {
	parts := make([]collected, len(eng.sources))

	var g errgroup.Group
	g.SetLimit(eng.concurrency)
	for i, src := range eng.sources {
		g.Go(func() error {
			clog := logger.ForCollector(log, src.Collector.Retailer())
			clog.Info("collector starting", "source", src.Key())

			res := eng.runner.Run(ctx, src)
			parts[i] = eng.sift(res, led, clog)

			clog.Info("collector finished",
				"status", res.Status(),
				"products", res.ProductCount(),
				"qualifying", parts[i].qualifying,
				"escalation", res.Escalation().Outcome,
				"elapsed", res.Elapsed(),
			)
			if res.Err() != "" {
				clog.Warn("collector error", "error", res.Err(), "evidence", res.Escalation().Evidence)
			}
			return nil
		})
	}
	_ = g.Wait()
	return parts
}

// sift validates, filters and claims the products of one result.
func (eng *Engine) sift(res domain.CollectorResult, led *ledger.Ledger, log *slog.Logger) collected {
	c := collected{result: res}
	for _, p := range res.Products() {
		if err := p.Validate(); err != nil {
			c.invalid++
			log.Warn("dropping invalid product", "product", p.Name, "error", err)
			continue
		}
		if !PassesFilter(&p, eng.threshold) {
			continue
		}
		c.qualifying++
		if eng.dedup && !led.Claim(p.IdentityKey()) {
			c.duplicates++
			continue
		}
		c.fresh = append(c.fresh, p)
	}
	return c
}

// deliver dispatches the batch, then persists the ledger keys only if at
// least one destination accepted it.
func (eng *Engine) deliver(
	ctx context.Context,
	led *ledger.Ledger,
	summary *domain.RunSummary,
	fresh []domain.Product,
	log *slog.Logger,
) {
	if eng.dispatcher == nil || len(eng.notifiers) == 0 {
		if len(fresh) > 0 {
			log.Warn("no destinations configured, products not delivered", "products", len(fresh))
		}
		return
	}

	summary.Deliveries = eng.dispatcher.DeliverAll(ctx, summary.RunID, fresh, eng.notifiers,
		summaryMessage(summary, len(fresh), eng.nowFunc()))

	delivered := false
	for _, o := range summary.Deliveries {
		if o.Delivered {
			delivered = true
		}
		if eng.store != nil {
			if err := eng.store.InsertDelivery(ctx, summary.RunID, o); err != nil {
				log.Warn("recording delivery failed", "destination", o.Destination, "error", err)
			}
		}
	}
	if !delivered {
		return
	}

	summary.Notified = len(fresh)
	metrics.NotifiedProductsTotal.Add(float64(len(fresh)))
	if !eng.dedup {
		return
	}

	keys := make([]string, 0, len(fresh))
	for i := range fresh {
		keys = append(keys, fresh[i].IdentityKey())
	}
	if err := led.Persist(ctx, keys); err != nil {
		log.Error("persisting ledger failed, products may alert again", "error", err)
	}
	if _, err := led.Prune(ctx); err != nil {
		log.Warn("pruning ledger failed", "error", err)
	}
}

func summaryMessage(s *domain.RunSummary, pending int, now time.Time) *notify.Summary {
	msg := &notify.Summary{
		RunID:           s.RunID,
		ProductsScraped: s.ProductsScraped,
		Qualifying:      s.Qualifying,
		Notified:        pending,
		FinishedAt:      now,
	}
	for i := range s.Collectors {
		r := &s.Collectors[i]
		msg.Retailers = append(msg.Retailers, r.Retailer())
		if !r.Succeeded() {
			msg.Failed = append(msg.Failed, r.Retailer())
		}
	}
	return msg
}

func (eng *Engine) record(s *domain.RunSummary, log *slog.Logger) {
	result := resultSuccess
	switch {
	case s.Cancelled:
		result = resultCancelled
	case s.AllCollectorsFailed():
		result = resultFailed
	case s.Failures() > 0 || len(s.FailedDeliveries()) > 0:
		result = resultPartial
	}
	metrics.RunsTotal.WithLabelValues(result).Inc()
	metrics.RunDuration.Observe(s.Elapsed().Seconds())

	log.Info("run finished",
		"result", result,
		"successes", s.Successes(),
		"failures", s.Failures(),
		"success_ratio", s.SuccessRatio(),
		"scraped", s.ProductsScraped,
		"invalid", s.ProductsInvalid,
		"qualifying", s.Qualifying,
		"duplicates", s.Duplicates,
		"notified", s.Notified,
		"failed_deliveries", len(s.FailedDeliveries()),
		"elapsed", s.Elapsed(),
	)

	eng.mu.Lock()
	eng.last = s
	eng.mu.Unlock()
}
