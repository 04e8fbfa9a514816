// Package escalation runs one collector invocation, deciding when a direct
// fetch has been blocked and the collector must retry through a browser
// session.
package escalation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/donaldgifford/discount-notifier/internal/browser"
	"github.com/donaldgifford/discount-notifier/internal/collector"
	"github.com/donaldgifford/discount-notifier/internal/config"
	"github.com/donaldgifford/discount-notifier/internal/metrics"
	"github.com/donaldgifford/discount-notifier/pkg/logger"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// ErrNoBrowser is returned when a collector must escalate but no browser
// factory is configured.
var ErrNoBrowser = errors.New("no browser factory configured")

// EvidenceBrowserOnly marks sources that skip the direct attempt.
const EvidenceBrowserOnly = "browser-only source"

type state string

const (
	stateIdle             state = "idle"
	stateDirectAttempt    state = "direct_attempt"
	stateEscalateDecision state = "escalate_decision"
	stateAutomatedAttempt state = "automated_attempt"
	stateSucceeded        state = "succeeded"
	stateFailed           state = "failed"
	stateDone             state = "done"
)

// Controller owns the escalation decision for collector invocations. It is
// safe for concurrent use; browser sessions are bounded by a semaphore.
type Controller struct {
	factory  browser.Factory
	detector *Detector
	sessions *semaphore.Weighted
	timeout  time.Duration
	grace    time.Duration
	log      *slog.Logger
	nowFunc  func() time.Time
}

// Option configures the Controller.
type Option func(*Controller)

// WithDetector overrides the default detector.
func WithDetector(d *Detector) Option {
	return func(c *Controller) {
		c.detector = d
	}
}

// WithTimeout bounds each automated attempt.
func WithTimeout(d time.Duration) Option {
	return func(c *Controller) {
		c.timeout = d
	}
}

// WithGrace bounds how long a timed-out attempt may take to unwind.
func WithGrace(d time.Duration) Option {
	return func(c *Controller) {
		c.grace = d
	}
}

// WithMaxSessions caps concurrent browser sessions.
func WithMaxSessions(n int) Option {
	return func(c *Controller) {
		if n < 1 {
			n = 1
		}
		c.sessions = semaphore.NewWeighted(int64(n))
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Controller) {
		c.log = l
	}
}

// WithNowFunc overrides the clock used for elapsed times.
func WithNowFunc(f func() time.Time) Option {
	return func(c *Controller) {
		c.nowFunc = f
	}
}

// NewController creates a Controller. factory may be nil, in which case
// blocked collectors fail without escalating.
func NewController(factory browser.Factory, opts ...Option) *Controller {
	c := &Controller{
		factory:  factory,
		detector: NewDetector(nil, nil),
		sessions: semaphore.NewWeighted(1),
		timeout:  30 * time.Second,
		grace:    2 * time.Second,
		nowFunc:  time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.log == nil {
		c.log = slog.Default()
	}
	return c
}

// NewFromConfig builds a Controller from the escalation and browser settings.
func NewFromConfig(factory browser.Factory, esc config.EscalationConfig, br config.BrowserConfig, log *slog.Logger) *Controller {
	return NewController(factory,
		WithDetector(NewDetector(esc.BlockingStatuses, esc.Markers)),
		WithTimeout(br.Timeout),
		WithGrace(br.Grace),
		WithMaxSessions(br.MaxSessions),
		WithLogger(log),
	)
}

// invocation carries the state of one Run.
type invocation struct {
	src   *collector.Source
	log   *slog.Logger
	state state
}

func (in *invocation) advance(to state, args ...any) {
	in.log.Debug("escalation transition", append([]any{"from", in.state, "to", to}, args...)...)
	in.state = to
}

// Run executes one collector invocation and converts every outcome,
// including panics and timeouts, into a CollectorResult.
func (c *Controller) Run(ctx context.Context, src *collector.Source) domain.CollectorResult {
	retailer := src.Collector.Retailer()
	in := &invocation{
		src:   src,
		log:   logger.ForComponent(logger.ForCollector(c.log, retailer), "escalation"),
		state: stateIdle,
	}
	start := c.nowFunc()

	products, status, decision, err := c.run(ctx, in)
	in.advance(stateDone, "outcome", decision.Outcome, "status", status)

	elapsed := c.nowFunc().Sub(start)
	metrics.CollectorRunsTotal.WithLabelValues(retailer, string(status)).Inc()
	metrics.CollectorDuration.WithLabelValues(retailer).Observe(elapsed.Seconds())
	metrics.EscalationsTotal.WithLabelValues(retailer, string(decision.Outcome)).Inc()

	return domain.NewCollectorResult(retailer, products, status, elapsed, err, decision)
}

func (c *Controller) run(
	ctx context.Context,
	in *invocation,
) ([]domain.Product, domain.CollectorStatus, domain.EscalationDecision, error) {
	var (
		direct   []domain.Product
		evidence string
	)

	if in.src.Config.Transport == config.TransportBrowser {
		evidence = EvidenceBrowserOnly
		in.advance(stateEscalateDecision, "evidence", evidence)
	} else {
		in.advance(stateDirectAttempt)
		obs := &observingTransport{inner: in.src.Direct, detector: c.detector}
		products, err := safeCollect(ctx, in.src.Collector, obs)
		if err == nil {
			in.advance(stateSucceeded, "products", len(products))
			return products, domain.StatusSuccess, domain.EscalationDecision{Outcome: domain.DirectSucceeded}, nil
		}
		direct = products

		escalate, ev := c.detector.Classify(err, obs.lastPage())
		evidence = ev
		if !escalate || ctx.Err() != nil || !c.canEscalate(in.src.Config) {
			in.advance(stateFailed, "evidence", evidence, "error", err)
			return direct, partialOr(direct), domain.EscalationDecision{
				Outcome:  domain.DirectFailed,
				Evidence: evidence,
			}, err
		}
		in.advance(stateEscalateDecision, "evidence", evidence)
	}

	in.advance(stateAutomatedAttempt)
	products, err := c.automate(ctx, in)
	if err == nil {
		in.advance(stateSucceeded, "products", len(products))
		return products, domain.StatusSuccess, domain.EscalationDecision{
			Outcome:  domain.Escalated,
			Evidence: evidence,
		}, nil
	}

	in.advance(stateFailed, "error", err)
	if len(products) == 0 {
		products = direct
	}
	return products, partialOr(products), domain.EscalationDecision{
		Outcome:         domain.EscalationFailed,
		Evidence:        evidence,
		AutomationError: err.Error(),
	}, err
}

func (*Controller) canEscalate(src config.SourceConfig) bool {
	return src.Transport != config.TransportDirect && src.EscalationEnabled()
}

// automate runs the collector through a browser session under the attempt
// timeout. On timeout the session is closed here and the call returns
// within timeout plus grace even if the collector ignores cancellation.
func (c *Controller) automate(ctx context.Context, in *invocation) ([]domain.Product, error) {
	if c.factory == nil {
		return nil, &domain.AutomationError{Stage: "start", Err: ErrNoBrowser}
	}

	if err := c.sessions.Acquire(ctx, 1); err != nil {
		return nil, &domain.AutomationError{Stage: "start", Err: err}
	}
	defer c.sessions.Release(1)

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	type outcome struct {
		products []domain.Product
		err      error
	}
	done := make(chan outcome, 1)
	slot := &sessionSlot{}

	go func() {
		var out outcome
		defer func() {
			if r := recover(); r != nil {
				out = outcome{err: panicError(r)}
			}
			slot.close()
			done <- out
		}()

		s, err := c.factory.NewSession(attemptCtx, in.src.Config)
		if err != nil {
			out.err = err
			return
		}
		if !slot.set(s) {
			out.err = attemptCtx.Err()
			return
		}
		out.products, out.err = in.src.Collector.Collect(attemptCtx, s)
	}()

	select {
	case out := <-done:
		if out.err != nil {
			return out.products, c.automationError(ctx, attemptCtx, out.err)
		}
		return out.products, nil
	case <-attemptCtx.Done():
	}

	in.log.Warn("automated attempt deadline reached, closing session", "timeout", c.timeout)
	go slot.close()

	var partial []domain.Product
	select {
	case out := <-done:
		partial = out.products
	case <-time.After(c.grace):
		in.log.Warn("automated attempt did not unwind within grace", "grace", c.grace)
	}
	return partial, c.automationError(ctx, attemptCtx, attemptCtx.Err())
}

func (c *Controller) automationError(parent, attempt context.Context, err error) error {
	var aerr *domain.AutomationError
	switch {
	case parent.Err() != nil:
		return &domain.AutomationError{Stage: "cancelled", Err: parent.Err()}
	case errors.Is(attempt.Err(), context.DeadlineExceeded):
		return &domain.AutomationError{Stage: "timeout", Err: fmt.Errorf("%w after %s", domain.ErrTimeout, c.timeout)}
	case errors.As(err, &aerr):
		return err
	default:
		return &domain.AutomationError{Stage: "collect", Err: err}
	}
}

// sessionSlot hands a session from the attempt goroutine to the controller
// so that whichever side finishes first can close it.
type sessionSlot struct {
	mu      sync.Mutex
	session browser.Session
	closed  bool
}

// set stores s, or closes it and reports false when the slot was already
// closed.
func (s *sessionSlot) set(sess browser.Session) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		_ = sess.Close()
		return false
	}
	s.session = sess
	return true
}

// close closes the stored session at most once.
func (s *sessionSlot) close() {
	s.mu.Lock()
	sess := s.session
	s.session = nil
	s.closed = true
	s.mu.Unlock()
	if sess != nil {
		_ = sess.Close()
	}
}

// safeCollect runs a collector, converting a panic into an error.
func safeCollect(ctx context.Context, c collector.Collector, t collector.Transport) (products []domain.Product, err error) {
	defer func() {
		if r := recover(); r != nil {
			products, err = nil, panicError(r)
		}
	}()
	return c.Collect(ctx, t)
}

func panicError(r any) error {
	slog.Error("recovered collector panic", "panic", r, "stack", string(debug.Stack()))
	return fmt.Errorf("collector panic: %v", r)
}

// partialOr returns PartialFailure when some products survived a failure.
func partialOr(products []domain.Product) domain.CollectorStatus {
	if len(products) > 0 {
		return domain.StatusPartialFailure
	}
	return domain.StatusFailure
}
