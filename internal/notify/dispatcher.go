package notify

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/donaldgifford/discount-notifier/internal/config"
	"github.com/donaldgifford/discount-notifier/internal/metrics"
	"github.com/donaldgifford/discount-notifier/pkg/logger"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// Dispatcher defaults.
const (
	DefaultMaxAttempts = 3
	DefaultRetryDelay  = 60 * time.Second
)

// Dispatcher delivers product batches to destinations with bounded retry.
// Destinations are independent: a failure on one never blocks another.
type Dispatcher struct {
	maxAttempts int
	newBackOff  func() backoff.BackOff
	sleep       func(ctx context.Context, d time.Duration) error
	pause       time.Duration
	sendSummary bool
	nowFunc     func() time.Time
	log         *slog.Logger
}

// DispatcherOption configures the Dispatcher.
type DispatcherOption func(*Dispatcher)

// WithMaxAttempts caps attempts per destination, including the first.
func WithMaxAttempts(n int) DispatcherOption {
	return func(d *Dispatcher) {
		if n > 0 {
			d.maxAttempts = n
		}
	}
}

// WithConstantDelay waits the same delay between attempts.
func WithConstantDelay(delay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.newBackOff = func() backoff.BackOff {
			return backoff.NewConstantBackOff(delay)
		}
	}
}

// WithExponentialBackoff doubles the delay from initial up to maxDelay.
func WithExponentialBackoff(initial, maxDelay time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.newBackOff = func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = initial
			b.MaxInterval = maxDelay
			b.MaxElapsedTime = 0
			return b
		}
	}
}

// WithBackOff supplies an arbitrary delay policy. The factory is called once
// per delivery.
func WithBackOff(f func() backoff.BackOff) DispatcherOption {
	return func(d *Dispatcher) {
		d.newBackOff = f
	}
}

// WithSleep replaces the wait between attempts and destinations.
func WithSleep(f func(ctx context.Context, d time.Duration) error) DispatcherOption {
	return func(d *Dispatcher) {
		d.sleep = f
	}
}

// WithDestinationPause waits between consecutive destinations.
func WithDestinationPause(p time.Duration) DispatcherOption {
	return func(d *Dispatcher) {
		d.pause = p
	}
}

// WithSummary enables the end-of-run summary message.
func WithSummary(enabled bool) DispatcherOption {
	return func(d *Dispatcher) {
		d.sendSummary = enabled
	}
}

// WithDispatcherLogger sets the logger.
func WithDispatcherLogger(l *slog.Logger) DispatcherOption {
	return func(d *Dispatcher) {
		d.log = l
	}
}

// WithDispatcherNowFunc overrides the clock used for elapsed times.
func WithDispatcherNowFunc(f func() time.Time) DispatcherOption {
	return func(d *Dispatcher) {
		d.nowFunc = f
	}
}

// NewDispatcher creates a Dispatcher with a constant retry delay.
func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		maxAttempts: DefaultMaxAttempts,
		sleep:       sleepContext,
		nowFunc:     time.Now,
	}
	WithConstantDelay(DefaultRetryDelay)(d)
	for _, opt := range opts {
		opt(d)
	}
	if d.log == nil {
		d.log = slog.Default()
	}
	return d
}

// NewDispatcherFromConfig maps the notifications section onto options.
func NewDispatcherFromConfig(cfg *config.NotificationsConfig, log *slog.Logger) *Dispatcher {
	opts := []DispatcherOption{
		WithMaxAttempts(cfg.MaxAttempts),
		WithDestinationPause(cfg.DestinationPause),
		WithSummary(cfg.SendSummary),
		WithDispatcherLogger(log),
	}
	if cfg.Backoff == config.BackoffExponential {
		opts = append(opts, WithExponentialBackoff(cfg.RetryDelay, 8*cfg.RetryDelay))
	} else {
		opts = append(opts, WithConstantDelay(cfg.RetryDelay))
	}
	return NewDispatcher(opts...)
}

// Deliver sends one payload holding every product to n, retrying transient
// failures up to the attempt cap. It never returns an error; the outcome
// carries the terminal state.
func (d *Dispatcher) Deliver(
	ctx context.Context,
	runID string,
	products []domain.Product,
	n Notifier,
) domain.DeliveryOutcome {
	name := n.Name()
	log := logger.ForDestination(logger.ForRun(d.log, runID), name)
	env := &domain.NotificationEnvelope{
		RunID:       runID,
		Destination: name,
		Products:    products,
	}
	b := d.newBackOff()
	b.Reset()
	start := d.nowFunc()

	for env.Attempt < d.maxAttempts {
		env.Attempt++
		metrics.NotificationAttemptsTotal.WithLabelValues(name).Inc()

		callStart := time.Now()
		err := n.Send(ctx, env)
		metrics.NotificationDuration.Observe(time.Since(callStart).Seconds())

		if err == nil {
			env.LastError = nil
			break
		}
		env.LastError = err
		transient := IsTransient(err) && ctx.Err() == nil
		log.Warn("notification attempt failed",
			"attempt", env.Attempt,
			"max_attempts", d.maxAttempts,
			"transient", transient,
			"error", err,
		)
		if !transient || env.Attempt >= d.maxAttempts {
			break
		}

		wait := b.NextBackOff()
		if wait == backoff.Stop {
			break
		}
		if ra := retryAfter(err); ra > wait {
			wait = ra
		}
		if err := d.sleep(ctx, wait); err != nil {
			env.LastError = err
			break
		}
	}

	out := domain.DeliveryOutcome{
		Destination: name,
		Attempts:    env.Attempt,
		Products:    len(products),
		Elapsed:     d.nowFunc().Sub(start),
	}
	if env.LastError == nil {
		out.Delivered = true
		log.Info("notification delivered", "products", len(products), "attempts", env.Attempt)
		return out
	}

	metrics.NotificationFailuresTotal.WithLabelValues(name).Inc()
	derr := &domain.DeliveryError{Destination: name, Attempts: env.Attempt, Err: env.LastError}
	out.Error = derr.Error()
	log.Error("notification failed", "error", derr)
	return out
}

// DeliverAll delivers products to every notifier in order, pausing between
// destinations. When summary is non-nil and summaries are enabled, each
// destination that supports it also receives the run summary.
func (d *Dispatcher) DeliverAll(
	ctx context.Context,
	runID string,
	products []domain.Product,
	notifiers []Notifier,
	summary *Summary,
) []domain.DeliveryOutcome {
	var outcomes []domain.DeliveryOutcome
	sent := false

	for i, n := range notifiers {
		wantSummary := d.sendSummary && summary != nil
		if len(products) == 0 && !wantSummary {
			continue
		}

		if sent && d.pause > 0 {
			if err := d.sleep(ctx, d.pause); err != nil {
				d.log.Warn("delivery interrupted between destinations", "error", err)
				if len(products) > 0 {
					outcomes = append(outcomes, skippedOutcomes(notifiers[i:], len(products), err)...)
				}
				break
			}
		}
		sent = true

		if len(products) > 0 {
			outcomes = append(outcomes, d.Deliver(ctx, runID, products, n))
		}
		if wantSummary {
			d.deliverSummary(ctx, n, summary)
		}
	}
	return outcomes
}

// skippedOutcomes records destinations never attempted because delivery was
// interrupted.
func skippedOutcomes(notifiers []Notifier, products int, cause error) []domain.DeliveryOutcome {
	out := make([]domain.DeliveryOutcome, 0, len(notifiers))
	for _, n := range notifiers {
		name := n.Name()
		metrics.NotificationFailuresTotal.WithLabelValues(name).Inc()
		derr := &domain.DeliveryError{Destination: name, Err: cause}
		out = append(out, domain.DeliveryOutcome{
			Destination: name,
			Products:    products,
			Error:       derr.Error(),
		})
	}
	return out
}

// deliverSummary makes a single best-effort attempt.
func (d *Dispatcher) deliverSummary(ctx context.Context, n Notifier, s *Summary) {
	ss, ok := n.(SummarySender)
	if !ok {
		return
	}
	if err := ss.SendSummary(ctx, s); err != nil {
		d.log.Warn("summary not sent", "destination", n.Name(), "error", err)
	}
}

// TestAll sends a connectivity test to each notifier and returns the
// failures keyed by destination.
func TestAll(ctx context.Context, notifiers []Notifier) map[string]error {
	failures := make(map[string]error)
	for _, n := range notifiers {
		t, ok := n.(Tester)
		if !ok {
			continue
		}
		if err := t.SendTest(ctx); err != nil {
			failures[n.Name()] = err
		}
	}
	return failures
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
