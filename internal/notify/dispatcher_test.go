package notify_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	ptestutil "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/discount-notifier/internal/metrics"
	"github.com/donaldgifford/discount-notifier/internal/notify"
	notifyMocks "github.com/donaldgifford/discount-notifier/internal/notify/mocks"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// sleepRecorder captures requested waits instead of sleeping.
type sleepRecorder struct {
	mu    sync.Mutex
	waits []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.waits = append(s.waits, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.waits...)
}

func products() []domain.Product {
	at := time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)
	return []domain.Product{
		domain.NewProduct("A", "coat", "https://a.test/coat", decimal.NewFromInt(100), decimal.NewFromInt(25), at),
		domain.NewProduct("A", "hat", "https://a.test/hat", decimal.NewFromInt(40), decimal.NewFromInt(10), at),
	}
}

func newDispatcher(rec *sleepRecorder, opts ...notify.DispatcherOption) *notify.Dispatcher {
	base := []notify.DispatcherOption{
		notify.WithConstantDelay(time.Minute),
		notify.WithSleep(rec.sleep),
		notify.WithDispatcherLogger(quietLogger()),
	}
	return notify.NewDispatcher(append(base, opts...)...)
}

func TestDeliver_SucceedsAfterTwoFailures(t *testing.T) {
	t.Parallel()

	mn := notifyMocks.NewMockNotifier(t)
	mn.EXPECT().Name().Return("deliver-flaky")
	mn.EXPECT().Send(mock.Anything, mock.Anything).Return(&notify.HTTPError{StatusCode: 502}).Twice()
	mn.EXPECT().Send(mock.Anything, mock.Anything).Return(nil).Once()

	rec := &sleepRecorder{}
	out := newDispatcher(rec).Deliver(context.Background(), "run-1", products(), mn)

	assert.True(t, out.Delivered)
	assert.Equal(t, 3, out.Attempts)
	assert.Equal(t, 2, out.Products)
	assert.Empty(t, out.Error)
	assert.Equal(t, []time.Duration{time.Minute, time.Minute}, rec.recorded())
	assert.InDelta(t, 3, ptestutil.ToFloat64(metrics.NotificationAttemptsTotal.WithLabelValues("deliver-flaky")), 0)
}

func TestDeliver_AlwaysFailingStopsAtMaxAttempts(t *testing.T) {
	t.Parallel()

	mn := notifyMocks.NewMockNotifier(t)
	mn.EXPECT().Name().Return("deliver-down")
	mn.EXPECT().Send(mock.Anything, mock.Anything).Return(errors.New("connection refused")).Times(3)

	rec := &sleepRecorder{}
	out := newDispatcher(rec, notify.WithMaxAttempts(3)).Deliver(context.Background(), "run-1", products(), mn)

	assert.False(t, out.Delivered)
	assert.Equal(t, 3, out.Attempts)
	assert.Contains(t, out.Error, "delivery to deliver-down failed after 3 attempt(s)")
	assert.Contains(t, out.Error, "connection refused")
	assert.Len(t, rec.recorded(), 2)
	assert.InDelta(t, 1, ptestutil.ToFloat64(metrics.NotificationFailuresTotal.WithLabelValues("deliver-down")), 0)
}

func TestDeliver_PermanentFailureDoesNotRetry(t *testing.T) {
	t.Parallel()

	mn := notifyMocks.NewMockNotifier(t)
	mn.EXPECT().Name().Return("deliver-bad-request")
	mn.EXPECT().Send(mock.Anything, mock.Anything).Return(&notify.HTTPError{StatusCode: 400}).Once()

	rec := &sleepRecorder{}
	out := newDispatcher(rec).Deliver(context.Background(), "run-1", products(), mn)

	assert.False(t, out.Delivered)
	assert.Equal(t, 1, out.Attempts)
	assert.Empty(t, rec.recorded())
}

func TestDeliver_HonorsLongerRetryAfter(t *testing.T) {
	t.Parallel()

	mn := notifyMocks.NewMockNotifier(t)
	mn.EXPECT().Name().Return("deliver-throttled")
	mn.EXPECT().Send(mock.Anything, mock.Anything).
		Return(&notify.HTTPError{StatusCode: 429, RetryAfter: 5 * time.Minute}).Once()
	mn.EXPECT().Send(mock.Anything, mock.Anything).
		Return(&notify.HTTPError{StatusCode: 429, RetryAfter: time.Second}).Once()
	mn.EXPECT().Send(mock.Anything, mock.Anything).Return(nil).Once()

	rec := &sleepRecorder{}
	out := newDispatcher(rec).Deliver(context.Background(), "run-1", products(), mn)

	assert.True(t, out.Delivered)
	assert.Equal(t, []time.Duration{5 * time.Minute, time.Minute}, rec.recorded())
}

func TestDeliver_EnvelopeTracksAttempts(t *testing.T) {
	t.Parallel()

	var seen []int
	mn := notifyMocks.NewMockNotifier(t)
	mn.EXPECT().Name().Return("deliver-envelope")
	mn.EXPECT().Send(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, env *domain.NotificationEnvelope) error {
			seen = append(seen, env.Attempt)
			assert.Equal(t, "run-7", env.RunID)
			assert.Equal(t, "deliver-envelope", env.Destination)
			assert.Len(t, env.Products, 2)
			if env.Attempt == 1 {
				assert.NoError(t, env.LastError)
				return errors.New("timeout")
			}
			assert.EqualError(t, env.LastError, "timeout")
			return nil
		}).Times(2)

	out := newDispatcher(&sleepRecorder{}).Deliver(context.Background(), "run-7", products(), mn)
	assert.True(t, out.Delivered)
	assert.Equal(t, []int{1, 2}, seen)
}

func TestDeliver_CancelledContextStopsRetrying(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	mn := notifyMocks.NewMockNotifier(t)
	mn.EXPECT().Name().Return("deliver-cancelled")
	mn.EXPECT().Send(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, *domain.NotificationEnvelope) error {
			cancel()
			return context.Canceled
		}).Once()

	out := newDispatcher(&sleepRecorder{}).Deliver(ctx, "run-1", products(), mn)
	assert.False(t, out.Delivered)
	assert.Equal(t, 1, out.Attempts)
}

func TestDeliverAll_DestinationsAreIndependent(t *testing.T) {
	t.Parallel()

	bad := notifyMocks.NewMockNotifier(t)
	bad.EXPECT().Name().Return("all-prod")
	bad.EXPECT().Send(mock.Anything, mock.Anything).Return(&notify.HTTPError{StatusCode: 500}).Times(3)

	good := notifyMocks.NewMockNotifier(t)
	good.EXPECT().Name().Return("all-dev")
	good.EXPECT().Send(mock.Anything, mock.Anything).Return(nil).Once()

	rec := &sleepRecorder{}
	d := newDispatcher(rec, notify.WithDestinationPause(30*time.Second))
	outcomes := d.DeliverAll(context.Background(), "run-1", products(), []notify.Notifier{bad, good}, nil)

	require.Len(t, outcomes, 2)
	assert.Equal(t, "all-prod", outcomes[0].Destination)
	assert.False(t, outcomes[0].Delivered)
	assert.Equal(t, 3, outcomes[0].Attempts)
	assert.Equal(t, "all-dev", outcomes[1].Destination)
	assert.True(t, outcomes[1].Delivered)

	// Two retry waits for the failing destination, one pause between destinations.
	assert.Equal(t, []time.Duration{time.Minute, time.Minute, 30 * time.Second}, rec.recorded())
}

func TestDeliverAll_InterruptedPauseRecordsSkippedDestinations(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	first := notifyMocks.NewMockNotifier(t)
	first.EXPECT().Name().Return("skip-first")
	first.EXPECT().Send(mock.Anything, mock.Anything).
		RunAndReturn(func(context.Context, *domain.NotificationEnvelope) error {
			cancel()
			return nil
		}).Once()

	second := notifyMocks.NewMockNotifier(t)
	second.EXPECT().Name().Return("skip-second")
	third := notifyMocks.NewMockNotifier(t)
	third.EXPECT().Name().Return("skip-third")

	d := newDispatcher(&sleepRecorder{}, notify.WithDestinationPause(30*time.Second))
	outcomes := d.DeliverAll(ctx, "run-1", products(), []notify.Notifier{first, second, third}, nil)

	require.Len(t, outcomes, 3)
	assert.True(t, outcomes[0].Delivered)
	for i, want := range []string{"skip-second", "skip-third"} {
		o := outcomes[i+1]
		assert.Equal(t, want, o.Destination)
		assert.False(t, o.Delivered)
		assert.Zero(t, o.Attempts)
		assert.Equal(t, 2, o.Products)
		assert.Contains(t, o.Error, context.Canceled.Error())
	}
}

func TestDeliverAll_NoProducts(t *testing.T) {
	t.Parallel()

	mn := notifyMocks.NewMockNotifier(t)

	outcomes := newDispatcher(&sleepRecorder{}).DeliverAll(context.Background(), "run-1", nil, []notify.Notifier{mn}, nil)
	assert.Empty(t, outcomes)
}

// summaryNotifier records summaries alongside deliveries.
type summaryNotifier struct {
	mu        sync.Mutex
	sent      int
	summaries []*notify.Summary
}

func (*summaryNotifier) Name() string { return "summary-dest" }

func (s *summaryNotifier) Send(context.Context, *domain.NotificationEnvelope) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent++
	return nil
}

func (s *summaryNotifier) SendSummary(_ context.Context, sum *notify.Summary) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.summaries = append(s.summaries, sum)
	return nil
}

func TestDeliverAll_Summary(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		enabled       bool
		products      []domain.Product
		wantSent      int
		wantSummaries int
		wantOutcomes  int
	}{
		{name: "disabled", products: products(), wantSent: 1, wantOutcomes: 1},
		{name: "enabled", enabled: true, products: products(), wantSent: 1, wantSummaries: 1, wantOutcomes: 1},
		{name: "enabled without products", enabled: true, wantSummaries: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			n := &summaryNotifier{}
			d := newDispatcher(&sleepRecorder{}, notify.WithSummary(tt.enabled))
			outcomes := d.DeliverAll(context.Background(), "run-1", tt.products,
				[]notify.Notifier{n}, &notify.Summary{RunID: "run-1"})

			assert.Len(t, outcomes, tt.wantOutcomes)
			assert.Equal(t, tt.wantSent, n.sent)
			assert.Len(t, n.summaries, tt.wantSummaries)
		})
	}
}

func TestTestAll(t *testing.T) {
	t.Parallel()

	ok := notify.NewNoOpNotifier("noop", quietLogger())
	broken := notify.NewWebhookNotifier("broken", "http://127.0.0.1:1")
	plain := notifyMocks.NewMockNotifier(t)

	failures := notify.TestAll(context.Background(), []notify.Notifier{ok, broken, plain})
	require.Len(t, failures, 1)
	assert.Contains(t, failures, "broken")
}
