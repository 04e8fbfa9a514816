package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/donaldgifford/discount-notifier/internal/collector"
	"github.com/donaldgifford/discount-notifier/internal/config"
	"github.com/donaldgifford/discount-notifier/internal/escalation"
	"github.com/donaldgifford/discount-notifier/internal/notify"
	notifyMocks "github.com/donaldgifford/discount-notifier/internal/notify/mocks"
	storeMocks "github.com/donaldgifford/discount-notifier/internal/store/mocks"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

var testNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

// quietLogger returns a logger that discards output for tests.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// namedCollector is a placeholder collector; fakeRunner never calls Collect.
type namedCollector string

func (c namedCollector) Retailer() string { return string(c) }

func (namedCollector) Collect(context.Context, collector.Transport) ([]domain.Product, error) {
	return nil, errors.New("not used")
}

func source(key string) *collector.Source {
	return &collector.Source{
		Config:    config.SourceConfig{Name: key, Key: key},
		Collector: namedCollector(key),
	}
}

func product(retailer, name string, original, sale int64) domain.Product {
	return domain.NewProduct(retailer, name, "https://"+retailer+".test/p/"+name,
		decimal.NewFromInt(original), decimal.NewFromInt(sale), testNow)
}

func ok(retailer string, products ...domain.Product) domain.CollectorResult {
	return domain.NewCollectorResult(retailer, products, domain.StatusSuccess, time.Second, nil,
		domain.EscalationDecision{Outcome: domain.DirectSucceeded})
}

func failed(retailer string, err error) domain.CollectorResult {
	return domain.NewCollectorResult(retailer, nil, domain.StatusFailure, time.Second, err,
		domain.EscalationDecision{Outcome: domain.EscalationFailed})
}

// fakeRunner returns canned results keyed by source key.
type fakeRunner struct {
	results map[string]domain.CollectorResult
	block   chan struct{}

	mu     sync.Mutex
	active int
	peak   int
	calls  int
}

func (f *fakeRunner) Run(ctx context.Context, src *collector.Source) domain.CollectorResult {
	f.mu.Lock()
	f.calls++
	f.active++
	f.peak = max(f.peak, f.active)
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if f.block != nil {
		select {
		case <-f.block:
		case <-ctx.Done():
			return failed(src.Key(), ctx.Err())
		}
	}
	if ctx.Err() != nil {
		return failed(src.Key(), ctx.Err())
	}
	if r, found := f.results[src.Key()]; found {
		return r
	}
	return ok(src.Key())
}

// captureNotifier returns a mock notifier that records delivered envelopes.
func captureNotifier(t *testing.T, name string, sendErr error) (*notifyMocks.MockNotifier, *[][]domain.Product) {
	t.Helper()

	var (
		mu   sync.Mutex
		sent [][]domain.Product
	)
	mn := notifyMocks.NewMockNotifier(t)
	mn.EXPECT().Name().Return(name).Maybe()
	mn.EXPECT().Send(mock.Anything, mock.Anything).
		RunAndReturn(func(_ context.Context, env *domain.NotificationEnvelope) error {
			mu.Lock()
			defer mu.Unlock()
			sent = append(sent, env.Products)
			return sendErr
		}).Maybe()
	return mn, &sent
}

func testDispatcher() *notify.Dispatcher {
	return notify.NewDispatcher(
		notify.WithConstantDelay(0),
		notify.WithSleep(func(ctx context.Context, _ time.Duration) error { return ctx.Err() }),
		notify.WithDispatcherLogger(quietLogger()),
	)
}

func newTestEngine(sources []*collector.Source, r Runner, notifiers []notify.Notifier, opts ...EngineOption) *Engine {
	base := []EngineOption{
		WithLogger(quietLogger()),
		WithNowFunc(func() time.Time { return testNow }),
		WithRunIDFunc(func() string { return "run-test" }),
	}
	return NewEngine(sources, r, testDispatcher(), notifiers, append(base, opts...)...)
}

func TestNewEngine_Defaults(t *testing.T) {
	t.Parallel()

	eng := NewEngine(nil, nil, nil, nil)
	assert.True(t, eng.threshold.Equal(decimal.NewFromInt(70)))
	assert.Equal(t, 1, eng.concurrency)
	assert.Equal(t, 24*time.Hour, eng.retention)
	assert.NotNil(t, eng.log)
	assert.NotEmpty(t, eng.newRunID())
	assert.Nil(t, eng.LastSummary())
}

func TestRun_NoCollectors(t *testing.T) {
	t.Parallel()

	eng := newTestEngine(nil, &fakeRunner{}, nil)
	summary, err := eng.Run(context.Background())
	require.ErrorIs(t, err, ErrNoCollectors)
	assert.Nil(t, summary)
}

func TestRun_IsolatesCollectorFailures(t *testing.T) {
	t.Parallel()

	timeout := &domain.AutomationError{Stage: "timeout", Err: domain.ErrTimeout}
	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("a", product("a", "coat", 100, 20)),
		"b": failed("b", &domain.TransportError{URL: "https://b.test", Err: errors.New("connection reset")}),
		"c": ok("c", product("c", "bag", 200, 50)),
		"d": failed("d", timeout),
		"e": ok("e", product("e", "shoe", 80, 8)),
	}}
	sources := []*collector.Source{source("a"), source("b"), source("c"), source("d"), source("e")}
	mn, sent := captureNotifier(t, "prod", nil)

	eng := newTestEngine(sources, runner, []notify.Notifier{mn})
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Successes())
	assert.Equal(t, 2, summary.Failures())
	assert.InDelta(t, 0.6, summary.SuccessRatio(), 0.0001)
	assert.False(t, summary.AllCollectorsFailed())
	assert.Equal(t, 3, summary.Qualifying)
	assert.Equal(t, 3, summary.Notified)

	require.Len(t, *sent, 1)
	var names []string
	for _, p := range (*sent)[0] {
		names = append(names, p.Retailer)
	}
	assert.Equal(t, []string{"a", "c", "e"}, names)

	require.Len(t, summary.Deliveries, 1)
	assert.True(t, summary.Deliveries[0].Delivered)
	assert.Same(t, summary, eng.LastSummary())
}

func TestRun_FilterEndToEnd(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("A", product("A", "jacket", 100, 25)),
		"b": ok("B", product("B", "shirt", 50, 40)),
	}}
	mn, sent := captureNotifier(t, "prod", nil)

	eng := newTestEngine([]*collector.Source{source("a"), source("b")}, runner, []notify.Notifier{mn})
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 2, summary.ProductsScraped)
	assert.Equal(t, 1, summary.Qualifying)
	require.Len(t, *sent, 1)
	require.Len(t, (*sent)[0], 1)

	got := (*sent)[0][0]
	assert.Equal(t, "A", got.Retailer)
	pct, known := got.DiscountPercent()
	require.True(t, known)
	assert.Equal(t, "75", pct.String())
}

func TestRun_DeduplicatesAndDropsInvalid(t *testing.T) {
	t.Parallel()

	dup := product("shop", "coat", 100, 10)
	invalid := product("shop", "broken", 10, 90)
	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("shop", dup, dup, invalid),
		"b": ok("shop", dup),
	}}
	mn, sent := captureNotifier(t, "prod", nil)

	eng := newTestEngine([]*collector.Source{source("a"), source("b")}, runner, []notify.Notifier{mn},
		WithConcurrency(2))
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 4, summary.ProductsScraped)
	assert.Equal(t, 1, summary.ProductsInvalid)
	assert.Equal(t, 3, summary.Qualifying)
	assert.Equal(t, 2, summary.Duplicates)
	require.Len(t, *sent, 1)
	assert.Len(t, (*sent)[0], 1)
}

func TestRun_WithoutDedupDeliversRepeats(t *testing.T) {
	t.Parallel()

	dup := product("shop", "coat", 100, 10)
	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("shop", dup, dup),
	}}
	mn, sent := captureNotifier(t, "prod", nil)
	ms := storeMocks.NewMockStore(t)
	ms.EXPECT().InsertDelivery(mock.Anything, "run-test", mock.Anything).Return(nil).Once()

	eng := newTestEngine([]*collector.Source{source("a")}, runner, []notify.Notifier{mn},
		WithoutDedup(), WithStore(ms))
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Zero(t, summary.Duplicates)
	assert.Equal(t, 2, summary.Notified)
	require.Len(t, *sent, 1)
	assert.Len(t, (*sent)[0], 2)
}

func TestRun_ThresholdOption(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("A", product("A", "shirt", 50, 40)),
	}}
	mn, sent := captureNotifier(t, "prod", nil)

	eng := newTestEngine([]*collector.Source{source("a")}, runner, []notify.Notifier{mn},
		WithThreshold(decimal.NewFromInt(20)))
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Qualifying)
	assert.Len(t, *sent, 1)
}

func TestRun_NothingQualifiesSkipsDelivery(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("A", product("A", "shirt", 50, 45)),
	}}
	mn := notifyMocks.NewMockNotifier(t)

	eng := newTestEngine([]*collector.Source{source("a")}, runner, []notify.Notifier{mn})
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Empty(t, summary.Deliveries)
	assert.Zero(t, summary.Notified)
}

func TestRun_CancelledSkipsDelivery(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	runner := &fakeRunner{}
	mn := notifyMocks.NewMockNotifier(t)

	eng := newTestEngine([]*collector.Source{source("a"), source("b")}, runner, []notify.Notifier{mn})
	summary, err := eng.Run(ctx)
	require.NoError(t, err)

	assert.True(t, summary.Cancelled)
	assert.True(t, summary.AllCollectorsFailed())
	assert.Empty(t, summary.Deliveries)
}

func TestRun_AllCollectorsFailed(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": failed("a", errors.New("boom")),
		"b": failed("b", errors.New("boom")),
	}}
	eng := newTestEngine([]*collector.Source{source("a"), source("b")}, runner, nil)

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, summary.AllCollectorsFailed())
	assert.Zero(t, summary.SuccessRatio())
}

func TestRun_ConcurrencyIsBounded(t *testing.T) {
	t.Parallel()

	sources := make([]*collector.Source, 8)
	for i := range sources {
		sources[i] = source(fmt.Sprintf("s%d", i))
	}
	runner := &fakeRunner{}

	eng := newTestEngine(sources, runner, nil, WithConcurrency(3))
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	assert.Len(t, summary.Collectors, 8)
	assert.Equal(t, 8, runner.calls)
	assert.LessOrEqual(t, runner.peak, 3)
}

func TestRun_RejectsOverlappingRuns(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{block: make(chan struct{})}
	eng := newTestEngine([]*collector.Source{source("a")}, runner, nil)

	done := make(chan error, 1)
	go func() {
		_, err := eng.Run(context.Background())
		done <- err
	}()

	require.Eventually(t, eng.Running, time.Second, 5*time.Millisecond)
	_, err := eng.Run(context.Background())
	require.ErrorIs(t, err, ErrRunInProgress)

	close(runner.block)
	require.NoError(t, <-done)
	assert.False(t, eng.Running())
}

func TestRun_PersistsLedgerAfterDelivery(t *testing.T) {
	t.Parallel()

	seen := product("A", "old", 100, 10)
	fresh := product("A", "new", 100, 10)
	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("A", seen, fresh),
	}}

	ms := storeMocks.NewMockStore(t)
	ms.EXPECT().LoadEntries(mock.Anything, testNow.Add(-24*time.Hour)).
		Return([]domain.DedupEntry{{Key: seen.IdentityKey(), FirstSeen: testNow.Add(-time.Hour)}}, nil).Once()
	ms.EXPECT().InsertDelivery(mock.Anything, "run-test", mock.MatchedBy(func(o domain.DeliveryOutcome) bool {
		return o.Destination == "prod" && o.Delivered
	})).Return(nil).Once()
	ms.EXPECT().SaveEntries(mock.Anything, []domain.DedupEntry{{Key: fresh.IdentityKey(), FirstSeen: testNow}}).
		Return(nil).Once()
	ms.EXPECT().PruneEntries(mock.Anything, testNow.Add(-24*time.Hour)).Return(int64(0), nil).Once()

	mn, sent := captureNotifier(t, "prod", nil)
	eng := newTestEngine([]*collector.Source{source("a")}, runner, []notify.Notifier{mn}, WithStore(ms))

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Duplicates)
	require.Len(t, *sent, 1)
	require.Len(t, (*sent)[0], 1)
	assert.Equal(t, "new", (*sent)[0][0].Name)
}

func TestRun_FailedDeliveryIsNotPersisted(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("A", product("A", "coat", 100, 10)),
	}}

	ms := storeMocks.NewMockStore(t)
	ms.EXPECT().LoadEntries(mock.Anything, mock.Anything).Return(nil, nil).Once()
	ms.EXPECT().InsertDelivery(mock.Anything, "run-test", mock.MatchedBy(func(o domain.DeliveryOutcome) bool {
		return !o.Delivered && o.Attempts == 3
	})).Return(nil).Once()

	mn, _ := captureNotifier(t, "prod", &notify.HTTPError{StatusCode: 503})
	eng := newTestEngine([]*collector.Source{source("a")}, runner, []notify.Notifier{mn}, WithStore(ms))

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Zero(t, summary.Notified)
	require.Len(t, summary.FailedDeliveries(), 1)
}

func TestRun_LedgerLoadFailureDegrades(t *testing.T) {
	t.Parallel()

	runner := &fakeRunner{results: map[string]domain.CollectorResult{
		"a": ok("A", product("A", "coat", 100, 10)),
	}}

	ms := storeMocks.NewMockStore(t)
	ms.EXPECT().LoadEntries(mock.Anything, mock.Anything).Return(nil, errors.New("db down")).Once()
	ms.EXPECT().InsertDelivery(mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
	ms.EXPECT().SaveEntries(mock.Anything, mock.Anything).Return(nil).Once()
	ms.EXPECT().PruneEntries(mock.Anything, mock.Anything).Return(int64(0), nil).Once()

	mn, sent := captureNotifier(t, "prod", nil)
	eng := newTestEngine([]*collector.Source{source("a")}, runner, []notify.Notifier{mn}, WithStore(ms))

	summary, err := eng.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Notified)
	assert.Len(t, *sent, 1)
}

// stubTransport serves canned bodies or fails.
type stubTransport struct {
	status int
	body   string
	err    error
}

func (s *stubTransport) Fetch(_ context.Context, url string) (*collector.Page, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &collector.Page{URL: url, FinalURL: url, StatusCode: s.status, Body: []byte(s.body)}, nil
}

func (*stubTransport) Mode() domain.TransportMode { return domain.TransportDirect }

const jsonLDPage = `<html><head><script type="application/ld+json">
{"@type":"Product","name":"Wool Coat","url":"https://%s.test/p/coat",
 "offers":{"price":25,"priceSpecification":{"priceType":"https://schema.org/StrikethroughPrice","price":100}}}
</script></head></html>`

func TestRun_WithEscalationController(t *testing.T) {
	t.Parallel()

	mk := func(key string, tr collector.Transport) *collector.Source {
		url := "https://" + key + ".test/sale"
		return &collector.Source{
			Config:    config.SourceConfig{Name: key, Key: key, Kind: config.KindJSONLD, URL: url},
			Collector: collector.NewJSONLDCollector(key, url),
			Direct:    tr,
		}
	}
	sources := []*collector.Source{
		mk("good", &stubTransport{status: 200, body: fmt.Sprintf(jsonLDPage, "good")}),
		mk("down", &stubTransport{err: &domain.TransportError{URL: "https://down.test", Err: errors.New("refused")}}),
		mk("blocked", &stubTransport{status: 403, body: "denied"}),
	}
	ctrl := escalation.NewController(nil, escalation.WithLogger(quietLogger()))
	mn, sent := captureNotifier(t, "prod", nil)

	eng := newTestEngine(sources, ctrl, []notify.Notifier{mn})
	summary, err := eng.Run(context.Background())
	require.NoError(t, err)

	views := summary.CollectorViews()
	require.Len(t, views, 3)
	assert.Equal(t, domain.StatusSuccess, views[0].Status)
	assert.Equal(t, domain.StatusFailure, views[1].Status)
	assert.Equal(t, domain.DirectFailed, views[1].Escalation.Outcome)
	assert.Equal(t, domain.StatusFailure, views[2].Status)
	assert.Equal(t, domain.EscalationFailed, views[2].Escalation.Outcome)

	require.Len(t, *sent, 1)
	require.Len(t, (*sent)[0], 1)
	assert.Equal(t, "good", (*sent)[0][0].Retailer)
}
