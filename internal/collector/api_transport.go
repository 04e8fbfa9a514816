package collector

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/hashicorp/go-retryablehttp"

	"github.com/donaldgifford/discount-notifier/internal/metrics"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

const maxAPIBody = 16 << 20

// APITransport fetches JSON endpoints with retries on 429 and 5xx. After the
// retries are spent the last response is returned unchanged so the caller
// can classify it.
type APITransport struct {
	client    *retryablehttp.Client
	limiter   *RateLimiter
	userAgent string
	log       *slog.Logger
}

// APIOption configures the APITransport.
type APIOption func(*APITransport)

// WithAPIRetry sets the retry count and the backoff bounds.
func WithAPIRetry(maxRetries int, waitMin, waitMax time.Duration) APIOption {
	return func(t *APITransport) {
		t.client.RetryMax = maxRetries
		t.client.RetryWaitMin = waitMin
		t.client.RetryWaitMax = waitMax
	}
}

// WithAPITimeout sets the per-attempt HTTP timeout.
func WithAPITimeout(d time.Duration) APIOption {
	return func(t *APITransport) {
		t.client.HTTPClient.Timeout = d
	}
}

// WithAPIRateLimiter spaces requests through r.
func WithAPIRateLimiter(r *RateLimiter) APIOption {
	return func(t *APITransport) {
		t.limiter = r
	}
}

// WithAPIUserAgent overrides the User-Agent header.
func WithAPIUserAgent(ua string) APIOption {
	return func(t *APITransport) {
		t.userAgent = ua
	}
}

// WithAPIHTTPClient overrides the underlying HTTP client.
func WithAPIHTTPClient(hc *http.Client) APIOption {
	return func(t *APITransport) {
		t.client.HTTPClient = hc
	}
}

// WithAPILogger sets the logger. retryablehttp logs retries through it.
func WithAPILogger(l *slog.Logger) APIOption {
	return func(t *APITransport) {
		t.log = l
	}
}

// NewAPITransport creates an APITransport with three retries and a 1s..8s
// exponential backoff.
func NewAPITransport(opts ...APIOption) *APITransport {
	rc := retryablehttp.NewClient()
	rc.RetryMax = 3
	rc.RetryWaitMin = time.Second
	rc.RetryWaitMax = 8 * time.Second
	rc.HTTPClient.Timeout = 20 * time.Second
	rc.ErrorHandler = retryablehttp.PassthroughErrorHandler

	t := &APITransport{client: rc}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = slog.Default()
	}
	rc.Logger = t.log
	return t
}

// Mode reports the direct transport mode.
func (t *APITransport) Mode() domain.TransportMode { return domain.TransportDirect }

// Fetch performs a GET against url.
func (t *APITransport) Fetch(ctx context.Context, url string) (*Page, error) {
	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, &domain.TransportError{URL: url, Err: err}
		}
	}

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if t.userAgent != "" {
		req.Header.Set("User-Agent", t.userAgent)
	}

	start := time.Now()
	resp, err := t.client.Do(req)
	if err != nil {
		metrics.DirectFetchesTotal.WithLabelValues("api", statusClass(0)).Inc()
		return nil, &domain.TransportError{URL: url, Err: err}
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxAPIBody))
	if err != nil {
		return nil, &domain.TransportError{URL: url, Err: fmt.Errorf("reading response body: %w", err)}
	}

	metrics.DirectFetchesTotal.WithLabelValues("api", statusClass(resp.StatusCode)).Inc()
	t.log.Debug("direct fetch",
		"transport", "api",
		"url", url,
		"status", resp.StatusCode,
		"duration", time.Since(start),
	)

	return &Page{
		URL:         url,
		FinalURL:    resp.Request.URL.String(),
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        body,
	}, nil
}

var _ Transport = (*APITransport)(nil)
