package collector

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/donaldgifford/discount-notifier/internal/metrics"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// HTMLTransport fetches listing pages with colly. Non-2xx responses are
// returned as pages so the caller can classify them.
type HTMLTransport struct {
	base      *colly.Collector
	userAgent string
	timeout   time.Duration
	delay     time.Duration
	log       *slog.Logger
}

// HTMLOption configures the HTMLTransport.
type HTMLOption func(*HTMLTransport)

// WithHTMLUserAgent overrides the User-Agent header.
func WithHTMLUserAgent(ua string) HTMLOption {
	return func(t *HTMLTransport) {
		t.userAgent = ua
	}
}

// WithHTMLTimeout sets the per-request timeout.
func WithHTMLTimeout(d time.Duration) HTMLOption {
	return func(t *HTMLTransport) {
		t.timeout = d
	}
}

// WithHTMLDelay sets the minimum delay between requests to the same domain.
func WithHTMLDelay(d time.Duration) HTMLOption {
	return func(t *HTMLTransport) {
		t.delay = d
	}
}

// WithHTMLLogger sets the logger.
func WithHTMLLogger(l *slog.Logger) HTMLOption {
	return func(t *HTMLTransport) {
		t.log = l
	}
}

// NewHTMLTransport creates an HTMLTransport.
func NewHTMLTransport(opts ...HTMLOption) *HTMLTransport {
	t := &HTMLTransport{
		timeout: 20 * time.Second,
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.log == nil {
		t.log = slog.Default()
	}

	options := []colly.CollectorOption{
		colly.AllowURLRevisit(),
		colly.ParseHTTPErrorResponse(),
	}
	if t.userAgent != "" {
		options = append(options, colly.UserAgent(t.userAgent))
	}
	t.base = colly.NewCollector(options...)
	t.base.SetRequestTimeout(t.timeout)
	if t.delay > 0 {
		// Limit only fails on a rule without a glob.
		_ = t.base.Limit(&colly.LimitRule{DomainGlob: "*", Parallelism: 1, Delay: t.delay})
	}
	return t
}

// Mode reports the direct transport mode.
func (t *HTMLTransport) Mode() domain.TransportMode { return domain.TransportDirect }

// Fetch retrieves one page. Network failures become a TransportError.
func (t *HTMLTransport) Fetch(ctx context.Context, url string) (*Page, error) {
	c := t.base.Clone()
	c.Context = ctx

	var page *Page
	c.OnResponse(func(r *colly.Response) {
		page = &Page{
			URL:        url,
			FinalURL:   r.Request.URL.String(),
			StatusCode: r.StatusCode,
			Body:       r.Body,
		}
		if r.Headers != nil {
			page.ContentType = r.Headers.Get("Content-Type")
		}
	})

	start := time.Now()
	err := c.Visit(url)
	c.Wait()

	code := 0
	if page != nil {
		code = page.StatusCode
	}
	metrics.DirectFetchesTotal.WithLabelValues("html", statusClass(code)).Inc()
	t.log.Debug("direct fetch",
		"transport", "html",
		"url", url,
		"status", code,
		"duration", time.Since(start),
	)

	if err != nil {
		return nil, &domain.TransportError{URL: url, Err: err}
	}
	if page == nil {
		return nil, &domain.TransportError{URL: url, Err: errors.New("no response received")}
	}
	return page, nil
}

var _ Transport = (*HTMLTransport)(nil)
