package notify

import (
	"context"
	"net/http"
	"time"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// WebhookNotifier posts a generic JSON document to any HTTP endpoint.
type WebhookNotifier struct {
	name    string
	url     string
	headers map[string]string
	client  *http.Client
	nowFunc func() time.Time
}

// WebhookOption configures a WebhookNotifier.
type WebhookOption func(*WebhookNotifier)

// WithWebhookHTTPClient sets a custom HTTP client.
func WithWebhookHTTPClient(c *http.Client) WebhookOption {
	return func(w *WebhookNotifier) {
		w.client = c
	}
}

// WithHeaders adds static request headers, e.g. an Authorization token.
func WithHeaders(h map[string]string) WebhookOption {
	return func(w *WebhookNotifier) {
		w.headers = h
	}
}

// WithWebhookNowFunc overrides the clock used for generated_at.
func WithWebhookNowFunc(f func() time.Time) WebhookOption {
	return func(w *WebhookNotifier) {
		w.nowFunc = f
	}
}

// NewWebhookNotifier creates a new WebhookNotifier.
func NewWebhookNotifier(name, url string, opts ...WebhookOption) *WebhookNotifier {
	w := &WebhookNotifier{
		name:    name,
		url:     url,
		client:  &http.Client{Timeout: 10 * time.Second},
		nowFunc: time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

type webhookPayload struct {
	Type        string           `json:"type"`
	RunID       string           `json:"run_id,omitempty"`
	Destination string           `json:"destination"`
	GeneratedAt time.Time        `json:"generated_at"`
	Products    []webhookProduct `json:"products,omitempty"`
	Summary     *webhookSummary  `json:"summary,omitempty"`
}

type webhookProduct struct {
	Retailer        string    `json:"retailer"`
	Name            string    `json:"name"`
	DiscountPercent string    `json:"discount_percent,omitempty"`
	OriginalPrice   string    `json:"original_price,omitempty"`
	SalePrice       string    `json:"sale_price"`
	Currency        string    `json:"currency"`
	URL             string    `json:"url"`
	ImageURL        string    `json:"image_url,omitempty"`
	DiscoveredAt    time.Time `json:"discovered_at"`
}

type webhookSummary struct {
	ProductsScraped int      `json:"products_scraped"`
	Qualifying      int      `json:"qualifying"`
	Notified        int      `json:"notified"`
	Retailers       []string `json:"retailers"`
	Failed          []string `json:"failed,omitempty"`
}

// Name returns the destination name.
func (w *WebhookNotifier) Name() string { return w.name }

// Send posts the products of env.
func (w *WebhookNotifier) Send(ctx context.Context, env *domain.NotificationEnvelope) error {
	payload := webhookPayload{
		Type:        "products",
		RunID:       env.RunID,
		Destination: w.name,
		GeneratedAt: w.nowFunc().UTC(),
		Products:    make([]webhookProduct, 0, len(env.Products)),
	}
	for i := range env.Products {
		payload.Products = append(payload.Products, toWebhookProduct(&env.Products[i]))
	}
	return postJSON(ctx, w.client, w.url, w.headers, payload)
}

// SendSummary posts the end-of-run report.
func (w *WebhookNotifier) SendSummary(ctx context.Context, s *Summary) error {
	return postJSON(ctx, w.client, w.url, w.headers, webhookPayload{
		Type:        "summary",
		RunID:       s.RunID,
		Destination: w.name,
		GeneratedAt: w.nowFunc().UTC(),
		Summary: &webhookSummary{
			ProductsScraped: s.ProductsScraped,
			Qualifying:      s.Qualifying,
			Notified:        s.Notified,
			Retailers:       s.Retailers,
			Failed:          s.Failed,
		},
	})
}

// SendTest posts an empty test document.
func (w *WebhookNotifier) SendTest(ctx context.Context) error {
	return postJSON(ctx, w.client, w.url, w.headers, webhookPayload{
		Type:        "test",
		Destination: w.name,
		GeneratedAt: w.nowFunc().UTC(),
	})
}

func toWebhookProduct(p *domain.Product) webhookProduct {
	out := webhookProduct{
		Retailer:     p.Retailer,
		Name:         p.Name,
		SalePrice:    p.SalePrice.StringFixed(2),
		Currency:     p.Currency,
		URL:          p.URL,
		ImageURL:     p.ImageURL,
		DiscoveredAt: p.DiscoveredAt.UTC(),
	}
	if out.Currency == "" {
		out.Currency = domain.DefaultCurrency
	}
	if pct, ok := p.DiscountPercent(); ok {
		out.DiscountPercent = pct.StringFixed(2)
		out.OriginalPrice = p.OriginalPrice.Decimal.StringFixed(2)
	}
	return out
}
