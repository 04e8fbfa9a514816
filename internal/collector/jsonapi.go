package collector

import (
	"context"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	"github.com/donaldgifford/discount-notifier/internal/config"
	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// JSONAPICollector reads products from a paginated JSON endpoint using gjson
// paths configured per source.
type JSONAPICollector struct {
	retailer  string
	template  string
	baseURL   string
	startPage int
	maxPages  int
	currency  string
	paths     config.JSONPaths
	nowFunc   func() time.Time
}

// JSONAPIOption configures a JSONAPICollector.
type JSONAPIOption func(*JSONAPICollector)

// WithJSONAPIPages sets the first page number and the page limit.
func WithJSONAPIPages(start, maxPages int) JSONAPIOption {
	return func(c *JSONAPICollector) {
		c.startPage = start
		c.maxPages = maxPages
	}
}

// WithJSONAPIBaseURL sets the base used to resolve relative product links.
func WithJSONAPIBaseURL(base string) JSONAPIOption {
	return func(c *JSONAPICollector) {
		c.baseURL = base
	}
}

// WithJSONAPICurrency sets the product currency.
func WithJSONAPICurrency(currency string) JSONAPIOption {
	return func(c *JSONAPICollector) {
		c.currency = currency
	}
}

// WithJSONAPINowFunc overrides the discovery clock for testing.
func WithJSONAPINowFunc(f func() time.Time) JSONAPIOption {
	return func(c *JSONAPICollector) {
		c.nowFunc = f
	}
}

// NewJSONAPICollector creates a collector for a JSON endpoint template.
func NewJSONAPICollector(retailer, template string, paths config.JSONPaths, opts ...JSONAPIOption) *JSONAPICollector {
	c := &JSONAPICollector{
		retailer:  retailer,
		template:  template,
		startPage: 1,
		maxPages:  1,
		currency:  domain.DefaultCurrency,
		paths:     paths,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retailer returns the retailer name.
func (c *JSONAPICollector) Retailer() string { return c.retailer }

// Collect walks the endpoint pages through t.
func (c *JSONAPICollector) Collect(ctx context.Context, t Transport) ([]domain.Product, error) {
	return walkPages(ctx, t, c.template, c.startPage, c.maxPages, c.extract)
}

func (c *JSONAPICollector) extract(page *Page) ([]domain.Product, bool, error) {
	body := jsonBody(page.Body)
	if !gjson.Valid(body) {
		return nil, false, &domain.ParseError{URL: page.URL, Err: ErrNoStructuredData}
	}

	items := gjson.Get(body, c.paths.Items)
	if !items.Exists() {
		return nil, false, &domain.ParseError{URL: page.URL, Err: ErrNoStructuredData}
	}

	base := c.baseURL
	if base == "" {
		base = page.FinalURL
	}

	now := c.nowFunc()
	list := items.Array()
	products := make([]domain.Product, 0, len(list))
	for _, item := range list {
		name := strings.TrimSpace(item.Get(c.paths.Name).String())
		sale, ok := priceFrom(item.Get(c.paths.SalePrice))
		if name == "" || !ok {
			continue
		}

		var link string
		if c.paths.URL != "" {
			link = resolveURL(base, item.Get(c.paths.URL).String())
		}

		p := domain.NewProduct(c.retailer, name, link, decimal.Zero, sale, now)
		p.OriginalPrice = decimal.NullDecimal{}
		if c.paths.OriginalPrice != "" {
			if orig, ok := priceFrom(item.Get(c.paths.OriginalPrice)); ok {
				p.OriginalPrice = decimal.NewNullDecimal(orig)
			}
		}
		if c.paths.Image != "" {
			p.ImageURL = resolveURL(base, item.Get(c.paths.Image).String())
		}
		p.Currency = c.currency
		products = append(products, p)
	}
	return products, len(list) == 0, nil
}

// jsonBody unwraps a JSON document that a browser rendered inside <pre>.
func jsonBody(b []byte) string {
	s := strings.TrimSpace(string(b))
	if strings.HasPrefix(s, "<") {
		start := strings.IndexAny(s, "{[")
		end := strings.LastIndexAny(s, "}]")
		if start >= 0 && end > start {
			return s[start : end+1]
		}
	}
	return s
}

var _ Collector = (*JSONAPICollector)(nil)
