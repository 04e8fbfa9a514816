package collector

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// JSONLDCollector reads schema.org Product data embedded in listing pages as
// application/ld+json script blocks.
type JSONLDCollector struct {
	retailer  string
	template  string
	startPage int
	maxPages  int
	currency  string
	nowFunc   func() time.Time
}

// JSONLDOption configures a JSONLDCollector.
type JSONLDOption func(*JSONLDCollector)

// WithJSONLDPages sets the first page number and the page limit.
func WithJSONLDPages(start, maxPages int) JSONLDOption {
	return func(c *JSONLDCollector) {
		c.startPage = start
		c.maxPages = maxPages
	}
}

// WithJSONLDCurrency sets the currency used when offers omit priceCurrency.
func WithJSONLDCurrency(currency string) JSONLDOption {
	return func(c *JSONLDCollector) {
		c.currency = currency
	}
}

// WithJSONLDNowFunc overrides the discovery clock for testing.
func WithJSONLDNowFunc(f func() time.Time) JSONLDOption {
	return func(c *JSONLDCollector) {
		c.nowFunc = f
	}
}

// NewJSONLDCollector creates a collector for the listing URL template, which
// may contain a {page} placeholder.
func NewJSONLDCollector(retailer, template string, opts ...JSONLDOption) *JSONLDCollector {
	c := &JSONLDCollector{
		retailer:  retailer,
		template:  template,
		startPage: 1,
		maxPages:  1,
		currency:  domain.DefaultCurrency,
		nowFunc:   time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Retailer returns the retailer name.
func (c *JSONLDCollector) Retailer() string { return c.retailer }

// Collect walks the listing pages through t.
func (c *JSONLDCollector) Collect(ctx context.Context, t Transport) ([]domain.Product, error) {
	return walkPages(ctx, t, c.template, c.startPage, c.maxPages, c.extract)
}

func (c *JSONLDCollector) extract(page *Page) ([]domain.Product, bool, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, false, &domain.ParseError{URL: page.URL, Err: err}
	}

	base := page.FinalURL
	if base == "" {
		base = page.URL
	}

	var nodes []gjson.Result
	doc.Find(`script[type="application/ld+json"]`).Each(func(_ int, s *goquery.Selection) {
		raw := strings.TrimSpace(s.Text())
		if raw == "" || !gjson.Valid(raw) {
			return
		}
		nodes = appendProductNodes(nodes, gjson.Parse(raw))
	})
	if len(nodes) == 0 {
		return nil, false, &domain.ParseError{URL: page.URL, Err: ErrNoStructuredData}
	}

	now := c.nowFunc()
	products := make([]domain.Product, 0, len(nodes))
	for _, n := range nodes {
		p, ok := c.productFromNode(n, base, now)
		if ok {
			products = append(products, p)
		}
	}
	return products, false, nil
}

// appendProductNodes walks a JSON-LD value and collects every Product node,
// descending into arrays, @graph, and ItemList elements.
func appendProductNodes(out []gjson.Result, v gjson.Result) []gjson.Result {
	switch {
	case v.IsArray():
		for _, el := range v.Array() {
			out = appendProductNodes(out, el)
		}
	case v.IsObject():
		if hasType(v, "Product") {
			return append(out, v)
		}
		if g := v.Get("@graph"); g.Exists() {
			out = appendProductNodes(out, g)
		}
		if items := v.Get("itemListElement"); items.Exists() {
			for _, el := range items.Array() {
				if item := el.Get("item"); item.IsObject() {
					out = appendProductNodes(out, item)
				} else {
					out = appendProductNodes(out, el)
				}
			}
		}
	}
	return out
}

func hasType(v gjson.Result, want string) bool {
	t := v.Get("@type")
	if t.IsArray() {
		for _, el := range t.Array() {
			if el.String() == want {
				return true
			}
		}
		return false
	}
	return t.String() == want
}

func (c *JSONLDCollector) productFromNode(n gjson.Result, base string, now time.Time) (domain.Product, bool) {
	name := strings.TrimSpace(n.Get("name").String())
	offer := n.Get("offers")
	if offer.IsArray() {
		offer = offer.Get("0")
	}

	sale, ok := priceFrom(offer.Get("price"))
	if !ok {
		sale, ok = priceFrom(offer.Get("lowPrice"))
	}
	if name == "" || !ok {
		return domain.Product{}, false
	}

	link := n.Get("url").String()
	if link == "" {
		link = offer.Get("url").String()
	}

	p := domain.NewProduct(c.retailer, name, resolveURL(base, link), decimal.Zero, sale, now)
	p.OriginalPrice = originalPrice(offer, sale)
	p.ImageURL = resolveURL(base, imageFrom(n.Get("image")))
	p.Currency = c.currency
	if cur := offer.Get("priceCurrency").String(); cur != "" {
		p.Currency = strings.ToUpper(cur)
	}
	return p, true
}

// originalPrice looks for a strikethrough or list price specification, then
// falls back to an aggregate offer's highPrice.
func originalPrice(offer gjson.Result, sale decimal.Decimal) decimal.NullDecimal {
	for _, spec := range offer.Get("priceSpecification").Array() {
		kind := spec.Get("priceType").String()
		if strings.Contains(kind, "StrikethroughPrice") || strings.Contains(kind, "ListPrice") {
			if d, ok := priceFrom(spec.Get("price")); ok {
				return decimal.NewNullDecimal(d)
			}
		}
	}
	if d, ok := priceFrom(offer.Get("highPrice")); ok && d.GreaterThan(sale) {
		return decimal.NewNullDecimal(d)
	}
	return decimal.NullDecimal{}
}

func imageFrom(v gjson.Result) string {
	switch {
	case v.IsArray():
		return imageFrom(v.Get("0"))
	case v.IsObject():
		return v.Get("url").String()
	default:
		return v.String()
	}
}

// resolveURL makes ref absolute against base. Empty refs stay empty.
func resolveURL(base, ref string) string {
	ref = strings.TrimSpace(ref)
	if ref == "" || base == "" {
		return ref
	}
	b, err := url.Parse(base)
	if err != nil {
		return ref
	}
	r, err := url.Parse(ref)
	if err != nil {
		return ref
	}
	return b.ResolveReference(r).String()
}

var _ Collector = (*JSONLDCollector)(nil)

// String implements fmt.Stringer for log output.
func (c *JSONLDCollector) String() string {
	return fmt.Sprintf("jsonld(%s)", c.retailer)
}
