// Package collector defines the source collector contract, the direct
// transports that fetch retailer pages, and the config-driven extractors that
// turn those pages into products.
package collector

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// Sentinel errors returned by collectors and transports.
var (
	// ErrEmptyBody means a fetch returned a 2xx response with no content.
	ErrEmptyBody = errors.New("empty response body")
	// ErrNoStructuredData means a page held none of the product data the
	// extractor looks for. Anti-bot interstitials usually surface this way.
	ErrNoStructuredData = errors.New("no structured product data")
	// ErrPageBudgetExhausted is returned by a transport that has served its
	// page allowance. Collectors stop paginating when they see it.
	ErrPageBudgetExhausted = errors.New("page budget exhausted")
)

// Page is one fetched document.
type Page struct {
	URL         string
	FinalURL    string
	StatusCode  int
	ContentType string
	Body        []byte
}

// StatusError is a non-2xx response from a retailer.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d from %s", e.StatusCode, e.URL)
}

// Check returns a StatusError for non-2xx pages and ErrEmptyBody for pages
// without content.
func (p *Page) Check() error {
	if p.StatusCode != 0 && (p.StatusCode < 200 || p.StatusCode > 299) {
		return &StatusError{URL: p.URL, StatusCode: p.StatusCode}
	}
	if len(strings.TrimSpace(string(p.Body))) == 0 {
		return fmt.Errorf("%s: %w", p.URL, ErrEmptyBody)
	}
	return nil
}

// Transport fetches pages for a collector. Direct transports speak HTTP;
// the automated transport drives a headless browser.
type Transport interface {
	Fetch(ctx context.Context, url string) (*Page, error)
	Mode() domain.TransportMode
}

// Collector gathers sale products from one retailer. It returns typed
// errors for expected failures and may return partial products alongside
// an error when a later page fails.
type Collector interface {
	Retailer() string
	Collect(ctx context.Context, t Transport) ([]domain.Product, error)
}

// pageURL substitutes the page number into a listing URL template.
func pageURL(template string, page int) string {
	return strings.ReplaceAll(template, "{page}", strconv.Itoa(page))
}

// paginated reports whether a URL template has a page placeholder.
func paginated(template string) bool {
	return strings.Contains(template, "{page}")
}

// statusClass buckets a status code for metric labels.
func statusClass(code int) string {
	if code == 0 {
		return "error"
	}
	return strconv.Itoa(code/100) + "xx"
}

// pageExtractor pulls products out of one fetched page. last reports that
// the source has no further pages.
type pageExtractor func(page *Page) (products []domain.Product, last bool, err error)

// walkPages fetches pages from start up to maxPages, extracting products from
// each. A failure after products were collected yields those products with
// the error. An empty page after the first ends pagination.
func walkPages(
	ctx context.Context,
	t Transport,
	template string,
	start, maxPages int,
	extract pageExtractor,
) ([]domain.Product, error) {
	if !paginated(template) {
		maxPages = 1
	}

	var products []domain.Product
	for i := range maxPages {
		if err := ctx.Err(); err != nil {
			return products, fmt.Errorf("collecting pages: %w", err)
		}

		u := pageURL(template, start+i)
		page, err := t.Fetch(ctx, u)
		if err != nil {
			if errors.Is(err, ErrPageBudgetExhausted) && len(products) > 0 {
				return products, nil
			}
			return products, fmt.Errorf("fetching page %d: %w", start+i, err)
		}
		if err := page.Check(); err != nil {
			return products, fmt.Errorf("fetching page %d: %w", start+i, err)
		}

		found, last, err := extract(page)
		if err != nil {
			if i > 0 && errors.Is(err, ErrNoStructuredData) {
				break
			}
			return products, fmt.Errorf("extracting page %d: %w", start+i, err)
		}
		products = append(products, found...)
		if last || (i > 0 && len(found) == 0) {
			break
		}
	}
	return products, nil
}
