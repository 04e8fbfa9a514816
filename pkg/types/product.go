// Package domain defines the core business types for the discount notifier.
package domain

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is assumed when a collector does not report one.
const DefaultCurrency = "GBP"

var hundred = decimal.NewFromInt(100)

// Product validation errors.
var (
	ErrSaleAboveOriginal = errors.New("sale price exceeds original price")
	ErrNegativePrice     = errors.New("negative price")
	ErrMissingRetailer   = errors.New("product has no retailer")
	ErrMissingName       = errors.New("product has no name")
)

// Product is a normalized sale listing produced by a collector.
//
// The discount is never stored; DiscountPercent derives it from the two
// prices on every call so it cannot drift from them.
type Product struct {
	Retailer      string              `json:"retailer"`
	Name          string              `json:"name"`
	URL           string              `json:"url"`
	OriginalPrice decimal.NullDecimal `json:"original_price"`
	SalePrice     decimal.Decimal     `json:"sale_price"`
	Currency      string              `json:"currency"`
	ImageURL      string              `json:"image_url,omitempty"`
	DiscoveredAt  time.Time           `json:"discovered_at"`
}

// NewProduct builds a Product with a known original price, canonicalizing
// the URL and stamping the discovery time.
func NewProduct(retailer, name, rawURL string, original, sale decimal.Decimal, at time.Time) Product {
	return Product{
		Retailer:      retailer,
		Name:          strings.TrimSpace(name),
		URL:           CanonicalURL(rawURL),
		OriginalPrice: decimal.NewNullDecimal(original),
		SalePrice:     sale,
		Currency:      DefaultCurrency,
		DiscoveredAt:  at,
	}
}

// HasOriginalPrice reports whether the original price is known and positive.
func (p *Product) HasOriginalPrice() bool {
	return p.OriginalPrice.Valid && p.OriginalPrice.Decimal.IsPositive()
}

// DiscountPercent returns the percentage reduction of the sale price versus
// the original price, rounded to two decimal places. ok is false when the
// original price is unknown.
func (p *Product) DiscountPercent() (pct decimal.Decimal, ok bool) {
	if !p.HasOriginalPrice() {
		return decimal.Zero, false
	}
	orig := p.OriginalPrice.Decimal
	pct = orig.Sub(p.SalePrice).Div(orig).Mul(hundred).Round(2)
	if pct.IsNegative() {
		return decimal.Zero, true
	}
	if pct.GreaterThan(hundred) {
		return hundred, true
	}
	return pct, true
}

// Savings returns original minus sale, or zero when the original is unknown.
func (p *Product) Savings() decimal.Decimal {
	if !p.HasOriginalPrice() {
		return decimal.Zero
	}
	return p.OriginalPrice.Decimal.Sub(p.SalePrice)
}

// Validate checks the price invariants. A product failing validation must
// never be notified.
func (p *Product) Validate() error {
	var errs []error
	if p.Retailer == "" {
		errs = append(errs, ErrMissingRetailer)
	}
	if p.Name == "" {
		errs = append(errs, ErrMissingName)
	}
	if p.SalePrice.IsNegative() || (p.OriginalPrice.Valid && p.OriginalPrice.Decimal.IsNegative()) {
		errs = append(errs, ErrNegativePrice)
	}
	if p.OriginalPrice.Valid && p.SalePrice.GreaterThan(p.OriginalPrice.Decimal) {
		errs = append(errs, fmt.Errorf("%w (%s > %s)",
			ErrSaleAboveOriginal, p.SalePrice, p.OriginalPrice.Decimal))
	}
	return errors.Join(errs...)
}

// IdentityKey returns the de-duplication key for the product.
//
// The key is retailer plus canonical URL. Products without a URL fall back
// to retailer, lower-cased name, and sale price.
func (p *Product) IdentityKey() string {
	if p.URL != "" {
		return p.Retailer + "|" + CanonicalURL(p.URL)
	}
	return p.Retailer + "|" + strings.ToLower(strings.TrimSpace(p.Name)) + "|" + p.SalePrice.StringFixed(2)
}

// CanonicalURL lowercases scheme and host and drops query, fragment, and any
// trailing slash. Unparseable input is returned trimmed.
func CanonicalURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return raw
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	u.RawQuery = ""
	u.Fragment = ""
	u.RawFragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	u.RawPath = ""
	return u.String()
}
