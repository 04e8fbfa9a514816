package collector

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/shopspring/decimal"
	"github.com/tidwall/gjson"
)

// ParsePrice parses a retailer price such as "£1,234.50", "1234.5" or
// "GBP 99". Thousands separators and currency markers are ignored.
func ParsePrice(raw string) (decimal.Decimal, error) {
	var b strings.Builder
	for _, r := range strings.TrimSpace(raw) {
		switch {
		case unicode.IsDigit(r), r == '.', r == '-':
			b.WriteRune(r)
		case r == ',', unicode.IsSpace(r), unicode.IsLetter(r), unicode.Is(unicode.Sc, r):
		default:
			return decimal.Zero, fmt.Errorf("parsing price %q: unexpected %q", raw, r)
		}
	}
	if b.Len() == 0 {
		return decimal.Zero, fmt.Errorf("parsing price %q: no digits", raw)
	}
	d, err := decimal.NewFromString(b.String())
	if err != nil {
		return decimal.Zero, fmt.Errorf("parsing price %q: %w", raw, err)
	}
	return d, nil
}

// priceFrom reads a price from a JSON value that may be a number or a
// formatted string.
func priceFrom(r gjson.Result) (decimal.Decimal, bool) {
	switch r.Type {
	case gjson.Number:
		d, err := decimal.NewFromString(r.Raw)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	case gjson.String:
		d, err := ParsePrice(r.Str)
		if err != nil {
			return decimal.Zero, false
		}
		return d, true
	default:
		return decimal.Zero, false
	}
}
