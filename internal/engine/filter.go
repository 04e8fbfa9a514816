package engine

import (
	"github.com/shopspring/decimal"

	domain "github.com/donaldgifford/discount-notifier/pkg/types"
)

// DefaultThreshold is the minimum discount percentage worth notifying.
var DefaultThreshold = decimal.NewFromInt(70)

// PassesFilter reports whether p's discount meets threshold. The boundary is
// inclusive and a product with no known original price never passes.
func PassesFilter(p *domain.Product, threshold decimal.Decimal) bool {
	pct, ok := p.DiscountPercent()
	if !ok {
		return false
	}
	return pct.GreaterThanOrEqual(threshold)
}
