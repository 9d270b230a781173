// Package pricing computes cart and order prices. Nothing in here does I/O.
package pricing

import (
	"checkout-service/internal/domain"

	"github.com/shopspring/decimal"
)

var (
	hundred = decimal.NewFromInt(100)
	zero    = decimal.Zero
)

// Quote is the price of a quantity of one product.
type Quote struct {
	UnitPrice                decimal.Decimal
	LineTotal                decimal.Decimal
	EffectiveDiscountPercent decimal.Decimal
}

// Price applies the standard discount, plus the bulk extra once qty reaches
// the bulk threshold. The combined discount is clamped to [0, 100] and the
// unit price is rounded half-up to cents before it is multiplied out.
func Price(p domain.Product, qty int64) (Quote, error) {
	if qty <= 0 {
		return Quote{}, domain.Validation("quantity must be a positive integer")
	}
	if p.BasePrice.IsNegative() {
		return Quote{}, domain.Validation("product %d has a negative base price", p.ID)
	}

	discount := p.DiscountPercent
	if p.BulkThreshold > 0 && qty >= p.BulkThreshold {
		discount = discount.Add(p.BulkExtraPercent)
	}
	discount = clamp(discount, zero, hundred)

	factor := hundred.Sub(discount).Div(hundred)
	unit := p.BasePrice.Mul(factor).Round(2)

	return Quote{
		UnitPrice:                unit,
		LineTotal:                unit.Mul(decimal.NewFromInt(qty)),
		EffectiveDiscountPercent: discount,
	}, nil
}

func clamp(v, lo, hi decimal.Decimal) decimal.Decimal {
	if v.LessThan(lo) {
		return lo
	}
	if v.GreaterThan(hi) {
		return hi
	}
	return v
}
