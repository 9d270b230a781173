package pricing

import "github.com/shopspring/decimal"

// Policy holds the order level charges.
type Policy struct {
	TaxRatePercent        decimal.Decimal
	ShippingFee           decimal.Decimal
	FreeShippingThreshold decimal.Decimal
}

type Totals struct {
	Subtotal        decimal.Decimal
	Tax             decimal.Decimal
	ShippingCharges decimal.Decimal
	TotalAmount     decimal.Decimal
}

// Totals adds tax and shipping to a subtotal. A zero threshold means
// shipping is never free.
func (p Policy) Totals(subtotal decimal.Decimal) Totals {
	tax := subtotal.Mul(p.TaxRatePercent).Div(hundred).Round(2)

	shipping := p.ShippingFee
	if p.FreeShippingThreshold.IsPositive() && subtotal.GreaterThanOrEqual(p.FreeShippingThreshold) {
		shipping = zero
	}

	return Totals{
		Subtotal:        subtotal,
		Tax:             tax,
		ShippingCharges: shipping,
		TotalAmount:     subtotal.Add(tax).Add(shipping),
	}
}
