package domain

import "github.com/shopspring/decimal"

// Product is the slice of a catalog entry the checkout engine needs.
type Product struct {
	ID               uint64          `json:"id"`
	Name             string          `json:"name"`
	Image            string          `json:"image,omitempty"`
	BasePrice        decimal.Decimal `json:"basePrice"`
	DiscountPercent  decimal.Decimal `json:"discountPercent"`
	BulkThreshold    int64           `json:"bulkThreshold"`
	BulkExtraPercent decimal.Decimal `json:"bulkExtraPercent"`
	Stock            int64           `json:"stock"`
	IsAvailable      bool            `json:"isAvailable"`
	Location         string          `json:"warehouseLocation,omitempty"`
}
