package repository

import (
	"checkout-service/internal/domain"
	"context"
)

// InventoryRepository mutates stock with single-row conditional updates only.
type InventoryRepository interface {
	Get(ctx context.Context, productID uint64) (*domain.Inventory, error)
	// Seed inserts the row if the product has none yet.
	Seed(ctx context.Context, inv *domain.Inventory) error
	// Reserve moves qty from sellable to reserved, or fails with
	// ErrInsufficientStock.
	Reserve(ctx context.Context, productID uint64, qty int64) error
	// Release moves qty from reserved back to sellable, or fails with
	// ErrInsufficientReserved.
	Release(ctx context.Context, productID uint64, qty int64) error
	// Settle drops qty reserved units that have been sold, or fails with
	// ErrInsufficientReserved.
	Settle(ctx context.Context, productID uint64, qty int64) error
	// Restock returns sold units to sellable stock.
	Restock(ctx context.Context, productID uint64, qty int64) error
}
