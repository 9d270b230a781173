package infra

import (
	"checkout-service/internal/domain"
	"context"
)

// CatalogClient returns nil, nil for products the catalog does not know.
type CatalogClient interface {
	GetProduct(ctx context.Context, id uint64) (*domain.Product, error)
}
