package repository

import (
	"checkout-service/internal/domain"
	"context"
)

// OrderRepository finders return nil, nil when nothing matches.
type OrderRepository interface {
	Create(ctx context.Context, order *domain.Order) error
	FindByID(ctx context.Context, id string) (*domain.Order, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error)
	// Transition applies changes only while the stored order still matches
	// guard. It reports whether a row was updated.
	Transition(ctx context.Context, id string, guard domain.OrderGuard, changes domain.OrderChanges) (bool, error)
}
