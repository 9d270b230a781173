package repository

import (
	"checkout-service/internal/domain"
	"context"
	"time"
)

type CartRepository interface {
	GetByUser(ctx context.Context, userID string) (*domain.Cart, error)
	Save(ctx context.Context, cart *domain.Cart) error
	Delete(ctx context.Context, userID string) error
	ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error)
}
