package repository

import (
	"checkout-service/internal/domain"
	"context"
)

type TransactionRepository interface {
	Create(ctx context.Context, txn *domain.Transaction) error
	FindByID(ctx context.Context, id string) (*domain.Transaction, error)
	FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error)
	FindByPayoutID(ctx context.Context, payoutID string) (*domain.Transaction, error)
	// FindOrderPayment returns the order_payment entry that references the order.
	FindOrderPayment(ctx context.Context, orderID string) (*domain.Transaction, error)
	// ListByUser returns newest first. A limit <= 0 returns everything.
	ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error)
	// Transition applies changes only while the stored status equals from.
	Transition(ctx context.Context, id string, from domain.TransactionStatus, changes domain.TransactionChanges) (bool, error)
}
