package repository

import (
	"checkout-service/internal/domain"
	"context"

	"github.com/shopspring/decimal"
)

type WalletRepository interface {
	Get(ctx context.Context, userID string) (*domain.Wallet, error)
	// Credit creates the wallet on first use.
	Credit(ctx context.Context, userID string, amount decimal.Decimal) error
	// Debit fails with ErrInsufficientBalance instead of going negative.
	Debit(ctx context.Context, userID string, amount decimal.Decimal) error
}
