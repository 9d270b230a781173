package memory

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
	"context"
	"time"

	"github.com/shopspring/decimal"
)

type walletRepo struct {
	v view
}

func (r *walletRepo) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	var out *domain.Wallet
	err := r.v.do(func(st *state) error {
		if w, ok := st.wallets[userID]; ok {
			out = &w
		}
		return nil
	})
	return out, err
}

func (r *walletRepo) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	return r.v.do(func(st *state) error {
		now := time.Now()
		w, ok := st.wallets[userID]
		if !ok {
			w = domain.Wallet{UserID: userID, Balance: decimal.Zero, CreatedAt: now}
		}
		w.Balance = w.Balance.Add(amount)
		w.UpdatedAt = now
		st.wallets[userID] = w
		return nil
	})
}

func (r *walletRepo) Debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	return r.v.do(func(st *state) error {
		w, ok := st.wallets[userID]
		if !ok || w.Balance.LessThan(amount) {
			return repository.ErrInsufficientBalance
		}
		w.Balance = w.Balance.Sub(amount)
		w.UpdatedAt = time.Now()
		st.wallets[userID] = w
		return nil
	})
}
