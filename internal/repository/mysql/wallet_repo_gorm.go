package mysql

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
	"context"
	"errors"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type walletRepo struct {
	db *gorm.DB
}

func (r *walletRepo) Get(ctx context.Context, userID string) (*domain.Wallet, error) {
	var w domain.Wallet
	if err := r.db.WithContext(ctx).First(&w, "user_id = ?", userID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &w, nil
}

func (r *walletRepo) Credit(ctx context.Context, userID string, amount decimal.Decimal) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.Assignments(map[string]any{"balance": gorm.Expr("balance + ?", amount)}),
		}).
		Create(&domain.Wallet{UserID: userID, Balance: amount}).Error
}

func (r *walletRepo) Debit(ctx context.Context, userID string, amount decimal.Decimal) error {
	res := r.db.WithContext(ctx).Model(&domain.Wallet{}).
		Where("user_id = ? AND balance >= ?", userID, amount).
		Update("balance", gorm.Expr("balance - ?", amount))
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return repository.ErrInsufficientBalance
	}
	return nil
}
