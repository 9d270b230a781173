package mysql

import (
	"checkout-service/internal/domain"
	"context"
	"errors"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type cartRepo struct {
	db   *gorm.DB
	lock bool
}

// GetByUser locks the cart row when called inside a transaction so two
// mutations of the same cart serialize.
func (r *cartRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	q := r.db.WithContext(ctx)
	if r.lock {
		q = q.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	var c domain.Cart
	err := q.Preload("Lines", func(db *gorm.DB) *gorm.DB {
		return db.Order("position ASC")
	}).First(&c, "user_id = ?", userID).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &c, nil
}

// Save rewrites the cart lines wholesale.
func (r *cartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Lines").Save(cart).Error; err != nil {
			return err
		}
		if err := tx.Where("user_id = ?", cart.UserID).Delete(&domain.CartLine{}).Error; err != nil {
			return err
		}
		if len(cart.Lines) == 0 {
			return nil
		}
		for i := range cart.Lines {
			cart.Lines[i].ID = 0
			cart.Lines[i].UserID = cart.UserID
			cart.Lines[i].Position = i
		}
		return tx.Create(&cart.Lines).Error
	})
}

func (r *cartRepo) Delete(ctx context.Context, userID string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("user_id = ?", userID).Delete(&domain.CartLine{}).Error; err != nil {
			return err
		}
		return tx.Where("user_id = ?", userID).Delete(&domain.Cart{}).Error
	})
}

func (r *cartRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var ids []string
	q := r.db.WithContext(ctx).Model(&domain.Cart{}).
		Where("expires_at IS NOT NULL AND expires_at <= ?", now).
		Order("expires_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Pluck("user_id", &ids).Error; err != nil {
		return nil, err
	}
	return ids, nil
}
