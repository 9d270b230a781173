package mysql

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type inventoryRepo struct {
	db *gorm.DB
}

func (r *inventoryRepo) Get(ctx context.Context, productID uint64) (*domain.Inventory, error) {
	var inv domain.Inventory
	if err := r.db.WithContext(ctx).First(&inv, "product_id = ?", productID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &inv, nil
}

func (r *inventoryRepo) Seed(ctx context.Context, inv *domain.Inventory) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(inv).Error
}

// adjust runs one conditional UPDATE. Zero affected rows means the condition
// did not hold at the moment of the write.
func (r *inventoryRepo) adjust(ctx context.Context, productID uint64, cond string, condArg int64, cols map[string]any, miss error) error {
	q := r.db.WithContext(ctx).Model(&domain.Inventory{}).Where("product_id = ?", productID)
	if cond != "" {
		q = q.Where(cond, condArg)
	}
	res := q.Updates(cols)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return miss
	}
	return nil
}

func (r *inventoryRepo) Reserve(ctx context.Context, productID uint64, qty int64) error {
	if qty <= 0 {
		return repository.ErrInsufficientStock
	}
	return r.adjust(ctx, productID, "quantity >= ?", qty, map[string]any{
		"quantity": gorm.Expr("quantity - ?", qty),
		"reserved": gorm.Expr("reserved + ?", qty),
	}, repository.ErrInsufficientStock)
}

func (r *inventoryRepo) Release(ctx context.Context, productID uint64, qty int64) error {
	if qty <= 0 {
		return repository.ErrInsufficientReserved
	}
	return r.adjust(ctx, productID, "reserved >= ?", qty, map[string]any{
		"quantity": gorm.Expr("quantity + ?", qty),
		"reserved": gorm.Expr("reserved - ?", qty),
	}, repository.ErrInsufficientReserved)
}

func (r *inventoryRepo) Settle(ctx context.Context, productID uint64, qty int64) error {
	if qty <= 0 {
		return repository.ErrInsufficientReserved
	}
	return r.adjust(ctx, productID, "reserved >= ?", qty, map[string]any{
		"reserved": gorm.Expr("reserved - ?", qty),
	}, repository.ErrInsufficientReserved)
}

func (r *inventoryRepo) Restock(ctx context.Context, productID uint64, qty int64) error {
	if qty <= 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "product_id"}},
			DoUpdates: clause.Assignments(map[string]any{"quantity": gorm.Expr("quantity + ?", qty)}),
		}).
		Create(&domain.Inventory{ProductID: productID, Quantity: qty}).Error
}
