package mysql

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
	"context"
	"errors"
	"log/slog"
	"time"

	"gorm.io/gorm"
)

type orderRepo struct {
	db *gorm.DB
}

// Create inserts the order and its items in one statement batch.
func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	if err := r.db.WithContext(ctx).Create(order).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicate
		}
		slog.Error("order create failed", "order_id", order.ID, "error", err)
		return err
	}
	return nil
}

func (r *orderRepo) first(ctx context.Context, query string, args ...any) (*domain.Order, error) {
	var o domain.Order
	err := r.db.WithContext(ctx).Preload("Items").Where(query, args...).First(&o).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &o, nil
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *orderRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	return r.first(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	var out []domain.Order
	q := r.db.WithContext(ctx).Preload("Items").Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		slog.Error("list orders failed", "user_id", userID, "error", err)
		return nil, err
	}
	return out, nil
}

// Transition is a compare-and-swap: the guard goes into the WHERE clause and
// RowsAffected tells whether this caller won.
func (r *orderRepo) Transition(ctx context.Context, id string, guard domain.OrderGuard, changes domain.OrderChanges) (bool, error) {
	q := r.db.WithContext(ctx).Model(&domain.Order{}).Where("id = ?", id)
	if guard.Status != "" {
		q = q.Where("status = ?", guard.Status)
	}
	if guard.PaymentStatus != "" {
		q = q.Where("payment_status = ?", guard.PaymentStatus)
	}
	res := q.Updates(orderColumns(changes))
	if res.Error != nil {
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func orderColumns(c domain.OrderChanges) map[string]any {
	cols := map[string]any{"updated_at": time.Now()}
	if c.Status != nil {
		cols["status"] = *c.Status
	}
	if c.PaymentStatus != nil {
		cols["payment_status"] = *c.PaymentStatus
	}
	if c.PaymentMethod != nil {
		cols["payment_method"] = *c.PaymentMethod
	}
	if c.GatewayTxnID != nil {
		cols["gateway_txn_id"] = *c.GatewayTxnID
	}
	if c.IsReturned != nil {
		cols["is_returned"] = *c.IsReturned
	}
	if c.PaidAt != nil {
		cols["paid_at"] = *c.PaidAt
	}
	if c.DeliveredAt != nil {
		cols["delivered_at"] = *c.DeliveredAt
	}
	if c.ReturnedAt != nil {
		cols["returned_at"] = *c.ReturnedAt
	}
	if c.ReturnedReason != nil {
		cols["returned_reason"] = *c.ReturnedReason
	}
	return cols
}
