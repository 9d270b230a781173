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

type transactionRepo struct {
	db    *gorm.DB
	codec detailsCodec
}

func (r *transactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	if err := r.codec.seal(txn); err != nil {
		return err
	}
	if err := r.db.WithContext(ctx).Create(txn).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return repository.ErrDuplicate
		}
		slog.Error("transaction create failed", "transaction_id", txn.ID, "error", err)
		return err
	}
	return nil
}

func (r *transactionRepo) first(ctx context.Context, query string, args ...any) (*domain.Transaction, error) {
	var t domain.Transaction
	if err := r.db.WithContext(ctx).Where(query, args...).First(&t).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.codec.open(&t); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *transactionRepo) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *transactionRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error) {
	return r.first(ctx, "gateway_order_id = ?", gatewayOrderID)
}

func (r *transactionRepo) FindByPayoutID(ctx context.Context, payoutID string) (*domain.Transaction, error) {
	return r.first(ctx, "gateway_payout_id = ?", payoutID)
}

func (r *transactionRepo) FindOrderPayment(ctx context.Context, orderID string) (*domain.Transaction, error) {
	return r.first(ctx, "order_ref = ? AND type = ?", orderID, domain.TxnOrderPayment)
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	q := r.db.WithContext(ctx).Where("user_id = ?", userID).Order("created_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&out).Error; err != nil {
		return nil, err
	}
	for i := range out {
		if err := r.codec.open(&out[i]); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *transactionRepo) Transition(ctx context.Context, id string, from domain.TransactionStatus, changes domain.TransactionChanges) (bool, error) {
	res := r.db.WithContext(ctx).Model(&domain.Transaction{}).
		Where("id = ? AND status = ?", id, from).
		Updates(transactionColumns(changes))
	if res.Error != nil {
		if errors.Is(res.Error, gorm.ErrDuplicatedKey) {
			return false, repository.ErrDuplicate
		}
		return false, res.Error
	}
	return res.RowsAffected == 1, nil
}

func transactionColumns(c domain.TransactionChanges) map[string]any {
	cols := map[string]any{"updated_at": time.Now()}
	if c.Status != nil {
		cols["status"] = *c.Status
	}
	if c.GatewayTxnID != nil {
		cols["gateway_txn_id"] = *c.GatewayTxnID
	}
	if c.GatewayPayoutID != nil {
		cols["gateway_payout_id"] = *c.GatewayPayoutID
	}
	if c.Reason != nil {
		cols["reason"] = *c.Reason
	}
	if c.GatewayResponse != nil {
		cols["gateway_response"] = *c.GatewayResponse
	}
	return cols
}
