package memory

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
	"context"
	"sort"
	"time"
)

type transactionRepo struct {
	v view
}

func (r *transactionRepo) Create(ctx context.Context, txn *domain.Transaction) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.transactions[txn.ID]; ok {
			return repository.ErrDuplicate
		}
		for _, t := range st.transactions {
			if sameRef(t.GatewayOrderID, txn.GatewayOrderID) || sameRef(t.GatewayPayoutID, txn.GatewayPayoutID) {
				return repository.ErrDuplicate
			}
		}
		now := time.Now()
		txn.CreatedAt, txn.UpdatedAt = now, now
		st.transactions[txn.ID] = cloneTransaction(txn)
		return nil
	})
}

func sameRef(a, b *string) bool {
	return a != nil && b != nil && *a == *b
}

func (r *transactionRepo) find(match func(t *domain.Transaction) bool) (*domain.Transaction, error) {
	var out *domain.Transaction
	err := r.v.do(func(st *state) error {
		for _, t := range st.transactions {
			if match(t) {
				out = cloneTransaction(t)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *transactionRepo) FindByID(ctx context.Context, id string) (*domain.Transaction, error) {
	return r.find(func(t *domain.Transaction) bool { return t.ID == id })
}

func (r *transactionRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Transaction, error) {
	return r.find(func(t *domain.Transaction) bool {
		return t.GatewayOrderID != nil && *t.GatewayOrderID == gatewayOrderID
	})
}

func (r *transactionRepo) FindByPayoutID(ctx context.Context, payoutID string) (*domain.Transaction, error) {
	return r.find(func(t *domain.Transaction) bool {
		return t.GatewayPayoutID != nil && *t.GatewayPayoutID == payoutID
	})
}

func (r *transactionRepo) FindOrderPayment(ctx context.Context, orderID string) (*domain.Transaction, error) {
	return r.find(func(t *domain.Transaction) bool {
		return t.Type == domain.TxnOrderPayment && t.OrderRef != nil && *t.OrderRef == orderID
	})
}

func (r *transactionRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	var out []domain.Transaction
	err := r.v.do(func(st *state) error {
		for _, t := range st.transactions {
			if t.UserID == userID {
				out = append(out, *cloneTransaction(t))
			}
		}
		return nil
	})
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}

func (r *transactionRepo) Transition(ctx context.Context, id string, from domain.TransactionStatus, changes domain.TransactionChanges) (bool, error) {
	applied := false
	err := r.v.do(func(st *state) error {
		t, ok := st.transactions[id]
		if !ok || t.Status != from {
			return nil
		}
		if changes.GatewayPayoutID != nil {
			for _, other := range st.transactions {
				if other.ID != id && sameRef(other.GatewayPayoutID, changes.GatewayPayoutID) {
					return repository.ErrDuplicate
				}
			}
		}
		changes.Apply(t)
		t.UpdatedAt = time.Now()
		applied = true
		return nil
	})
	return applied, err
}
