package memory

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
	"context"
	"sort"
	"time"
)

type orderRepo struct {
	v view
}

func (r *orderRepo) Create(ctx context.Context, order *domain.Order) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.orders[order.ID]; ok {
			return repository.ErrDuplicate
		}
		if order.GatewayOrderID != nil {
			for _, o := range st.orders {
				if o.GatewayOrderID != nil && *o.GatewayOrderID == *order.GatewayOrderID {
					return repository.ErrDuplicate
				}
			}
		}
		now := time.Now()
		order.CreatedAt, order.UpdatedAt = now, now
		for i := range order.Items {
			order.Items[i].OrderID = order.ID
			if order.Items[i].ID == 0 {
				order.Items[i].ID = st.id()
			}
		}
		st.orders[order.ID] = cloneOrder(order)
		return nil
	})
}

func (r *orderRepo) FindByID(ctx context.Context, id string) (*domain.Order, error) {
	var out *domain.Order
	err := r.v.do(func(st *state) error {
		if o, ok := st.orders[id]; ok {
			out = cloneOrder(o)
		}
		return nil
	})
	return out, err
}

func (r *orderRepo) FindByGatewayOrderID(ctx context.Context, gatewayOrderID string) (*domain.Order, error) {
	var out *domain.Order
	err := r.v.do(func(st *state) error {
		for _, o := range st.orders {
			if o.GatewayOrderID != nil && *o.GatewayOrderID == gatewayOrderID {
				out = cloneOrder(o)
				return nil
			}
		}
		return nil
	})
	return out, err
}

func (r *orderRepo) ListByUser(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	var out []domain.Order
	err := r.v.do(func(st *state) error {
		for _, o := range st.orders {
			if o.UserID == userID {
				out = append(out, *cloneOrder(o))
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

func (r *orderRepo) Transition(ctx context.Context, id string, guard domain.OrderGuard, changes domain.OrderChanges) (bool, error) {
	applied := false
	err := r.v.do(func(st *state) error {
		o, ok := st.orders[id]
		if !ok || !guard.Matches(o) {
			return nil
		}
		changes.Apply(o)
		o.UpdatedAt = time.Now()
		applied = true
		return nil
	})
	return applied, err
}
