package memory

import (
	"checkout-service/internal/domain"
	"context"
	"sort"
	"time"
)

type cartRepo struct {
	v view
}

func (r *cartRepo) GetByUser(ctx context.Context, userID string) (*domain.Cart, error) {
	var out *domain.Cart
	err := r.v.do(func(st *state) error {
		if c, ok := st.carts[userID]; ok {
			out = c.Clone()
		}
		return nil
	})
	return out, err
}

func (r *cartRepo) Save(ctx context.Context, cart *domain.Cart) error {
	return r.v.do(func(st *state) error {
		now := time.Now()
		stored := cart.Clone()
		if prev, ok := st.carts[cart.UserID]; ok {
			stored.CreatedAt = prev.CreatedAt
		} else if stored.CreatedAt.IsZero() {
			stored.CreatedAt = now
		}
		stored.UpdatedAt = now
		for i := range stored.Lines {
			stored.Lines[i].UserID = cart.UserID
			stored.Lines[i].Position = i
			if stored.Lines[i].ID == 0 {
				stored.Lines[i].ID = st.id()
			}
		}
		st.carts[cart.UserID] = stored
		*cart = *stored.Clone()
		return nil
	})
}

func (r *cartRepo) Delete(ctx context.Context, userID string) error {
	return r.v.do(func(st *state) error {
		delete(st.carts, userID)
		return nil
	})
}

func (r *cartRepo) ListExpired(ctx context.Context, now time.Time, limit int) ([]string, error) {
	var out []string
	err := r.v.do(func(st *state) error {
		for id, c := range st.carts {
			if c.Expired(now) {
				out = append(out, id)
			}
		}
		return nil
	})
	sort.Strings(out)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, err
}
