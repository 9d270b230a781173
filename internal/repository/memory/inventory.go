package memory

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/repository"
	"context"
	"time"
)

type inventoryRepo struct {
	v view
}

func (r *inventoryRepo) Get(ctx context.Context, productID uint64) (*domain.Inventory, error) {
	var out *domain.Inventory
	err := r.v.do(func(st *state) error {
		if inv, ok := st.inventory[productID]; ok {
			out = &inv
		}
		return nil
	})
	return out, err
}

func (r *inventoryRepo) Seed(ctx context.Context, inv *domain.Inventory) error {
	return r.v.do(func(st *state) error {
		if _, ok := st.inventory[inv.ProductID]; ok {
			return nil
		}
		row := *inv
		row.UpdatedAt = time.Now()
		st.inventory[inv.ProductID] = row
		return nil
	})
}

// update applies fn to an existing row; a missing row counts as empty stock.
func (r *inventoryRepo) update(productID uint64, fn func(inv *domain.Inventory) error) error {
	return r.v.do(func(st *state) error {
		inv := st.inventory[productID]
		inv.ProductID = productID
		if err := fn(&inv); err != nil {
			return err
		}
		inv.UpdatedAt = time.Now()
		st.inventory[productID] = inv
		return nil
	})
}

func (r *inventoryRepo) Reserve(ctx context.Context, productID uint64, qty int64) error {
	return r.update(productID, func(inv *domain.Inventory) error {
		if qty <= 0 || inv.Quantity < qty {
			return repository.ErrInsufficientStock
		}
		inv.Quantity -= qty
		inv.Reserved += qty
		return nil
	})
}

func (r *inventoryRepo) Release(ctx context.Context, productID uint64, qty int64) error {
	return r.update(productID, func(inv *domain.Inventory) error {
		if qty <= 0 || inv.Reserved < qty {
			return repository.ErrInsufficientReserved
		}
		inv.Reserved -= qty
		inv.Quantity += qty
		return nil
	})
}

func (r *inventoryRepo) Settle(ctx context.Context, productID uint64, qty int64) error {
	return r.update(productID, func(inv *domain.Inventory) error {
		if qty <= 0 || inv.Reserved < qty {
			return repository.ErrInsufficientReserved
		}
		inv.Reserved -= qty
		return nil
	})
}

func (r *inventoryRepo) Restock(ctx context.Context, productID uint64, qty int64) error {
	return r.update(productID, func(inv *domain.Inventory) error {
		if qty > 0 {
			inv.Quantity += qty
		}
		return nil
	})
}
