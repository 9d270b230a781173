package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/infra"
	"checkout-service/internal/repository"
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"
)

// Outcome describes what an externally triggered transition did.
type Outcome string

const (
	OutcomeApplied   Outcome = "applied"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
	OutcomeRejected  Outcome = "rejected"
)

const maxCatalogFetch = 8

// fetchProducts loads catalog entries concurrently. Unknown or unavailable
// products fail with ProductUnavailable.
func fetchProducts(ctx context.Context, catalog infra.CatalogClient, ids []uint64) (map[uint64]*domain.Product, error) {
	products := make([]*domain.Product, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxCatalogFetch)
	for i, id := range ids {
		g.Go(func() error {
			p, err := catalog.GetProduct(gctx, id)
			if err != nil {
				return fmt.Errorf("catalog lookup %d: %w", id, err)
			}
			if p == nil || !p.IsAvailable {
				return domain.ProductUnavailable(id)
			}
			products[i] = p
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make(map[uint64]*domain.Product, len(ids))
	for _, p := range products {
		out[p.ID] = p
	}
	return out, nil
}

func cartProductIDs(c *domain.Cart) []uint64 {
	ids := make([]uint64, 0, len(c.Lines))
	for _, l := range c.Lines {
		ids = append(ids, l.ProductID)
	}
	return ids
}

func orderProductIDs(o *domain.Order) []uint64 {
	ids := make([]uint64, 0, len(o.Items))
	for _, it := range o.Items {
		ids = append(ids, it.ProductID)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// stockError turns a failed reservation into a user facing error naming the
// product and what is left.
func stockError(ctx context.Context, tx repository.Store, productID uint64, requested int64) error {
	inv, err := tx.Inventory().Get(ctx, productID)
	if err != nil {
		return err
	}
	var available int64
	if inv != nil {
		available = inv.Quantity
	}
	return domain.InsufficientStock(productID, requested, available)
}

func reserve(ctx context.Context, tx repository.Store, productID uint64, qty int64) error {
	err := tx.Inventory().Reserve(ctx, productID, qty)
	if errors.Is(err, repository.ErrInsufficientStock) {
		return stockError(ctx, tx, productID, qty)
	}
	return err
}

func release(ctx context.Context, tx repository.Store, productID uint64, qty int64) error {
	err := tx.Inventory().Release(ctx, productID, qty)
	if errors.Is(err, repository.ErrInsufficientReserved) {
		return domain.Consistency("product %d has fewer than %d reserved units", productID, qty)
	}
	return err
}

func expiry(now time.Time, ttl time.Duration) *time.Time {
	if ttl <= 0 {
		return nil
	}
	t := now.Add(ttl)
	return &t
}

func inventoryEvent(userID string, ids []uint64) domain.Event {
	evt := domain.NewEvent(domain.EventInventoryChanged)
	evt.UserID = userID
	evt.ProductIDs = ids
	return evt
}

func orderEvent(name string, o *domain.Order) domain.Event {
	evt := domain.NewEvent(name).WithAmount(o.TotalAmount)
	evt.UserID = o.UserID
	evt.OrderID = o.ID
	evt.Status = string(o.Status)
	evt.ProductIDs = orderProductIDs(o)
	return evt
}

func walletEvent(name string, t *domain.Transaction) domain.Event {
	evt := domain.NewEvent(name).WithAmount(t.Amount)
	evt.UserID = t.UserID
	evt.TxnID = t.ID
	evt.Status = string(t.Status)
	return evt
}
