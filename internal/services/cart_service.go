package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/events"
	"checkout-service/internal/infra"
	"checkout-service/internal/pricing"
	"checkout-service/internal/repository"
	"context"
	"log/slog"
	"time"
)

// CartService keeps carts and the inventory ledger in step: every unit in a
// cart is a reserved unit, and both sides change in one transaction.
type CartService struct {
	store    repository.Store
	catalog  infra.CatalogClient
	notifier events.Notifier
	ttl      time.Duration
	now      func() time.Time
}

func NewCartService(store repository.Store, catalog infra.CatalogClient, notifier events.Notifier, ttl time.Duration) *CartService {
	return &CartService{
		store:    store,
		catalog:  catalog,
		notifier: notifier,
		ttl:      ttl,
		now:      time.Now,
	}
}

// GetCart never returns nil; a user without a cart gets an empty one.
func (s *CartService) GetCart(ctx context.Context, userID string) (*domain.Cart, error) {
	cart, err := s.store.Carts().GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		return &domain.Cart{UserID: userID, Lines: []domain.CartLine{}}, nil
	}
	return cart, nil
}

// AddItem reserves qty more units and merges them into the existing line for
// the product, re-pricing the line for its new quantity.
func (s *CartService) AddItem(ctx context.Context, userID string, productID uint64, qty int64) (*domain.Cart, error) {
	if qty <= 0 {
		return nil, domain.Validation("quantity must be a positive integer")
	}
	product, err := s.product(ctx, productID)
	if err != nil {
		return nil, err
	}

	var saved *domain.Cart
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Inventory().Seed(ctx, &domain.Inventory{
			ProductID: product.ID,
			Quantity:  product.Stock,
			Location:  product.Location,
		}); err != nil {
			return err
		}
		if err := reserve(ctx, tx, productID, qty); err != nil {
			return err
		}

		cart, err := s.cartForUpdate(ctx, tx, userID)
		if err != nil {
			return err
		}
		newQty := qty
		if line := cart.Line(productID); line != nil {
			newQty += line.Quantity
		}
		if err := s.putLine(cart, product, newQty); err != nil {
			return err
		}
		if err := tx.Carts().Save(ctx, cart); err != nil {
			return err
		}
		saved = cart
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("cart item added", "user_id", userID, "product_id", productID, "quantity", qty)
	s.notifier.Notify(ctx, inventoryEvent(userID, []uint64{productID}))
	return saved, nil
}

// UpdateQuantity sets the line to qty, reserving or releasing the difference.
// Zero removes the line.
func (s *CartService) UpdateQuantity(ctx context.Context, userID string, productID uint64, qty int64) (*domain.Cart, error) {
	if qty < 0 {
		return nil, domain.Validation("quantity must be a positive integer")
	}
	if qty == 0 {
		return s.RemoveItem(ctx, userID, productID)
	}
	// a product that left the catalog can still be reduced, at its old price
	product, productErr := s.product(ctx, productID)
	if productErr != nil && !domain.IsKind(productErr, domain.KindProductUnavailable) {
		return nil, productErr
	}

	var saved *domain.Cart
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		if cart == nil || cart.Line(productID) == nil {
			return domain.NotFound("cart item")
		}
		line := cart.Line(productID)
		switch delta := qty - line.Quantity; {
		case delta > 0:
			if productErr != nil {
				return productErr
			}
			if err := reserve(ctx, tx, productID, delta); err != nil {
				return err
			}
		case delta < 0:
			if err := release(ctx, tx, productID, -delta); err != nil {
				return err
			}
		default:
			saved = cart
			return nil
		}
		if product == nil {
			line.Quantity = qty
			cart.Extend(expiry(s.now(), s.ttl))
		} else if err := s.putLine(cart, product, qty); err != nil {
			return err
		}
		if err := tx.Carts().Save(ctx, cart); err != nil {
			return err
		}
		saved = cart
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.notifier.Notify(ctx, inventoryEvent(userID, []uint64{productID}))
	return saved, nil
}

// RemoveItem releases the whole line. The cart is deleted once empty.
func (s *CartService) RemoveItem(ctx context.Context, userID string, productID uint64) (*domain.Cart, error) {
	var saved *domain.Cart
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		if cart == nil || cart.Line(productID) == nil {
			return domain.NotFound("cart item")
		}
		if err := release(ctx, tx, productID, cart.Line(productID).Quantity); err != nil {
			return err
		}
		cart.Remove(productID)
		if cart.IsEmpty() {
			saved = &domain.Cart{UserID: userID, Lines: []domain.CartLine{}}
			return tx.Carts().Delete(ctx, userID)
		}
		cart.Extend(expiry(s.now(), s.ttl))
		if err := tx.Carts().Save(ctx, cart); err != nil {
			return err
		}
		saved = cart
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("cart item removed", "user_id", userID, "product_id", productID)
	s.notifier.Notify(ctx, inventoryEvent(userID, []uint64{productID}))
	return saved, nil
}

func (s *CartService) product(ctx context.Context, productID uint64) (*domain.Product, error) {
	p, err := s.catalog.GetProduct(ctx, productID)
	if err != nil {
		return nil, err
	}
	if p == nil || !p.IsAvailable {
		return nil, domain.ProductUnavailable(productID)
	}
	return p, nil
}

func (s *CartService) cartForUpdate(ctx context.Context, tx repository.Store, userID string) (*domain.Cart, error) {
	cart, err := tx.Carts().GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil {
		cart = &domain.Cart{UserID: userID}
	}
	return cart, nil
}

// putLine snapshots the current catalog price for the line and pushes the
// reservation expiry forward.
func (s *CartService) putLine(cart *domain.Cart, product *domain.Product, qty int64) error {
	quote, err := pricing.Price(*product, qty)
	if err != nil {
		return err
	}
	now := s.now()
	cart.Put(domain.CartLine{
		ProductID:       product.ID,
		Name:            product.Name,
		Image:           product.Image,
		Quantity:        qty,
		PriceAtAddition: quote.UnitPrice,
		AddedAt:         now,
	})
	cart.Extend(expiry(now, s.ttl))
	return nil
}
