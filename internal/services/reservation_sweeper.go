package services

import (
	"checkout-service/internal/events"
	"checkout-service/internal/metrics"
	"checkout-service/internal/repository"
	"context"
	"log/slog"
	"time"
)

const sweepBatch = 100

// ReservationSweeper returns the stock held by abandoned carts.
type ReservationSweeper struct {
	store    repository.Store
	notifier events.Notifier
	metrics  *metrics.Metrics
	now      func() time.Time
}

func NewReservationSweeper(store repository.Store, notifier events.Notifier, m *metrics.Metrics) *ReservationSweeper {
	return &ReservationSweeper{store: store, notifier: notifier, metrics: m, now: time.Now}
}

// Sweep releases every expired cart, one transaction per cart. Expiry is
// checked again inside the transaction so a cart touched in the meantime
// survives.
func (s *ReservationSweeper) Sweep(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.store.Carts().ListExpired(ctx, now, sweepBatch)
	if err != nil {
		return 0, err
	}

	swept := 0
	for _, userID := range ids {
		if err := ctx.Err(); err != nil {
			return swept, err
		}
		var released []uint64
		err := s.store.WithTx(ctx, func(tx repository.Store) error {
			cart, err := tx.Carts().GetByUser(ctx, userID)
			if err != nil {
				return err
			}
			if cart == nil || !cart.Expired(now) {
				return nil
			}
			for _, l := range cart.Lines {
				if err := release(ctx, tx, l.ProductID, l.Quantity); err != nil {
					return err
				}
			}
			released = cartProductIDs(cart)
			return tx.Carts().Delete(ctx, userID)
		})
		if err != nil {
			slog.Error("releasing expired cart failed", "user_id", userID, "error", err)
			continue
		}
		if released == nil {
			continue
		}
		swept++
		s.notifier.Notify(ctx, inventoryEvent(userID, released))
	}

	s.metrics.CartsSwept(swept)
	if swept > 0 {
		slog.Info("expired carts released", "count", swept)
	}
	return swept, nil
}

// Run sweeps on every tick until ctx is done.
func (s *ReservationSweeper) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil && ctx.Err() == nil {
				slog.Error("reservation sweep failed", "error", err)
			}
		}
	}
}
