package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/events"
	"checkout-service/internal/repository"
	"context"
	"log/slog"
	"time"
)

// OrderAdminService holds the fulfillment transitions staff may trigger.
type OrderAdminService struct {
	store    repository.Store
	notifier events.Notifier
	now      func() time.Time
}

func NewOrderAdminService(store repository.Store, notifier events.Notifier) *OrderAdminService {
	return &OrderAdminService{store: store, notifier: notifier, now: time.Now}
}

func (s *OrderAdminService) GetOrder(ctx context.Context, orderID string) (*domain.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.NotFound("order")
	}
	return o, nil
}

func (s *OrderAdminService) load(ctx context.Context, tx repository.Store, orderID string) (*domain.Order, error) {
	o, err := tx.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil {
		return nil, domain.NotFound("order")
	}
	return o, nil
}

// UpdateStatus moves an order along its fulfillment path. Returns go through
// ProcessReturn. Cancelling a paid order puts the sold units back on sale and
// owes the buyer a refund; an unpaid order's units are still held by the
// cart and stay there.
func (s *OrderAdminService) UpdateStatus(ctx context.Context, orderID string, to domain.OrderStatus) (*domain.Order, error) {
	if !to.Valid() {
		return nil, domain.Validation("unknown order status %q", to)
	}
	if to == domain.StatusReturned {
		return s.ProcessReturn(ctx, orderID, "")
	}

	var order *domain.Order
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := s.load(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if !domain.CanTransition(o.Status, to) {
			return domain.InvalidTransition("order %s cannot move from %s to %s", o.ID, o.Status, to)
		}
		if to != domain.StatusCancelled && o.PaymentStatus != domain.PaymentPaid {
			return domain.InvalidTransition("order %s is not paid", o.ID)
		}

		changes := domain.OrderChanges{Status: domain.Ptr(to)}
		if to == domain.StatusDelivered {
			changes.DeliveredAt = domain.Ptr(s.now())
		}
		refund := to == domain.StatusCancelled && o.PaymentStatus == domain.PaymentPaid
		if refund {
			changes.PaymentStatus = domain.Ptr(domain.PaymentRefundInitiated)
		}

		ok, err := tx.Orders().Transition(ctx, o.ID, domain.OrderGuard{Status: o.Status, PaymentStatus: o.PaymentStatus}, changes)
		if err != nil {
			return err
		}
		if !ok {
			return domain.InvalidTransition("order %s changed concurrently, retry", o.ID)
		}
		changes.Apply(o)

		if refund {
			if err := s.restockAndOweRefund(ctx, tx, o); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("order status updated", "order_id", order.ID, "status", order.Status, "payment_status", order.PaymentStatus)
	s.notifier.Notify(ctx, orderEvent(domain.EventOrderStatusChanged, order))
	if order.PaymentStatus == domain.PaymentRefundInitiated {
		s.notifier.Notify(ctx, inventoryEvent(order.UserID, orderProductIDs(order)))
	}
	return order, nil
}

// ProcessReturn takes back a delivered order: status, refund marker and
// restocking of every line commit together.
func (s *OrderAdminService) ProcessReturn(ctx context.Context, orderID, reason string) (*domain.Order, error) {
	var order *domain.Order
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := s.load(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.Status != domain.StatusDelivered || o.IsReturned {
			return domain.InvalidTransition("only delivered orders can be returned, order %s is %s", o.ID, o.Status)
		}

		changes := domain.OrderChanges{
			Status:         domain.Ptr(domain.StatusReturned),
			IsReturned:     domain.Ptr(true),
			ReturnedAt:     domain.Ptr(s.now()),
			ReturnedReason: domain.Ptr(reason),
		}
		paid := o.PaymentStatus == domain.PaymentPaid
		if paid {
			changes.PaymentStatus = domain.Ptr(domain.PaymentRefundInitiated)
		}
		ok, err := tx.Orders().Transition(ctx, o.ID, domain.OrderGuard{Status: domain.StatusDelivered, PaymentStatus: o.PaymentStatus}, changes)
		if err != nil {
			return err
		}
		if !ok {
			return domain.InvalidTransition("order %s changed concurrently, retry", o.ID)
		}
		changes.Apply(o)

		if paid {
			if err := s.restockAndOweRefund(ctx, tx, o); err != nil {
				return err
			}
		} else if err := restock(ctx, tx, o); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("order returned", "order_id", order.ID, "reason", reason)
	s.notifier.Notify(ctx, orderEvent(domain.EventOrderReturned, order))
	s.notifier.Notify(ctx, inventoryEvent(order.UserID, orderProductIDs(order)))
	return order, nil
}

func restock(ctx context.Context, tx repository.Store, o *domain.Order) error {
	for _, it := range o.Items {
		if err := tx.Inventory().Restock(ctx, it.ProductID, it.Quantity); err != nil {
			return err
		}
	}
	return nil
}

func (s *OrderAdminService) restockAndOweRefund(ctx context.Context, tx repository.Store, o *domain.Order) error {
	if err := restock(ctx, tx, o); err != nil {
		return err
	}
	pay, err := tx.Transactions().FindOrderPayment(ctx, o.ID)
	if err != nil {
		return err
	}
	if pay == nil {
		return domain.Consistency("paid order %s has no payment entry", o.ID)
	}
	ok, err := tx.Transactions().Transition(ctx, pay.ID, domain.TxnCompleted, domain.TransactionChanges{
		Status: domain.Ptr(domain.TxnRefundInitiated),
	})
	if err != nil {
		return err
	}
	if !ok {
		return domain.Consistency("payment entry %s of order %s is %s, expected completed", pay.ID, o.ID, pay.Status)
	}
	return nil
}

// CompleteRefund pays an owed refund into the buyer's wallet.
func (s *OrderAdminService) CompleteRefund(ctx context.Context, orderID string) (*domain.Order, error) {
	var (
		order  *domain.Order
		refund *domain.Transaction
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := s.load(ctx, tx, orderID)
		if err != nil {
			return err
		}
		if o.PaymentStatus != domain.PaymentRefundInitiated {
			return domain.InvalidTransition("order %s has no refund in progress", o.ID)
		}
		ok, err := tx.Orders().Transition(ctx, o.ID,
			domain.OrderGuard{PaymentStatus: domain.PaymentRefundInitiated},
			domain.OrderChanges{PaymentStatus: domain.Ptr(domain.PaymentRefunded)},
		)
		if err != nil {
			return err
		}
		if !ok {
			return domain.InvalidTransition("order %s changed concurrently, retry", o.ID)
		}
		o.PaymentStatus = domain.PaymentRefunded

		pay, err := tx.Transactions().FindOrderPayment(ctx, o.ID)
		if err != nil {
			return err
		}
		if pay == nil {
			return domain.Consistency("refunded order %s has no payment entry", o.ID)
		}
		ok, err = tx.Transactions().Transition(ctx, pay.ID, domain.TxnRefundInitiated, domain.TransactionChanges{
			Status: domain.Ptr(domain.TxnRefunded),
		})
		if err != nil {
			return err
		}
		if !ok {
			return domain.Consistency("payment entry %s of order %s is %s, expected refund_initiated", pay.ID, o.ID, pay.Status)
		}

		refund = &domain.Transaction{
			ID:             domain.NewID(),
			UserID:         o.UserID,
			Amount:         pay.Amount,
			Type:           domain.TxnRefundToWallet,
			Status:         domain.TxnCompleted,
			PaymentGateway: domain.PaymentMethodWallet,
			OrderRef:       domain.Ptr(o.ID),
		}
		if err := tx.Transactions().Create(ctx, refund); err != nil {
			return err
		}
		if err := tx.Wallets().Credit(ctx, o.UserID, refund.Amount); err != nil {
			return err
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("refund completed", "order_id", order.ID, "amount", refund.Amount.StringFixed(2))
	s.notifier.Notify(ctx, orderEvent(domain.EventOrderRefunded, order))
	s.notifier.Notify(ctx, walletEvent(domain.EventWalletCredited, refund))
	return order, nil
}
