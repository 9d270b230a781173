package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/events"
	"checkout-service/internal/infra"
	"checkout-service/internal/infra/gateway"
	"checkout-service/internal/pricing"
	"checkout-service/internal/repository"
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
)

type CheckoutService struct {
	store       repository.Store
	catalog     infra.CatalogClient
	gateway     gateway.Client
	notifier    events.Notifier
	policy      pricing.Policy
	gatewayName string
	holdWindow  time.Duration
	now         func() time.Time
}

func NewCheckoutService(
	store repository.Store,
	catalog infra.CatalogClient,
	gw gateway.Client,
	notifier events.Notifier,
	policy pricing.Policy,
	gatewayName string,
	holdWindow time.Duration,
) *CheckoutService {
	return &CheckoutService{
		store:       store,
		catalog:     catalog,
		gateway:     gw,
		notifier:    notifier,
		policy:      policy,
		gatewayName: gatewayName,
		holdWindow:  holdWindow,
		now:         time.Now,
	}
}

// GatewayCheckout is what the caller needs to send the buyer to the provider.
// Pending means the provider did not answer in time and the order waits for
// a webhook or a status poll.
type GatewayCheckout struct {
	Order       *domain.Order `json:"order"`
	Token       string        `json:"token,omitempty"`
	RedirectURL string        `json:"redirectUrl,omitempty"`
	Pending     bool          `json:"pending"`
}

// InitiateGatewayCheckout creates a pending order from the cart and asks the
// provider for a payment session. Stock stays reserved by the cart until the
// payment is confirmed.
func (s *CheckoutService) InitiateGatewayCheckout(ctx context.Context, userID string, shipping domain.ShippingInfo) (*GatewayCheckout, error) {
	products, err := s.cartProducts(ctx, userID)
	if err != nil {
		return nil, err
	}

	var order *domain.Order
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		o, err := s.buildOrder(ctx, tx, userID, cart, products, shipping)
		if err != nil {
			return err
		}
		o.Status = domain.StatusPending
		o.PaymentStatus = domain.PaymentPending
		o.PaymentMethod = s.gatewayName
		o.GatewayOrderID = domain.Ptr(domain.NewCorrelationID(domain.CorrelationOrder))
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}

		// hold the reservation while the buyer is at the provider
		if s.holdWindow > 0 {
			cart.Extend(expiry(s.now(), s.holdWindow))
			if err := tx.Carts().Save(ctx, cart); err != nil {
				return err
			}
		}
		order = o
		return nil
	})
	if err != nil {
		return nil, err
	}

	log := slog.With("order_id", order.ID, "correlation_id", *order.GatewayOrderID, "user_id", userID)
	log.Info("order created for gateway checkout", "total", order.TotalAmount.StringFixed(2))
	s.notifier.Notify(ctx, orderEvent(domain.EventOrderCreated, order))

	session, err := s.gateway.InitiatePayment(ctx, gateway.PaymentRequest{
		Amount:        order.TotalAmount,
		CorrelationID: *order.GatewayOrderID,
		CustomerID:    userID,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrTimeout) {
			log.Warn("payment session request timed out, order left pending", "error", err)
			return &GatewayCheckout{Order: order, Pending: true}, nil
		}
		log.Error("payment session request failed", "error", err)
		if markErr := s.markPaymentFailed(ctx, order); markErr != nil {
			return nil, errors.Join(domain.Gateway(err), markErr)
		}
		return nil, domain.Gateway(err)
	}

	return &GatewayCheckout{Order: order, Token: session.Token, RedirectURL: session.RedirectURL}, nil
}

func (s *CheckoutService) markPaymentFailed(ctx context.Context, order *domain.Order) error {
	ok, err := s.store.Orders().Transition(ctx, order.ID,
		domain.OrderGuard{PaymentStatus: domain.PaymentPending},
		domain.OrderChanges{PaymentStatus: domain.Ptr(domain.PaymentFailed)},
	)
	if err != nil {
		return err
	}
	if ok {
		order.PaymentStatus = domain.PaymentFailed
		s.notifier.Notify(ctx, orderEvent(domain.EventOrderPaymentFailed, order))
	}
	return nil
}

// PayWithWallet runs the whole purchase as one transaction: order, ledger
// entry, wallet debit, settlement of the reserved stock and clearing the
// cart either all commit or none do.
func (s *CheckoutService) PayWithWallet(ctx context.Context, userID string, shipping domain.ShippingInfo) (*domain.Order, error) {
	products, err := s.cartProducts(ctx, userID)
	if err != nil {
		return nil, err
	}

	var (
		order *domain.Order
		txn   *domain.Transaction
	)
	err = s.store.WithTx(ctx, func(tx repository.Store) error {
		cart, err := tx.Carts().GetByUser(ctx, userID)
		if err != nil {
			return err
		}
		o, err := s.buildOrder(ctx, tx, userID, cart, products, shipping)
		if err != nil {
			return err
		}

		wallet, err := tx.Wallets().Get(ctx, userID)
		if err != nil {
			return err
		}
		balance := decimal.Zero
		if wallet != nil {
			balance = wallet.Balance
		}
		if balance.LessThan(o.TotalAmount) {
			return domain.InsufficientBalance(balance, o.TotalAmount)
		}

		now := s.now()
		o.Status = domain.StatusProcessing
		o.PaymentStatus = domain.PaymentPaid
		o.PaymentMethod = domain.PaymentMethodWallet
		o.PaidAt = &now
		if err := tx.Orders().Create(ctx, o); err != nil {
			return err
		}

		t := &domain.Transaction{
			ID:             domain.NewID(),
			UserID:         userID,
			Amount:         o.TotalAmount,
			Type:           domain.TxnOrderPayment,
			Status:         domain.TxnCompleted,
			PaymentGateway: domain.PaymentMethodWallet,
			OrderRef:       domain.Ptr(o.ID),
		}
		if err := tx.Transactions().Create(ctx, t); err != nil {
			return err
		}

		if err := tx.Wallets().Debit(ctx, userID, o.TotalAmount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return domain.InsufficientBalance(balance, o.TotalAmount)
			}
			return err
		}

		for _, it := range o.Items {
			if err := tx.Inventory().Settle(ctx, it.ProductID, it.Quantity); err != nil {
				if errors.Is(err, repository.ErrInsufficientReserved) {
					return stockError(ctx, tx, it.ProductID, it.Quantity)
				}
				return err
			}
		}

		if err := tx.Carts().Delete(ctx, userID); err != nil {
			return err
		}
		order, txn = o, t
		return nil
	})
	if err != nil {
		return nil, err
	}

	slog.Info("order paid from wallet", "order_id", order.ID, "user_id", userID, "total", order.TotalAmount.StringFixed(2))
	s.notifier.Notify(ctx, orderEvent(domain.EventOrderCreated, order))
	s.notifier.Notify(ctx, orderEvent(domain.EventOrderPaid, order))
	s.notifier.Notify(ctx, walletEvent(domain.EventWalletDebited, txn))
	s.notifier.Notify(ctx, inventoryEvent(userID, orderProductIDs(order)))
	return order, nil
}

func (s *CheckoutService) GetOrder(ctx context.Context, userID, orderID string) (*domain.Order, error) {
	o, err := s.store.Orders().FindByID(ctx, orderID)
	if err != nil {
		return nil, err
	}
	if o == nil || o.UserID != userID {
		return nil, domain.NotFound("order")
	}
	return o, nil
}

func (s *CheckoutService) ListOrders(ctx context.Context, userID string, limit int) ([]domain.Order, error) {
	orders, err := s.store.Orders().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if orders == nil {
		orders = []domain.Order{}
	}
	return orders, nil
}

// cartProducts loads the live catalog entry of every line in the cart. It
// runs before the transaction so no database locks are held over the network.
func (s *CheckoutService) cartProducts(ctx context.Context, userID string) (map[uint64]*domain.Product, error) {
	cart, err := s.store.Carts().GetByUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if cart == nil || cart.IsEmpty() {
		return nil, domain.Validation("cart is empty")
	}
	return fetchProducts(ctx, s.catalog, cartProductIDs(cart))
}

// buildOrder re-validates the cart against the ledger and re-prices every
// line from the live catalog into an immutable snapshot.
func (s *CheckoutService) buildOrder(
	ctx context.Context,
	tx repository.Store,
	userID string,
	cart *domain.Cart,
	products map[uint64]*domain.Product,
	shipping domain.ShippingInfo,
) (*domain.Order, error) {
	if cart == nil || cart.IsEmpty() {
		return nil, domain.Validation("cart is empty")
	}

	order := &domain.Order{
		ID:       domain.NewID(),
		UserID:   userID,
		Shipping: shipping,
		Items:    make([]domain.OrderItem, 0, len(cart.Lines)),
	}
	subtotal := decimal.Zero
	for _, line := range cart.Lines {
		product, ok := products[line.ProductID]
		if !ok {
			return nil, domain.Validation("cart changed during checkout, please retry")
		}
		inv, err := tx.Inventory().Get(ctx, line.ProductID)
		if err != nil {
			return nil, err
		}
		if inv == nil || inv.Reserved < line.Quantity {
			var available int64
			if inv != nil {
				available = inv.Quantity + inv.Reserved
			}
			return nil, domain.InsufficientStock(line.ProductID, line.Quantity, available)
		}

		quote, err := pricing.Price(*product, line.Quantity)
		if err != nil {
			return nil, err
		}
		order.Items = append(order.Items, domain.OrderItem{
			ProductID: line.ProductID,
			Name:      product.Name,
			Image:     product.Image,
			UnitPrice: quote.UnitPrice,
			Quantity:  line.Quantity,
		})
		subtotal = subtotal.Add(quote.LineTotal)
	}

	totals := s.policy.Totals(subtotal)
	order.Subtotal = totals.Subtotal
	order.Tax = totals.Tax
	order.ShippingCharges = totals.ShippingCharges
	order.TotalAmount = totals.TotalAmount
	return order, nil
}
