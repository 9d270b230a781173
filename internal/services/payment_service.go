package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/events"
	"checkout-service/internal/infra/gateway"
	"checkout-service/internal/metrics"
	"checkout-service/internal/repository"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"
)

const (
	sourceWebhook = "payment_webhook"
	sourcePoll    = "status_poll"
)

// PaymentService resolves inbound payments: the provider webhook, client
// status polls and wallet deposits. Webhook and poll share one guarded
// transition, so whichever arrives second is a no-op.
type PaymentService struct {
	store       repository.Store
	gateway     gateway.Client
	signer      *gateway.Signer
	notifier    events.Notifier
	metrics     *metrics.Metrics
	gatewayName string
	polls       singleflight.Group
	now         func() time.Time
}

func NewPaymentService(
	store repository.Store,
	gw gateway.Client,
	signer *gateway.Signer,
	notifier events.Notifier,
	m *metrics.Metrics,
	gatewayName string,
) *PaymentService {
	return &PaymentService{
		store:       store,
		gateway:     gw,
		signer:      signer,
		notifier:    notifier,
		metrics:     m,
		gatewayName: gatewayName,
		now:         time.Now,
	}
}

// paymentUpdate is a provider verdict about one correlation id, from either
// the webhook or the status API.
type paymentUpdate struct {
	correlationID string
	status        gateway.Status
	txnID         string
	amount        *decimal.Decimal
	raw           string
}

// PaymentState is what a status poll reports back to the buyer.
type PaymentState struct {
	CorrelationID string                   `json:"correlationId"`
	Kind          domain.CorrelationKind   `json:"kind"`
	OrderID       string                   `json:"orderId,omitempty"`
	OrderStatus   domain.OrderStatus       `json:"orderStatus,omitempty"`
	PaymentStatus domain.PaymentStatus     `json:"paymentStatus,omitempty"`
	TransactionID string                   `json:"transactionId,omitempty"`
	TxnStatus     domain.TransactionStatus `json:"transactionStatus,omitempty"`
	Pending       bool                     `json:"pending"`
}

// HandleCallback verifies and applies a payment webhook.
func (s *PaymentService) HandleCallback(ctx context.Context, form url.Values) (Outcome, error) {
	cb, err := s.signer.ParsePaymentCallback(form)
	if err != nil {
		slog.Warn("payment callback rejected", "reason", domain.KindOf(err))
		s.metrics.Callback(sourceWebhook, string(OutcomeRejected))
		return OutcomeRejected, err
	}

	outcome, err := s.apply(ctx, sourceWebhook, paymentUpdate{
		correlationID: cb.CorrelationID,
		status:        cb.Status,
		txnID:         cb.TxnID,
		amount:        cb.Amount,
		raw:           cb.Raw,
	})
	if err != nil {
		s.metrics.Callback(sourceWebhook, string(OutcomeRejected))
		return OutcomeRejected, err
	}
	s.metrics.Callback(sourceWebhook, string(outcome))
	return outcome, nil
}

// CheckStatus asks the provider about a pending payment and applies the
// answer through the same guard as the webhook. Concurrent polls for one
// correlation id share a single provider call.
func (s *PaymentService) CheckStatus(ctx context.Context, userID, correlationID string) (*PaymentState, error) {
	state, err := s.state(ctx, userID, correlationID)
	if err != nil {
		return nil, err
	}
	if !state.Pending {
		return state, nil
	}

	_, err, _ = s.polls.Do(correlationID, func() (any, error) {
		report, err := s.gateway.QueryStatus(ctx, correlationID)
		if err != nil {
			if errors.Is(err, gateway.ErrTimeout) {
				slog.Warn("status query timed out", "correlation_id", correlationID)
				return nil, nil
			}
			return nil, domain.Gateway(err)
		}
		outcome, err := s.apply(ctx, sourcePoll, paymentUpdate{
			correlationID: correlationID,
			status:        report.Status,
			txnID:         report.GatewayTxnID,
			raw:           report.Raw,
		})
		if err != nil {
			return nil, err
		}
		s.metrics.Callback(sourcePoll, string(outcome))
		return outcome, nil
	})
	if err != nil {
		return nil, err
	}
	return s.state(ctx, userID, correlationID)
}

func (s *PaymentService) state(ctx context.Context, userID, correlationID string) (*PaymentState, error) {
	kind, ok := domain.ParseCorrelationKind(correlationID)
	if !ok {
		return nil, domain.NotFound("payment")
	}
	state := &PaymentState{CorrelationID: correlationID, Kind: kind}

	switch kind {
	case domain.CorrelationOrder:
		o, err := s.store.Orders().FindByGatewayOrderID(ctx, correlationID)
		if err != nil {
			return nil, err
		}
		if o == nil || o.UserID != userID {
			return nil, domain.NotFound("payment")
		}
		state.OrderID = o.ID
		state.OrderStatus = o.Status
		state.PaymentStatus = o.PaymentStatus
		state.Pending = o.PaymentStatus == domain.PaymentPending
	case domain.CorrelationDeposit:
		t, err := s.store.Transactions().FindByGatewayOrderID(ctx, correlationID)
		if err != nil {
			return nil, err
		}
		if t == nil || t.UserID != userID {
			return nil, domain.NotFound("payment")
		}
		state.TransactionID = t.ID
		state.TxnStatus = t.Status
		state.Pending = t.Status == domain.TxnPending
	default:
		return nil, domain.NotFound("payment")
	}
	return state, nil
}

func (s *PaymentService) apply(ctx context.Context, source string, u paymentUpdate) (Outcome, error) {
	log := slog.With("source", source, "correlation_id", u.correlationID, "status", u.status)
	if u.status == gateway.StatusPending {
		log.Info("payment still pending")
		return OutcomeIgnored, nil
	}

	kind, _ := domain.ParseCorrelationKind(u.correlationID)
	var (
		outcome Outcome
		err     error
	)
	switch kind {
	case domain.CorrelationOrder:
		outcome, err = s.applyOrder(ctx, u)
	case domain.CorrelationDeposit:
		outcome, err = s.applyDeposit(ctx, u)
	case domain.CorrelationWithdrawal:
		// payouts are resolved by the payout webhook
		log.Warn("payment callback for a withdrawal, ignoring")
		return OutcomeIgnored, nil
	default:
		log.Warn("payment callback for unknown correlation id")
		return OutcomeRejected, domain.NotFound("payment")
	}
	if err != nil {
		if domain.IsKind(err, domain.KindConsistency) {
			log.Error("payment update aborted", "error", err)
		} else {
			log.Warn("payment update failed", "error", err)
		}
		return OutcomeRejected, err
	}
	log.Info("payment update handled", "outcome", outcome)
	return outcome, nil
}

func checkAmount(u paymentUpdate, want decimal.Decimal) error {
	if u.amount != nil && !u.amount.Equal(want) {
		return domain.Consistency("provider reported amount %s for %s, expected %s",
			u.amount.StringFixed(2), u.correlationID, want.StringFixed(2))
	}
	return nil
}

// errSoldOut marks a paid order whose units are gone: the cart no longer
// holds them and sellable stock cannot cover them.
var errSoldOut = errors.New("sold out before payment was confirmed")

// applyOrder settles the cart reservation of a paid order. Settlement is
// bounded by what the buyer's cart still holds; anything the sweeper already
// released is taken from sellable stock again. When that stock is gone too
// the order is cancelled and the captured payment is owed back.
func (s *PaymentService) applyOrder(ctx context.Context, u paymentUpdate) (Outcome, error) {
	outcome, order, txn, err := s.transitionOrder(ctx, u, false)
	soldOut := errors.Is(err, errSoldOut)
	if soldOut {
		slog.Warn("paid order cannot be fulfilled, cancelling", "correlation_id", u.correlationID, "error", err)
		outcome, order, txn, err = s.transitionOrder(ctx, u, true)
	}
	if err != nil {
		return OutcomeRejected, err
	}

	if outcome == OutcomeApplied {
		switch {
		case txn == nil:
			s.notifier.Notify(ctx, orderEvent(domain.EventOrderPaymentFailed, order))
		case soldOut:
			s.metrics.Compensation("order_sold_out")
			s.notifier.Notify(ctx, orderEvent(domain.EventOrderStatusChanged, order))
		default:
			s.notifier.Notify(ctx, orderEvent(domain.EventOrderPaid, order))
			s.notifier.Notify(ctx, inventoryEvent(order.UserID, orderProductIDs(order)))
		}
	}
	return outcome, nil
}

// transitionOrder applies one provider verdict to a pending order in a
// single transaction. With soldOut set a success cancels the order instead
// of settling stock, leaving inventory as it is.
func (s *PaymentService) transitionOrder(ctx context.Context, u paymentUpdate, soldOut bool) (Outcome, *domain.Order, *domain.Transaction, error) {
	outcome := OutcomeDuplicate
	var (
		order *domain.Order
		txn   *domain.Transaction
	)
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		o, err := tx.Orders().FindByGatewayOrderID(ctx, u.correlationID)
		if err != nil {
			return err
		}
		if o == nil {
			return domain.NotFound("order")
		}
		if o.PaymentStatus != domain.PaymentPending {
			return nil
		}
		if err := checkAmount(u, o.TotalAmount); err != nil {
			return err
		}
		guard := domain.OrderGuard{Status: o.Status, PaymentStatus: domain.PaymentPending}

		if u.status == gateway.StatusFailure {
			ok, err := tx.Orders().Transition(ctx, o.ID, guard, domain.OrderChanges{
				PaymentStatus: domain.Ptr(domain.PaymentFailed),
				GatewayTxnID:  domain.Ptr(u.txnID),
			})
			if err != nil || !ok {
				return err
			}
			o.PaymentStatus = domain.PaymentFailed
			order, outcome = o, OutcomeApplied
			return nil
		}

		now := s.now()
		changes := domain.OrderChanges{
			PaymentStatus: domain.Ptr(domain.PaymentPaid),
			GatewayTxnID:  domain.Ptr(u.txnID),
			PaidAt:        &now,
		}
		// money arrived for an order that no longer ships: keep it on the
		// books and owe it back
		owed := soldOut || o.Status == domain.StatusCancelled
		switch {
		case owed:
			changes.PaymentStatus = domain.Ptr(domain.PaymentRefundInitiated)
			if o.Status != domain.StatusCancelled {
				changes.Status = domain.Ptr(domain.StatusCancelled)
			}
		case o.Status == domain.StatusPending:
			changes.Status = domain.Ptr(domain.StatusProcessing)
		}
		ok, err := tx.Orders().Transition(ctx, o.ID, guard, changes)
		if err != nil || !ok {
			return err
		}
		changes.Apply(o)

		if !owed {
			if err := s.settleOrderStock(ctx, tx, o); err != nil {
				return err
			}
		}

		txnStatus := domain.TxnCompleted
		if owed {
			txnStatus = domain.TxnRefundInitiated
		}
		t := &domain.Transaction{
			ID:              domain.NewID(),
			UserID:          o.UserID,
			Amount:          o.TotalAmount,
			Type:            domain.TxnOrderPayment,
			Status:          txnStatus,
			PaymentGateway:  s.gatewayName,
			GatewayOrderID:  domain.Ptr(u.correlationID),
			GatewayTxnID:    u.txnID,
			OrderRef:        domain.Ptr(o.ID),
			GatewayResponse: u.raw,
		}
		if err := tx.Transactions().Create(ctx, t); err != nil {
			return err
		}
		order, txn, outcome = o, t, OutcomeApplied
		return nil
	})
	return outcome, order, txn, err
}

func (s *PaymentService) settleOrderStock(ctx context.Context, tx repository.Store, o *domain.Order) error {
	cart, err := tx.Carts().GetByUser(ctx, o.UserID)
	if err != nil {
		return err
	}
	for _, it := range o.Items {
		var covered int64
		if cart != nil {
			covered = cart.Consume(it.ProductID, it.Quantity)
		}
		if covered > 0 {
			if err := tx.Inventory().Settle(ctx, it.ProductID, covered); err != nil {
				if errors.Is(err, repository.ErrInsufficientReserved) {
					return domain.Consistency("product %d: cart holds %d units the ledger does not", it.ProductID, covered)
				}
				return err
			}
		}
		if rest := it.Quantity - covered; rest > 0 {
			if err := tx.Inventory().Reserve(ctx, it.ProductID, rest); err != nil {
				if errors.Is(err, repository.ErrInsufficientStock) {
					return fmt.Errorf("product %d, order %s: %w", it.ProductID, o.ID, errSoldOut)
				}
				return err
			}
			if err := tx.Inventory().Settle(ctx, it.ProductID, rest); err != nil {
				return err
			}
		}
	}
	if cart == nil {
		return nil
	}
	if cart.IsEmpty() {
		return tx.Carts().Delete(ctx, o.UserID)
	}
	return tx.Carts().Save(ctx, cart)
}

func (s *PaymentService) applyDeposit(ctx context.Context, u paymentUpdate) (Outcome, error) {
	outcome := OutcomeDuplicate
	var txn *domain.Transaction
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		t, err := tx.Transactions().FindByGatewayOrderID(ctx, u.correlationID)
		if err != nil {
			return err
		}
		if t == nil || t.Type != domain.TxnDeposit {
			return domain.NotFound("deposit")
		}
		if t.Status != domain.TxnPending {
			return nil
		}
		if err := checkAmount(u, t.Amount); err != nil {
			return err
		}

		status := domain.TxnCompleted
		if u.status == gateway.StatusFailure {
			status = domain.TxnFailed
		}
		ok, err := tx.Transactions().Transition(ctx, t.ID, domain.TxnPending, domain.TransactionChanges{
			Status:          &status,
			GatewayTxnID:    domain.Ptr(u.txnID),
			GatewayResponse: domain.Ptr(u.raw),
		})
		if err != nil || !ok {
			return err
		}
		t.Status = status
		if status == domain.TxnCompleted {
			if err := tx.Wallets().Credit(ctx, t.UserID, t.Amount); err != nil {
				return err
			}
		}
		txn, outcome = t, OutcomeApplied
		return nil
	})
	if err != nil {
		return OutcomeRejected, err
	}
	if outcome == OutcomeApplied && txn.Status == domain.TxnCompleted {
		s.notifier.Notify(ctx, walletEvent(domain.EventWalletCredited, txn))
	}
	return outcome, nil
}

// DepositSession is returned by InitiateDeposit.
type DepositSession struct {
	Transaction *domain.Transaction `json:"transaction"`
	Token       string              `json:"token,omitempty"`
	RedirectURL string              `json:"redirectUrl,omitempty"`
	Pending     bool                `json:"pending"`
}

// InitiateDeposit records a pending deposit and opens a provider session for
// it. The wallet is credited only by a confirmed payment.
func (s *PaymentService) InitiateDeposit(ctx context.Context, userID string, amount decimal.Decimal) (*DepositSession, error) {
	if !amount.IsPositive() {
		return nil, domain.Validation("amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, domain.Validation("amount has more than two decimal places")
	}

	txn := &domain.Transaction{
		ID:             domain.NewID(),
		UserID:         userID,
		Amount:         amount,
		Type:           domain.TxnDeposit,
		Status:         domain.TxnPending,
		PaymentGateway: s.gatewayName,
		GatewayOrderID: domain.Ptr(domain.NewCorrelationID(domain.CorrelationDeposit)),
	}
	if err := s.store.Transactions().Create(ctx, txn); err != nil {
		return nil, err
	}

	log := slog.With("transaction_id", txn.ID, "correlation_id", *txn.GatewayOrderID, "user_id", userID)
	session, err := s.gateway.InitiatePayment(ctx, gateway.PaymentRequest{
		Amount:        amount,
		CorrelationID: *txn.GatewayOrderID,
		CustomerID:    userID,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrTimeout) {
			log.Warn("deposit session request timed out, left pending", "error", err)
			return &DepositSession{Transaction: txn, Pending: true}, nil
		}
		log.Error("deposit session request failed", "error", err)
		ok, markErr := s.store.Transactions().Transition(ctx, txn.ID, domain.TxnPending, domain.TransactionChanges{
			Status: domain.Ptr(domain.TxnFailed),
			Reason: domain.Ptr(err.Error()),
		})
		if markErr != nil {
			return nil, errors.Join(domain.Gateway(err), markErr)
		}
		if ok {
			txn.Status = domain.TxnFailed
		}
		return nil, domain.Gateway(err)
	}

	log.Info("deposit initiated", "amount", amount.StringFixed(2))
	return &DepositSession{Transaction: txn, Token: session.Token, RedirectURL: session.RedirectURL}, nil
}
