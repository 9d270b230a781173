package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/events"
	"checkout-service/internal/infra/gateway"
	"checkout-service/internal/metrics"
	"checkout-service/internal/repository"
	"context"
	"errors"
	"log/slog"

	"github.com/shopspring/decimal"
)

const sourcePayoutWebhook = "payout_webhook"

// WalletService owns the withdrawal saga and wallet read models.
type WalletService struct {
	store       repository.Store
	gateway     gateway.Client
	signer      *gateway.Signer
	notifier    events.Notifier
	metrics     *metrics.Metrics
	gatewayName string
}

func NewWalletService(
	store repository.Store,
	gw gateway.Client,
	signer *gateway.Signer,
	notifier events.Notifier,
	m *metrics.Metrics,
	gatewayName string,
) *WalletService {
	return &WalletService{
		store:       store,
		gateway:     gw,
		signer:      signer,
		notifier:    notifier,
		metrics:     m,
		gatewayName: gatewayName,
	}
}

// GetWallet returns a zero balance for users who never had money in.
func (s *WalletService) GetWallet(ctx context.Context, userID string) (*domain.Wallet, error) {
	w, err := s.store.Wallets().Get(ctx, userID)
	if err != nil {
		return nil, err
	}
	if w == nil {
		return &domain.Wallet{UserID: userID, Balance: decimal.Zero}, nil
	}
	return w, nil
}

// History lists ledger entries newest first with payout details masked.
func (s *WalletService) History(ctx context.Context, userID string, limit int) ([]domain.Transaction, error) {
	txns, err := s.store.Transactions().ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, err
	}
	if txns == nil {
		txns = []domain.Transaction{}
	}
	for i := range txns {
		if d := txns[i].WithdrawalDetails; d != nil {
			masked := d.Masked()
			txns[i].WithdrawalDetails = &masked
		}
	}
	return txns, nil
}

// InitiateWithdrawal holds the funds and records the pending withdrawal in
// one transaction, then asks the provider to pay out. A definitive provider
// rejection is compensated by crediting the hold back. A timeout keeps the
// hold until the payout webhook decides.
func (s *WalletService) InitiateWithdrawal(ctx context.Context, userID string, amount decimal.Decimal, details domain.PayoutDetails) (*domain.Transaction, error) {
	if !amount.IsPositive() {
		return nil, domain.Validation("amount must be positive")
	}
	if !amount.Equal(amount.Round(2)) {
		return nil, domain.Validation("amount has more than two decimal places")
	}

	txn := &domain.Transaction{
		ID:                domain.NewID(),
		UserID:            userID,
		Amount:            amount,
		Type:              domain.TxnWithdrawal,
		Status:            domain.TxnPending,
		PaymentGateway:    s.gatewayName,
		GatewayOrderID:    domain.Ptr(domain.NewCorrelationID(domain.CorrelationWithdrawal)),
		WithdrawalDetails: &details,
	}
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		if err := tx.Wallets().Debit(ctx, userID, amount); err != nil {
			if errors.Is(err, repository.ErrInsufficientBalance) {
				return s.balanceError(ctx, tx, userID, amount)
			}
			return err
		}
		return tx.Transactions().Create(ctx, txn)
	})
	if err != nil {
		return nil, err
	}

	log := slog.With("transaction_id", txn.ID, "correlation_id", *txn.GatewayOrderID, "user_id", userID)
	log.Info("withdrawal held", "amount", amount.StringFixed(2))
	s.notifier.Notify(ctx, walletEvent(domain.EventWalletDebited, txn))

	receipt, err := s.gateway.InitiatePayout(ctx, gateway.PayoutRequest{
		Amount:        amount,
		CorrelationID: *txn.GatewayOrderID,
		Beneficiary:   details,
	})
	if err != nil {
		if errors.Is(err, gateway.ErrTimeout) {
			log.Warn("payout request timed out, withdrawal left pending", "error", err)
			return txn, nil
		}
		log.Error("payout request failed", "error", err)
		if _, cerr := s.compensate(ctx, txn, "payout rejected: "+err.Error()); cerr != nil {
			return nil, errors.Join(domain.Gateway(err), cerr)
		}
		return nil, domain.Gateway(err)
	}

	ok, err := s.store.Transactions().Transition(ctx, txn.ID, domain.TxnPending, domain.TransactionChanges{
		GatewayPayoutID: domain.Ptr(receipt.PayoutID),
	})
	if err != nil {
		return nil, err
	}
	if ok {
		txn.GatewayPayoutID = domain.Ptr(receipt.PayoutID)
	} else {
		// the webhook got there first
		log.Info("withdrawal already resolved before payout id was stored", "payout_id", receipt.PayoutID)
	}
	return s.reload(ctx, txn)
}

func (s *WalletService) reload(ctx context.Context, txn *domain.Transaction) (*domain.Transaction, error) {
	fresh, err := s.store.Transactions().FindByID(ctx, txn.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return txn, nil
	}
	return fresh, nil
}

func (s *WalletService) balanceError(ctx context.Context, tx repository.Store, userID string, amount decimal.Decimal) error {
	w, err := tx.Wallets().Get(ctx, userID)
	if err != nil {
		return err
	}
	balance := decimal.Zero
	if w != nil {
		balance = w.Balance
	}
	return domain.InsufficientBalance(balance, amount)
}

// compensate marks a pending withdrawal failed and returns the held funds.
// It reports false when the withdrawal was no longer pending.
func (s *WalletService) compensate(ctx context.Context, txn *domain.Transaction, reason string) (bool, error) {
	applied := false
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		ok, err := tx.Transactions().Transition(ctx, txn.ID, domain.TxnPending, domain.TransactionChanges{
			Status: domain.Ptr(domain.TxnFailed),
			Reason: domain.Ptr(reason),
		})
		if err != nil || !ok {
			return err
		}
		if err := tx.Wallets().Credit(ctx, txn.UserID, txn.Amount); err != nil {
			return err
		}
		applied = true
		return nil
	})
	if err != nil {
		slog.Error("withdrawal compensation failed", "transaction_id", txn.ID, "error", err)
		return false, err
	}
	if applied {
		txn.Status = domain.TxnFailed
		txn.Reason = reason
		s.metrics.Compensation("withdrawal")
		slog.Warn("withdrawal compensated", "transaction_id", txn.ID, "user_id", txn.UserID, "amount", txn.Amount.StringFixed(2))
		s.notifier.Notify(ctx, walletEvent(domain.EventWithdrawalFailed, txn))
		s.notifier.Notify(ctx, walletEvent(domain.EventWalletCredited, txn))
	}
	return applied, nil
}

// HandlePayoutCallback verifies a payout webhook and resolves the matching
// pending withdrawal. Unknown and repeated callbacks are acknowledged
// without effect.
func (s *WalletService) HandlePayoutCallback(ctx context.Context, body []byte, headerSignature string) (Outcome, error) {
	cb, err := s.signer.ParsePayoutCallback(body, headerSignature)
	if err != nil {
		slog.Warn("payout callback rejected", "reason", domain.KindOf(err))
		s.metrics.Callback(sourcePayoutWebhook, string(OutcomeRejected))
		return OutcomeRejected, err
	}
	outcome, err := s.applyPayout(ctx, cb)
	if err != nil {
		s.metrics.Callback(sourcePayoutWebhook, string(OutcomeRejected))
		return OutcomeRejected, err
	}
	s.metrics.Callback(sourcePayoutWebhook, string(outcome))
	return outcome, nil
}

func (s *WalletService) applyPayout(ctx context.Context, cb *gateway.PayoutCallback) (Outcome, error) {
	log := slog.With("payout_id", cb.PayoutID, "correlation_id", cb.CorrelationID, "status", cb.Status)

	txn, err := s.findWithdrawal(ctx, cb)
	if err != nil {
		return OutcomeRejected, err
	}
	if txn == nil {
		log.Warn("payout callback matches no withdrawal")
		return OutcomeIgnored, nil
	}
	if txn.Status != domain.TxnPending {
		log.Info("payout callback for settled withdrawal", "transaction_status", txn.Status)
		return OutcomeDuplicate, nil
	}

	switch cb.Status {
	case gateway.StatusPending:
		return OutcomeIgnored, nil
	case gateway.StatusSuccess:
		changes := domain.TransactionChanges{
			Status:          domain.Ptr(domain.TxnCompleted),
			GatewayResponse: domain.Ptr(cb.Raw),
		}
		if txn.GatewayPayoutID == nil && cb.PayoutID != "" {
			changes.GatewayPayoutID = domain.Ptr(cb.PayoutID)
		}
		ok, err := s.store.Transactions().Transition(ctx, txn.ID, domain.TxnPending, changes)
		if err != nil {
			return OutcomeRejected, err
		}
		if !ok {
			return OutcomeDuplicate, nil
		}
		changes.Apply(txn)
		log.Info("withdrawal completed", "transaction_id", txn.ID)
		s.notifier.Notify(ctx, walletEvent(domain.EventWithdrawalCompleted, txn))
		return OutcomeApplied, nil
	default:
		reason := cb.Reason
		if reason == "" {
			reason = "payout failed"
		}
		ok, err := s.compensate(ctx, txn, reason)
		if err != nil {
			return OutcomeRejected, err
		}
		if !ok {
			return OutcomeDuplicate, nil
		}
		return OutcomeApplied, nil
	}
}

func (s *WalletService) findWithdrawal(ctx context.Context, cb *gateway.PayoutCallback) (*domain.Transaction, error) {
	var (
		txn *domain.Transaction
		err error
	)
	if cb.PayoutID != "" {
		if txn, err = s.store.Transactions().FindByPayoutID(ctx, cb.PayoutID); err != nil {
			return nil, err
		}
	}
	if txn == nil && cb.CorrelationID != "" {
		if txn, err = s.store.Transactions().FindByGatewayOrderID(ctx, cb.CorrelationID); err != nil {
			return nil, err
		}
	}
	if txn != nil && txn.Type != domain.TxnWithdrawal {
		return nil, nil
	}
	return txn, nil
}

// Reconciliation compares the wallet balance with what the ledger says it
// should be.
type Reconciliation struct {
	UserID   string          `json:"userId"`
	Balance  decimal.Decimal `json:"balance"`
	Expected decimal.Decimal `json:"expected"`
	Drift    decimal.Decimal `json:"drift"`
}

// Reconcile fails with a consistency error when the balance has drifted.
func (s *WalletService) Reconcile(ctx context.Context, userID string) (*Reconciliation, error) {
	var rec *Reconciliation
	err := s.store.WithTx(ctx, func(tx repository.Store) error {
		txns, err := tx.Transactions().ListByUser(ctx, userID, 0)
		if err != nil {
			return err
		}
		w, err := tx.Wallets().Get(ctx, userID)
		if err != nil {
			return err
		}
		balance := decimal.Zero
		if w != nil {
			balance = w.Balance
		}
		expected := ExpectedBalance(txns)
		rec = &Reconciliation{
			UserID:   userID,
			Balance:  balance,
			Expected: expected,
			Drift:    balance.Sub(expected),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	if !rec.Drift.IsZero() {
		slog.Error("wallet out of balance with ledger", "user_id", userID,
			"balance", rec.Balance.StringFixed(2), "expected", rec.Expected.StringFixed(2))
		return rec, domain.Consistency("wallet of %s drifted by %s", userID, rec.Drift.StringFixed(2))
	}
	return rec, nil
}

// ExpectedBalance folds the ledger entries that moved wallet money. Held
// withdrawals count until they fail; order payments count only when the
// wallet paid them.
func ExpectedBalance(txns []domain.Transaction) decimal.Decimal {
	sum := decimal.Zero
	for _, t := range txns {
		switch t.Type {
		case domain.TxnDeposit, domain.TxnRefundToWallet:
			if t.Status == domain.TxnCompleted {
				sum = sum.Add(t.Amount)
			}
		case domain.TxnWithdrawal:
			if t.Status == domain.TxnPending || t.Status == domain.TxnCompleted {
				sum = sum.Sub(t.Amount)
			}
		case domain.TxnOrderPayment:
			if t.PaymentGateway != domain.PaymentMethodWallet {
				continue
			}
			switch t.Status {
			case domain.TxnCompleted, domain.TxnRefundInitiated, domain.TxnRefunded:
				sum = sum.Sub(t.Amount)
			}
		}
	}
	return sum
}
