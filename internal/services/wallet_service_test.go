package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/infra/gateway"
	"context"
	"encoding/json"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var testPayee = domain.PayoutDetails{
	AccountHolder: "A Buyer",
	AccountNumber: "123456789012",
	IFSC:          "HDFC0001234",
}

func (f *fixture) payoutCallback(t *testing.T, fields map[string]string) ([]byte, string) {
	t.Helper()
	body, err := json.Marshal(fields)
	require.NoError(t, err)
	return body, f.signer.SignBytes(body)
}

func (f *fixture) withdraw(t *testing.T, amount string, payoutID string) *domain.Transaction {
	t.Helper()
	f.gateway.On("InitiatePayout", mock.Anything, mock.MatchedBy(func(req gateway.PayoutRequest) bool {
		return req.Amount.Equal(dec(amount)) && req.Beneficiary.AccountNumber == testPayee.AccountNumber
	})).Return(&gateway.PayoutReceipt{PayoutID: payoutID}, nil).Once()
	txn, err := f.wallets.InitiateWithdrawal(context.Background(), TestUserID, dec(amount), testPayee)
	require.NoError(t, err)
	return txn
}

func TestWalletService_Withdrawal(t *testing.T) {
	tests := []struct {
		name            string
		callbackStatus  string
		expectedStatus  domain.TransactionStatus
		expectedBalance string
		expectedEvent   string
	}{
		{
			name:            "payout succeeds",
			callbackStatus:  "SUCCESS",
			expectedStatus:  domain.TxnCompleted,
			expectedBalance: "300",
			expectedEvent:   domain.EventWithdrawalCompleted,
		},
		{
			name:            "payout fails and the hold is returned",
			callbackStatus:  "FAILURE",
			expectedStatus:  domain.TxnFailed,
			expectedBalance: "500",
			expectedEvent:   domain.EventWithdrawalFailed,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fund(t, TestUserID, "500")
			ctx := context.Background()

			txn := f.withdraw(t, "200", "po-1")
			assert.Equal(t, domain.TxnPending, txn.Status)
			require.NotNil(t, txn.GatewayPayoutID)
			assert.Equal(t, "po-1", *txn.GatewayPayoutID)
			assert.True(t, dec("300").Equal(f.balance(t, TestUserID)))

			body, sig := f.payoutCallback(t, map[string]string{
				"payoutId": "po-1",
				"status":   tt.callbackStatus,
				"reason":   "account closed",
			})
			outcome, err := f.wallets.HandlePayoutCallback(ctx, body, sig)
			require.NoError(t, err)
			assert.Equal(t, OutcomeApplied, outcome)

			outcome, err = f.wallets.HandlePayoutCallback(ctx, body, sig)
			require.NoError(t, err)
			assert.Equal(t, OutcomeDuplicate, outcome)

			got, err := f.store.Transactions().FindByID(ctx, txn.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.expectedStatus, got.Status)
			assert.True(t, dec(tt.expectedBalance).Equal(f.balance(t, TestUserID)))
			assert.Contains(t, f.notifier.Names(), tt.expectedEvent)

			rec, err := f.wallets.Reconcile(ctx, TestUserID)
			require.NoError(t, err)
			assert.True(t, rec.Drift.IsZero())
		})
	}
}

func TestWalletService_InitiateWithdrawal_ProviderRejects(t *testing.T) {
	f := newFixture(t)
	f.fund(t, TestUserID, "500")
	ctx := context.Background()
	f.gateway.On("InitiatePayout", mock.Anything, mock.Anything).
		Return(nil, &gateway.ProviderError{StatusCode: 422, Body: "invalid ifsc"})

	txn, err := f.wallets.InitiateWithdrawal(ctx, TestUserID, dec("200"), testPayee)

	require.Error(t, err)
	assert.Nil(t, txn)
	assert.Equal(t, domain.KindGateway, domain.KindOf(err))
	assert.True(t, dec("500").Equal(f.balance(t, TestUserID)))

	var withdrawal *domain.Transaction
	for _, txn := range f.transactions(t, TestUserID) {
		if txn.Type == domain.TxnWithdrawal {
			withdrawal = &txn
		}
	}
	require.NotNil(t, withdrawal)
	assert.Equal(t, domain.TxnFailed, withdrawal.Status)
	assert.Contains(t, withdrawal.Reason, "invalid ifsc")
	assert.Equal(t, 1.0, testutil.ToFloat64(f.metrics.Compensations.WithLabelValues("withdrawal")))

	_, err = f.wallets.Reconcile(ctx, TestUserID)
	assert.NoError(t, err)
}

func TestWalletService_InitiateWithdrawal_TimeoutResolvedByCorrelationID(t *testing.T) {
	f := newFixture(t)
	f.fund(t, TestUserID, "500")
	ctx := context.Background()
	f.gateway.On("InitiatePayout", mock.Anything, mock.Anything).Return(nil, gateway.ErrTimeout)

	txn, err := f.wallets.InitiateWithdrawal(ctx, TestUserID, dec("200"), testPayee)
	require.NoError(t, err)
	assert.Equal(t, domain.TxnPending, txn.Status)
	assert.Nil(t, txn.GatewayPayoutID)
	assert.True(t, dec("300").Equal(f.balance(t, TestUserID)))

	body, sig := f.payoutCallback(t, map[string]string{
		"payoutId":      "po-late",
		"correlationId": *txn.GatewayOrderID,
		"status":        "SUCCESS",
	})
	outcome, err := f.wallets.HandlePayoutCallback(ctx, body, sig)
	require.NoError(t, err)
	assert.Equal(t, OutcomeApplied, outcome)

	got, err := f.store.Transactions().FindByPayoutID(ctx, "po-late")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, txn.ID, got.ID)
	assert.Equal(t, domain.TxnCompleted, got.Status)
}

func TestWalletService_InitiateWithdrawal_Rejected(t *testing.T) {
	tests := []struct {
		name         string
		amount       string
		expectedKind domain.Kind
	}{
		{name: "more than the balance", amount: "500.01", expectedKind: domain.KindInsufficientBalance},
		{name: "zero", amount: "0", expectedKind: domain.KindValidation},
		{name: "sub cent", amount: "0.001", expectedKind: domain.KindValidation},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.fund(t, TestUserID, "500")

			_, err := f.wallets.InitiateWithdrawal(context.Background(), TestUserID, dec(tt.amount), testPayee)

			require.Error(t, err)
			assert.Equal(t, tt.expectedKind, domain.KindOf(err))
			assert.True(t, dec("500").Equal(f.balance(t, TestUserID)))
			assert.Len(t, f.transactions(t, TestUserID), 1)
			f.gateway.AssertNotCalled(t, "InitiatePayout", mock.Anything, mock.Anything)
		})
	}
}

func TestWalletService_HandlePayoutCallback(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	t.Run("unknown payout is acknowledged", func(t *testing.T) {
		body, sig := f.payoutCallback(t, map[string]string{"payoutId": "po-x", "status": "SUCCESS"})

		outcome, err := f.wallets.HandlePayoutCallback(ctx, body, sig)

		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome)
	})

	t.Run("bad signature", func(t *testing.T) {
		body, _ := f.payoutCallback(t, map[string]string{"payoutId": "po-x", "status": "SUCCESS"})

		outcome, err := f.wallets.HandlePayoutCallback(ctx, body, "00ff")

		require.Error(t, err)
		assert.Equal(t, OutcomeRejected, outcome)
		assert.Equal(t, domain.KindSignature, domain.KindOf(err))
	})

	t.Run("signature in the body", func(t *testing.T) {
		fields := map[string]string{"payoutId": "po-x", "status": "FAILURE"}
		fields[gateway.SignatureField] = f.signer.SignFields(fields)
		body, err := json.Marshal(fields)
		require.NoError(t, err)

		outcome, err := f.wallets.HandlePayoutCallback(ctx, body, "")

		require.NoError(t, err)
		assert.Equal(t, OutcomeIgnored, outcome)
	})
}

func TestWalletService_History_MasksPayoutDetails(t *testing.T) {
	f := newFixture(t)
	f.fund(t, TestUserID, "500")
	f.withdraw(t, "100", "po-1")

	txns, err := f.wallets.History(context.Background(), TestUserID, 10)

	require.NoError(t, err)
	require.Len(t, txns, 2)
	for _, txn := range txns {
		if txn.Type != domain.TxnWithdrawal {
			continue
		}
		require.NotNil(t, txn.WithdrawalDetails)
		assert.Equal(t, "********9012", txn.WithdrawalDetails.AccountNumber)
		assert.Equal(t, testPayee.AccountHolder, txn.WithdrawalDetails.AccountHolder)
	}
}

func TestWalletService_Reconcile_DetectsDrift(t *testing.T) {
	f := newFixture(t)
	f.fund(t, TestUserID, "500")
	ctx := context.Background()
	require.NoError(t, f.store.Wallets().Credit(ctx, TestUserID, dec("25")))

	rec, err := f.wallets.Reconcile(ctx, TestUserID)

	require.Error(t, err)
	assert.Equal(t, domain.KindConsistency, domain.KindOf(err))
	assert.True(t, dec("525").Equal(rec.Balance))
	assert.True(t, dec("500").Equal(rec.Expected))
	assert.True(t, dec("25").Equal(rec.Drift))
}

func TestExpectedBalance(t *testing.T) {
	txns := []domain.Transaction{
		{Type: domain.TxnDeposit, Status: domain.TxnCompleted, Amount: dec("1000")},
		{Type: domain.TxnDeposit, Status: domain.TxnPending, Amount: dec("999")},
		{Type: domain.TxnDeposit, Status: domain.TxnFailed, Amount: dec("999")},
		{Type: domain.TxnWithdrawal, Status: domain.TxnPending, Amount: dec("100")},
		{Type: domain.TxnWithdrawal, Status: domain.TxnCompleted, Amount: dec("50")},
		{Type: domain.TxnWithdrawal, Status: domain.TxnFailed, Amount: dec("999")},
		{Type: domain.TxnOrderPayment, Status: domain.TxnCompleted, Amount: dec("200"), PaymentGateway: domain.PaymentMethodWallet},
		{Type: domain.TxnOrderPayment, Status: domain.TxnRefunded, Amount: dec("80"), PaymentGateway: domain.PaymentMethodWallet},
		{Type: domain.TxnOrderPayment, Status: domain.TxnCompleted, Amount: dec("999"), PaymentGateway: TestGateway},
		{Type: domain.TxnRefundToWallet, Status: domain.TxnCompleted, Amount: dec("80")},
	}

	assert.True(t, dec("650").Equal(ExpectedBalance(txns)), ExpectedBalance(txns).String())
}
