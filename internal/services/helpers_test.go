package services

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/infra/gateway"
	"checkout-service/internal/metrics"
	"checkout-service/internal/mocks"
	"checkout-service/internal/pricing"
	"checkout-service/internal/repository"
	"checkout-service/internal/repository/memory"
	"context"
	"errors"
	"net/url"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	TestUserID      = "user-1"
	TestProductID   = uint64(1)
	TestProductName = "Test Product"
	TestSecret      = "merchant-secret"
	TestGateway     = "testpay"
	TestCartTTL     = 15 * time.Minute
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func CreateMockProduct(id uint64, name string, price string, stock int64) *domain.Product {
	return &domain.Product{
		ID:          id,
		Name:        name,
		BasePrice:   dec(price),
		Stock:       stock,
		IsAvailable: true,
	}
}

type fixture struct {
	store    repository.Store
	catalog  *mocks.MockCatalogClient
	gateway  *mocks.MockGatewayClient
	notifier *mocks.MockNotifier
	signer   *gateway.Signer
	metrics  *metrics.Metrics

	carts    *CartService
	checkout *CheckoutService
	payments *PaymentService
	wallets  *WalletService
	admin    *OrderAdminService
	sweeper  *ReservationSweeper
}

func newFixture(t *testing.T) *fixture {
	return newFixtureWithStore(t, memory.NewStore())
}

func newFixtureWithStore(t *testing.T, store repository.Store) *fixture {
	t.Helper()
	f := &fixture{
		store:    store,
		catalog:  new(mocks.MockCatalogClient),
		gateway:  new(mocks.MockGatewayClient),
		notifier: new(mocks.MockNotifier),
		signer:   gateway.NewSigner(TestSecret),
		metrics:  metrics.New(prometheus.NewRegistry()),
	}
	f.notifier.On("Notify", mock.Anything, mock.Anything).Return()

	f.carts = NewCartService(store, f.catalog, f.notifier, TestCartTTL)
	f.checkout = NewCheckoutService(store, f.catalog, f.gateway, f.notifier, pricing.Policy{}, TestGateway, time.Hour)
	f.payments = NewPaymentService(store, f.gateway, f.signer, f.notifier, f.metrics, TestGateway)
	f.wallets = NewWalletService(store, f.gateway, f.signer, f.notifier, f.metrics, TestGateway)
	f.admin = NewOrderAdminService(store, f.notifier)
	f.sweeper = NewReservationSweeper(store, f.notifier, f.metrics)
	return f
}

func (f *fixture) withProduct(p *domain.Product) *fixture {
	f.catalog.On("GetProduct", mock.Anything, p.ID).Return(p, nil)
	return f
}

func (f *fixture) fund(t *testing.T, userID string, amount string) {
	t.Helper()
	require.NoError(t, f.store.Wallets().Credit(context.Background(), userID, dec(amount)))
	require.NoError(t, f.store.Transactions().Create(context.Background(), &domain.Transaction{
		ID:             domain.NewID(),
		UserID:         userID,
		Amount:         dec(amount),
		Type:           domain.TxnDeposit,
		Status:         domain.TxnCompleted,
		PaymentGateway: TestGateway,
	}))
}

func (f *fixture) inventory(t *testing.T, productID uint64) domain.Inventory {
	t.Helper()
	inv, err := f.store.Inventory().Get(context.Background(), productID)
	require.NoError(t, err)
	require.NotNil(t, inv)
	return *inv
}

func (f *fixture) balance(t *testing.T, userID string) decimal.Decimal {
	t.Helper()
	w, err := f.wallets.GetWallet(context.Background(), userID)
	require.NoError(t, err)
	return w.Balance
}

func (f *fixture) transactions(t *testing.T, userID string) []domain.Transaction {
	t.Helper()
	txns, err := f.store.Transactions().ListByUser(context.Background(), userID, 0)
	require.NoError(t, err)
	return txns
}

// paymentForm builds a signed payment webhook body.
func (f *fixture) paymentForm(correlationID, status, txnID, amount string) url.Values {
	fields := map[string]string{
		"correlation_id": correlationID,
		"status":         status,
		"txn_id":         txnID,
		"mode":           "UPI",
	}
	if amount != "" {
		fields["amount"] = amount
	}
	fields[gateway.SignatureField] = f.signer.SignFields(fields)

	form := url.Values{}
	for k, v := range fields {
		form.Set(k, v)
	}
	return form
}

// gatewayOrder checks the cart out through the provider and returns the order.
func (f *fixture) gatewayOrder(t *testing.T) *domain.Order {
	t.Helper()
	f.gateway.On("InitiatePayment", mock.Anything, mock.AnythingOfType("gateway.PaymentRequest")).
		Return(&gateway.PaymentSession{Token: "tok", RedirectURL: "https://pay.example/tok"}, nil).Once()
	res, err := f.checkout.InitiateGatewayCheckout(context.Background(), TestUserID, domain.ShippingInfo{FullName: "A Buyer"})
	require.NoError(t, err)
	require.False(t, res.Pending)
	return res.Order
}

// settleFailingStore breaks stock settlement inside transactions so the
// rollback of everything else can be observed.
type settleFailingStore struct {
	repository.Store
}

var errSettle = errors.New("settle failed")

func (s settleFailingStore) WithTx(ctx context.Context, fn func(tx repository.Store) error) error {
	return s.Store.WithTx(ctx, func(tx repository.Store) error {
		return fn(settleFailingStore{Store: tx})
	})
}

func (s settleFailingStore) Inventory() repository.InventoryRepository {
	return settleFailingInventory{InventoryRepository: s.Store.Inventory()}
}

type settleFailingInventory struct {
	repository.InventoryRepository
}

func (settleFailingInventory) Settle(context.Context, uint64, int64) error {
	return errSettle
}
