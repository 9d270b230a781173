package http

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/idempotency"
	"checkout-service/internal/infra/gateway"
	"checkout-service/internal/metrics"
	"checkout-service/internal/mocks"
	"checkout-service/internal/pricing"
	"checkout-service/internal/repository/memory"
	"checkout-service/internal/services"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const (
	testUser   = "user-1"
	testSecret = "merchant-secret"
)

type testServer struct {
	router  *gin.Engine
	store   *memory.Store
	catalog *mocks.MockCatalogClient
	gateway *mocks.MockGatewayClient
	signer  *gateway.Signer
}

func newTestServer(t *testing.T, idem *idempotency.Store) *testServer {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s := &testServer{
		store:   memory.NewStore(),
		catalog: new(mocks.MockCatalogClient),
		gateway: new(mocks.MockGatewayClient),
		signer:  gateway.NewSigner(testSecret),
	}
	notifier := new(mocks.MockNotifier)
	notifier.On("Notify", mock.Anything, mock.Anything).Return()
	m := metrics.New(prometheus.NewRegistry())

	s.catalog.On("GetProduct", mock.Anything, uint64(1)).Return(&domain.Product{
		ID:          1,
		Name:        "Kettle",
		BasePrice:   decimal.NewFromInt(100),
		Stock:       5,
		IsAvailable: true,
	}, nil)

	h := NewHandler(Services{
		Carts:    services.NewCartService(s.store, s.catalog, notifier, 30*time.Minute),
		Checkout: services.NewCheckoutService(s.store, s.catalog, s.gateway, notifier, pricing.Policy{}, "testpay", time.Hour),
		Payments: services.NewPaymentService(s.store, s.gateway, s.signer, notifier, m, "testpay"),
		Wallets:  services.NewWalletService(s.store, s.gateway, s.signer, notifier, m, "testpay"),
		Admin:    services.NewOrderAdminService(s.store, notifier),
	}, idem)

	s.router = gin.New()
	h.RegisterRoutes(s.router)
	return s
}

func (s *testServer) do(method, path, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	s.router.ServeHTTP(w, req)
	return w
}

func asUser(extra ...string) map[string]string {
	h := map[string]string{HeaderUserID: testUser}
	for i := 0; i+1 < len(extra); i += 2 {
		h[extra[i]] = extra[i+1]
	}
	return h
}

func errorKind(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp.Error
}

const shippingBody = `{"shipping":{"fullName":"A Buyer","phone":"9999999999","address":"1 Main St","city":"Pune","postalCode":"411001","country":"IN"}}`

func TestHandler_Principal(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodGet, "/api/v1/cart", "", nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	assert.Equal(t, string(domain.KindUnauthorized), errorKind(t, w))

	w = s.do(http.MethodGet, "/api/v1/admin/orders/x", "", asUser())
	assert.Equal(t, http.StatusForbidden, w.Code)

	w = s.do(http.MethodGet, "/api/v1/admin/orders/x", "", asUser(HeaderUserRole, "Admin"))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_Cart(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1,"quantity":2}`, asUser())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	var cart domain.Cart
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cart))
	require.Len(t, cart.Lines, 1)
	assert.Equal(t, int64(2), cart.Lines[0].Quantity)

	w = s.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1,"quantity":4}`, asUser())
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, string(domain.KindInsufficientStock), errorKind(t, w))

	w = s.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1,"quantity":0}`, asUser())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodPatch, "/api/v1/cart/items/1", `{"quantity":0}`, asUser())
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = s.do(http.MethodDelete, "/api/v1/cart/items/abc", "", asUser())
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = s.do(http.MethodDelete, "/api/v1/cart/items/1", "", asUser())
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHandler_CheckoutGateway(t *testing.T) {
	tests := []struct {
		name         string
		gatewayErr   error
		expectedCode int
	}{
		{name: "session created", expectedCode: http.StatusCreated},
		{name: "provider timeout", gatewayErr: gateway.ErrTimeout, expectedCode: http.StatusAccepted},
		{name: "provider rejects", gatewayErr: &gateway.ProviderError{StatusCode: 400}, expectedCode: http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := newTestServer(t, nil)
			call := s.gateway.On("InitiatePayment", mock.Anything, mock.Anything)
			if tt.gatewayErr != nil {
				call.Return(nil, tt.gatewayErr)
			} else {
				call.Return(&gateway.PaymentSession{Token: "tok"}, nil)
			}
			require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1,"quantity":2}`, asUser()).Code)

			w := s.do(http.MethodPost, "/api/v1/checkout/gateway", shippingBody, asUser())

			assert.Equal(t, tt.expectedCode, w.Code, w.Body.String())
			if tt.expectedCode == http.StatusAccepted {
				var resp PendingCheckoutResponse
				require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
				assert.Equal(t, "pending", resp.Status)
				assert.NotEmpty(t, resp.Order.ID)
			}
		})
	}
}

func TestHandler_CheckoutWallet_InsufficientBalance(t *testing.T) {
	s := newTestServer(t, nil)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1,"quantity":2}`, asUser()).Code)

	w := s.do(http.MethodPost, "/api/v1/checkout/wallet", shippingBody, asUser())

	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "need 200.00 more")
}

func TestHandler_PaymentWebhook(t *testing.T) {
	s := newTestServer(t, nil)
	s.gateway.On("InitiatePayment", mock.Anything, mock.Anything).Return(&gateway.PaymentSession{Token: "tok"}, nil)
	require.Equal(t, http.StatusOK, s.do(http.MethodPost, "/api/v1/cart/items", `{"productId":1,"quantity":2}`, asUser()).Code)
	w := s.do(http.MethodPost, "/api/v1/checkout/gateway", shippingBody, asUser())
	require.Equal(t, http.StatusCreated, w.Code)
	var checkout services.GatewayCheckout
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &checkout))
	correlationID := *checkout.Order.GatewayOrderID

	post := func(fields map[string]string) *httptest.ResponseRecorder {
		form := url.Values{}
		for k, v := range fields {
			form.Set(k, v)
		}
		req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/payment", strings.NewReader(form.Encode()))
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		rec := httptest.NewRecorder()
		s.router.ServeHTTP(rec, req)
		return rec
	}
	signed := func(fields map[string]string) map[string]string {
		fields[gateway.SignatureField] = s.signer.SignFields(fields)
		return fields
	}

	w = post(map[string]string{"correlation_id": correlationID, "status": "SUCCESS", "signature": "deadbeef"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "invalid signature")

	w = post(signed(map[string]string{"correlation_id": domain.NewCorrelationID(domain.CorrelationOrder), "status": "SUCCESS"}))
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := signed(map[string]string{"correlation_id": correlationID, "status": "SUCCESS", "txn_id": "gw-1", "amount": "200.00"})
	w = post(body)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.JSONEq(t, `{"outcome":"applied"}`, w.Body.String())

	w = post(body)
	assert.JSONEq(t, `{"outcome":"duplicate"}`, w.Body.String())

	w = s.do(http.MethodGet, "/api/v1/payments/"+correlationID+"/status", "", asUser())
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"paymentStatus":"paid"`)
}

func TestHandler_PayoutWebhook_Unknown(t *testing.T) {
	s := newTestServer(t, nil)
	body := `{"payoutId":"po-x","status":"SUCCESS"}`

	w := s.do(http.MethodPost, "/api/v1/webhooks/payout", body, map[string]string{"X-Signature": s.signer.SignBytes([]byte(body))})
	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"outcome":"ignored"}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/webhooks/payout", body, map[string]string{"X-Signature": "00"})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestHandler_Withdraw_MasksDetails(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.store.Wallets().Credit(context.Background(), testUser, decimal.NewFromInt(500)))
	s.gateway.On("InitiatePayout", mock.Anything, mock.Anything).Return(&gateway.PayoutReceipt{PayoutID: "po-1"}, nil)

	w := s.do(http.MethodPost, "/api/v1/wallet/withdraw",
		`{"amount":"200","beneficiary":{"accountHolder":"A Buyer","accountNumber":"123456789012","ifsc":"HDFC0001234"}}`, asUser())

	require.Equal(t, http.StatusAccepted, w.Code, w.Body.String())
	assert.Contains(t, w.Body.String(), "********9012")
	assert.NotContains(t, w.Body.String(), "123456789012")

	w = s.do(http.MethodGet, "/api/v1/wallet", "", asUser())
	assert.Contains(t, w.Body.String(), `"balance":"300"`)
}

func TestHandler_Reconcile_Drift(t *testing.T) {
	s := newTestServer(t, nil)
	require.NoError(t, s.store.Wallets().Credit(context.Background(), testUser, decimal.NewFromInt(10)))

	w := s.do(http.MethodGet, "/api/v1/wallet/reconcile", "", asUser())

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var resp ReconcileFailureResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, string(domain.KindConsistency), resp.Error)
	assert.True(t, decimal.NewFromInt(10).Equal(resp.Reconciliation.Drift))
}

func TestHandler_AdminUpdateStatus_Validation(t *testing.T) {
	s := newTestServer(t, nil)

	w := s.do(http.MethodPatch, "/api/v1/admin/orders/x/status", `{"status":"lost"}`, asUser(HeaderUserRole, RoleAdmin))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "validation")
}

func TestIdempotency_ReplaysStoredResponse(t *testing.T) {
	client := new(mocks.MockRedisClient)
	s := newTestServer(t, idempotency.NewStore(client, time.Hour))
	key := idempotency.Key(testUser, "k1")
	fingerprint := idempotency.Fingerprint(http.MethodPost, "/api/v1/wallet/deposit", []byte(`{"amount":"10"}`))
	stored, err := json.Marshal(idempotency.Record{
		Status:         idempotency.StatusDone,
		Fingerprint:    fingerprint,
		ResponseStatus: http.StatusCreated,
		ContentType:    "application/json; charset=utf-8",
		ResponseBody:   []byte(`{"replayed":true}`),
	})
	require.NoError(t, err)
	client.On("SetNX", mock.Anything, key, mock.Anything, time.Hour).Return(redis.NewBoolResult(false, nil))
	client.On("Get", mock.Anything, key).Return(redis.NewStringResult(string(stored), nil))

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", `{"amount":"10"}`, asUser(idempotency.Header, "k1"))
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "true", w.Header().Get("X-Idempotency-Hit"))
	assert.JSONEq(t, `{"replayed":true}`, w.Body.String())

	w = s.do(http.MethodPost, "/api/v1/wallet/deposit", `{"amount":"99"}`, asUser(idempotency.Header, "k1"))
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	s.gateway.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestIdempotency_StoresFirstResponse(t *testing.T) {
	client := new(mocks.MockRedisClient)
	s := newTestServer(t, idempotency.NewStore(client, time.Hour))
	key := idempotency.Key(testUser, "k2")
	client.On("SetNX", mock.Anything, key, mock.Anything, time.Hour).Return(redis.NewBoolResult(true, nil))
	client.On("Set", mock.Anything, key, mock.MatchedBy(func(v []byte) bool {
		var rec idempotency.Record
		return json.Unmarshal(v, &rec) == nil && rec.ResponseStatus == http.StatusCreated && strings.Contains(string(rec.ResponseBody), "dep-tok")
	}), time.Hour).Return(redis.NewStatusResult("OK", nil))
	s.gateway.On("InitiatePayment", mock.Anything, mock.Anything).Return(&gateway.PaymentSession{Token: "dep-tok"}, nil).Once()

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", `{"amount":"10"}`, asUser(idempotency.Header, "k2"))

	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	client.AssertExpectations(t)
}

func TestIdempotency_InProgress(t *testing.T) {
	client := new(mocks.MockRedisClient)
	s := newTestServer(t, idempotency.NewStore(client, time.Hour))
	key := idempotency.Key(testUser, "k3")
	fingerprint := idempotency.Fingerprint(http.MethodPost, "/api/v1/wallet/deposit", []byte(`{"amount":"10"}`))
	marker, err := json.Marshal(idempotency.Record{Status: idempotency.StatusInProgress, Fingerprint: fingerprint})
	require.NoError(t, err)
	client.On("SetNX", mock.Anything, key, mock.Anything, time.Hour).Return(redis.NewBoolResult(false, nil))
	client.On("Get", mock.Anything, key).Return(redis.NewStringResult(string(marker), nil))

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", `{"amount":"10"}`, asUser(idempotency.Header, "k3"))

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestIdempotency_RejectsOversizedBody(t *testing.T) {
	client := new(mocks.MockRedisClient)
	s := newTestServer(t, idempotency.NewStore(client, time.Hour))
	body := `{"amount":"10","pad":"` + strings.Repeat("x", maxRequestBody) + `"}`

	w := s.do(http.MethodPost, "/api/v1/wallet/deposit", body, asUser(idempotency.Header, "k4"))

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, w.Body.String(), "payload too large")
	client.AssertNotCalled(t, "SetNX", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	s.gateway.AssertNotCalled(t, "InitiatePayment", mock.Anything, mock.Anything)
}

func TestStatusFor(t *testing.T) {
	tests := []struct {
		kind domain.Kind
		want int
	}{
		{domain.KindValidation, http.StatusBadRequest},
		{domain.KindInsufficientStock, http.StatusConflict},
		{domain.KindInsufficientBalance, http.StatusConflict},
		{domain.KindNotFound, http.StatusNotFound},
		{domain.KindSignature, http.StatusBadRequest},
		{domain.KindGateway, http.StatusBadGateway},
		{domain.KindGatewayTimeout, http.StatusAccepted},
		{domain.KindConsistency, http.StatusInternalServerError},
		{domain.KindInternal, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			assert.Equal(t, tt.want, statusFor(tt.kind))
		})
	}
}
