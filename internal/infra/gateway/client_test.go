package gateway

import (
	"checkout-service/internal/config"
	"checkout-service/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(url string, timeout time.Duration) *HTTPClient {
	return NewClient(config.Gateway{BaseURL: url + "/", MerchantID: "m-1", MerchantSecret: secret, Timeout: timeout})
}

func TestInitiatePayment(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/payments", r.URL.Path)
		assert.Equal(t, "Bearer "+secret, r.Header.Get("Authorization"))
		assert.Equal(t, "m-1", r.Header.Get("X-Merchant-Id"))

		var req PaymentRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "ord_1", req.CorrelationID)
		assert.Equal(t, "INR", req.Currency)
		assert.True(t, decimal.RequireFromString("99.50").Equal(req.Amount))

		_ = json.NewEncoder(w).Encode(PaymentSession{Token: "tok", RedirectURL: "https://pay/tok"})
	}))
	defer srv.Close()

	session, err := newTestClient(srv.URL, time.Second).InitiatePayment(context.Background(), PaymentRequest{
		Amount:        decimal.RequireFromString("99.50"),
		CorrelationID: "ord_1",
		CustomerID:    "u1",
	})
	require.NoError(t, err)
	assert.Equal(t, "tok", session.Token)
}

func TestInitiatePayout_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = w.Write([]byte(`{"error":"invalid beneficiary"}`))
	}))
	defer srv.Close()

	_, err := newTestClient(srv.URL, time.Second).InitiatePayout(context.Background(), PayoutRequest{
		Amount:        decimal.NewFromInt(5),
		CorrelationID: "wd_1",
		Beneficiary:   domain.PayoutDetails{AccountHolder: "A", UPI: "a@b"},
	})
	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, http.StatusUnprocessableEntity, pe.StatusCode)
	assert.False(t, errors.Is(err, ErrTimeout))
}

func TestQueryStatus_TimeoutIsNotAnOutcome(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-release
	}))
	defer srv.Close()
	defer close(release)

	_, err := newTestClient(srv.URL, 50*time.Millisecond).QueryStatus(context.Background(), "ord_1")
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestQueryStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/payments/ord_9", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"success","gatewayTxnId":"pg_9"}`))
	}))
	defer srv.Close()

	rep, err := newTestClient(srv.URL, time.Second).QueryStatus(context.Background(), "ord_9")
	require.NoError(t, err)
	assert.Equal(t, StatusSuccess, rep.Status)
	assert.Equal(t, "pg_9", rep.GatewayTxnID)
	assert.Contains(t, rep.Raw, "pg_9")
}
