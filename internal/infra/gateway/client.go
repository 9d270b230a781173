package gateway

import (
	"bytes"
	"checkout-service/internal/config"
	"checkout-service/internal/domain"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrTimeout means the provider did not answer in time. The outcome of the
// call is unknown.
var ErrTimeout = errors.New("payment provider timed out")

// ProviderError is a definitive rejection by the provider.
type ProviderError struct {
	StatusCode int
	Body       string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider returned status %d: %s", e.StatusCode, e.Body)
}

type PaymentRequest struct {
	Amount        decimal.Decimal `json:"amount"`
	CorrelationID string          `json:"correlationId"`
	CustomerID    string          `json:"customerId"`
	Currency      string          `json:"currency"`
}

type PaymentSession struct {
	Token       string `json:"token"`
	RedirectURL string `json:"redirectUrl"`
}

type PayoutRequest struct {
	Amount        decimal.Decimal      `json:"amount"`
	CorrelationID string               `json:"correlationId"`
	Beneficiary   domain.PayoutDetails `json:"beneficiary"`
}

type PayoutReceipt struct {
	PayoutID string `json:"payoutId"`
}

type StatusReport struct {
	Status       Status `json:"status"`
	GatewayTxnID string `json:"gatewayTxnId"`
	Raw          string `json:"-"`
}

type Client interface {
	InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error)
	InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error)
	QueryStatus(ctx context.Context, correlationID string) (*StatusReport, error)
}

type HTTPClient struct {
	baseURL    string
	merchantID string
	secret     string
	httpClient *http.Client
}

func NewClient(cfg config.Gateway) *HTTPClient {
	return &HTTPClient{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		merchantID: cfg.MerchantID,
		secret:     cfg.MerchantSecret,
		httpClient: &http.Client{Timeout: cfg.Timeout},
	}
}

func (c *HTTPClient) InitiatePayment(ctx context.Context, req PaymentRequest) (*PaymentSession, error) {
	if req.Currency == "" {
		req.Currency = "INR"
	}
	var out PaymentSession
	if _, err := c.do(ctx, http.MethodPost, "/payments", req, &out); err != nil {
		return nil, err
	}
	if out.Token == "" && out.RedirectURL == "" {
		return nil, &ProviderError{StatusCode: http.StatusOK, Body: "empty payment session"}
	}
	return &out, nil
}

func (c *HTTPClient) InitiatePayout(ctx context.Context, req PayoutRequest) (*PayoutReceipt, error) {
	var out PayoutReceipt
	if _, err := c.do(ctx, http.MethodPost, "/payouts", req, &out); err != nil {
		return nil, err
	}
	if out.PayoutID == "" {
		return nil, &ProviderError{StatusCode: http.StatusOK, Body: "missing payout id"}
	}
	return &out, nil
}

func (c *HTTPClient) QueryStatus(ctx context.Context, correlationID string) (*StatusReport, error) {
	var out StatusReport
	raw, err := c.do(ctx, http.MethodGet, "/payments/"+url.PathEscape(correlationID), nil, &out)
	if err != nil {
		return nil, err
	}
	st, ok := ParseStatus(string(out.Status))
	if !ok {
		return nil, &ProviderError{StatusCode: http.StatusOK, Body: "unknown status " + string(out.Status)}
	}
	out.Status = st
	out.Raw = string(raw)
	return &out, nil
}

func (c *HTTPClient) do(ctx context.Context, method, path string, in, out any) ([]byte, error) {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return nil, err
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.secret)
	req.Header.Set("X-Merchant-Id", c.merchantID)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		if isTimeout(err) {
			return nil, fmt.Errorf("%w: %v", ErrTimeout, err)
		}
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &ProviderError{StatusCode: resp.StatusCode, Body: string(raw)}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return nil, fmt.Errorf("decode provider response: %w", err)
	}
	return raw, nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}
