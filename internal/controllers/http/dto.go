package http

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/services"
)

type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

type CallbackResponse struct {
	Outcome services.Outcome `json:"outcome"`
}

// PendingCheckoutResponse is sent with 202 when the provider did not answer
// in time.
type PendingCheckoutResponse struct {
	Status  string        `json:"status"`
	Message string        `json:"message"`
	Order   *domain.Order `json:"order"`
}

type PendingDepositResponse struct {
	Status      string              `json:"status"`
	Message     string              `json:"message"`
	Transaction *domain.Transaction `json:"transaction"`
}

type ReconcileFailureResponse struct {
	ErrorResponse
	Reconciliation *services.Reconciliation `json:"reconciliation"`
}
