package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	KindValidation          Kind = "validation"
	KindInsufficientStock   Kind = "insufficient_stock"
	KindInsufficientBalance Kind = "insufficient_balance"
	KindNotFound            Kind = "not_found"
	KindProductUnavailable  Kind = "product_unavailable"
	KindUnauthorized        Kind = "unauthorized"
	KindForbidden           Kind = "forbidden"
	KindInvalidTransition   Kind = "invalid_transition"
	KindSignature           Kind = "signature"
	KindGateway             Kind = "gateway"
	KindGatewayTimeout      Kind = "gateway_timeout"
	KindConsistency         Kind = "consistency"
	KindInternal            Kind = "internal"
)

// Error carries a Kind the transport layer maps to a status code.
type Error struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Err }

func newError(kind Kind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

// KindOf returns the Kind of the first *Error in err's chain, or KindInternal.
func KindOf(err error) Kind {
	var de *Error
	if errors.As(err, &de) {
		return de.Kind
	}
	return KindInternal
}

func IsKind(err error, kind Kind) bool {
	return err != nil && KindOf(err) == kind
}

func Validation(format string, args ...any) *Error {
	return newError(KindValidation, nil, format, args...)
}

func NotFound(what string) *Error {
	return newError(KindNotFound, nil, "%s not found", what)
}

func InsufficientStock(productID uint64, requested, available int64) *Error {
	return newError(KindInsufficientStock, nil,
		"insufficient stock for product %d: requested %d, available %d", productID, requested, available)
}

func InsufficientBalance(balance, required decimal.Decimal) *Error {
	return newError(KindInsufficientBalance, nil,
		"insufficient balance: need %s more", required.Sub(balance).StringFixed(2))
}

func ProductUnavailable(productID uint64) *Error {
	return newError(KindProductUnavailable, nil, "product %d is unavailable", productID)
}

func Unauthorized() *Error {
	return newError(KindUnauthorized, nil, "authentication required")
}

func Forbidden() *Error {
	return newError(KindForbidden, nil, "not allowed")
}

func InvalidTransition(format string, args ...any) *Error {
	return newError(KindInvalidTransition, nil, format, args...)
}

// SignatureInvalid never says which part of the check failed.
func SignatureInvalid() *Error {
	return newError(KindSignature, nil, "invalid signature")
}

func Gateway(err error) *Error {
	return newError(KindGateway, err, "payment provider error")
}

func GatewayTimeout(err error) *Error {
	return newError(KindGatewayTimeout, err, "payment pending, check back")
}

func Consistency(format string, args ...any) *Error {
	return newError(KindConsistency, nil, format, args...)
}
