package http

import (
	"checkout-service/internal/domain"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"
)

var kindStatus = map[domain.Kind]int{
	domain.KindValidation:          http.StatusBadRequest,
	domain.KindInsufficientStock:   http.StatusConflict,
	domain.KindInsufficientBalance: http.StatusConflict,
	domain.KindNotFound:            http.StatusNotFound,
	domain.KindProductUnavailable:  http.StatusNotFound,
	domain.KindUnauthorized:        http.StatusUnauthorized,
	domain.KindForbidden:           http.StatusForbidden,
	domain.KindInvalidTransition:   http.StatusConflict,
	domain.KindSignature:           http.StatusBadRequest,
	domain.KindGateway:             http.StatusBadGateway,
	domain.KindGatewayTimeout:      http.StatusAccepted,
	domain.KindConsistency:         http.StatusInternalServerError,
}

func statusFor(kind domain.Kind) int {
	if status, ok := kindStatus[kind]; ok {
		return status
	}
	return http.StatusInternalServerError
}

// respondError writes err as {"error": kind, "message": ...}. Errors without
// a domain kind are logged and reported without detail.
func respondError(c *gin.Context, err error) {
	kind := domain.KindOf(err)
	status := statusFor(kind)

	var de *domain.Error
	message := "internal server error"
	if kind != domain.KindInternal && errors.As(err, &de) {
		message = de.Message
	}
	if status >= http.StatusInternalServerError {
		slog.Error("request failed", "path", c.FullPath(), "kind", kind, "error", err)
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: string(kind), Message: message})
}
