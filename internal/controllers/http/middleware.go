package http

import (
	"bytes"
	"checkout-service/internal/domain"
	"checkout-service/internal/idempotency"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

const (
	HeaderUserID   = "X-User-Id"
	HeaderUserRole = "X-User-Role"
	RoleAdmin      = "admin"

	ctxUserID   = "principal.user_id"
	ctxUserRole = "principal.role"

	maxIdempotencyKey = 128
	maxRequestBody    = 64 << 10
)

// Principal reads the identity an upstream gateway authenticated.
func Principal() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(HeaderUserID))
		if userID == "" {
			respondError(c, domain.Unauthorized())
			return
		}
		c.Set(ctxUserID, userID)
		c.Set(ctxUserRole, strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderUserRole))))
		c.Next()
	}
}

func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString(ctxUserRole) != RoleAdmin {
			respondError(c, domain.Forbidden())
			return
		}
		c.Next()
	}
}

func userID(c *gin.Context) string {
	return c.GetString(ctxUserID)
}

type recordingWriter struct {
	gin.ResponseWriter
	body bytes.Buffer
}

func (w *recordingWriter) Write(b []byte) (int, error) {
	w.body.Write(b)
	return w.ResponseWriter.Write(b)
}

func (w *recordingWriter) WriteString(s string) (int, error) {
	w.body.WriteString(s)
	return w.ResponseWriter.WriteString(s)
}

// Idempotency replays the stored response when a client repeats a POST with
// the same Idempotency-Key. A nil store turns it off. If redis is down the
// request runs unprotected; the services are guarded by their own state
// checks.
func Idempotency(store *idempotency.Store) gin.HandlerFunc {
	return func(c *gin.Context) {
		clientKey := strings.TrimSpace(c.GetHeader(idempotency.Header))
		if store == nil || clientKey == "" {
			c.Next()
			return
		}
		if len(clientKey) > maxIdempotencyKey {
			respondError(c, domain.Validation("Idempotency-Key is longer than %d characters", maxIdempotencyKey))
			return
		}

		body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxRequestBody))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondError(c, domain.Validation("payload too large"))
				return
			}
			respondError(c, domain.Validation("unreadable request body"))
			return
		}
		c.Request.Body = io.NopCloser(bytes.NewReader(body))

		ctx := c.Request.Context()
		key := idempotency.Key(userID(c), clientKey)
		fingerprint := idempotency.Fingerprint(c.Request.Method, c.FullPath(), body)

		rec, claimed, err := store.Begin(ctx, key, fingerprint)
		if err != nil {
			slog.Warn("idempotency store unavailable", "error", err)
			c.Next()
			return
		}
		if !claimed {
			switch {
			case rec.Fingerprint != fingerprint:
				c.AbortWithStatusJSON(http.StatusUnprocessableEntity, ErrorResponse{
					Error:   string(domain.KindValidation),
					Message: "Idempotency-Key was already used for a different request",
				})
			case rec.Status == idempotency.StatusDone:
				c.Header("X-Idempotency-Hit", "true")
				c.Data(rec.ResponseStatus, rec.ContentType, rec.ResponseBody)
				c.Abort()
			default:
				c.AbortWithStatusJSON(http.StatusConflict, ErrorResponse{
					Error:   "in_progress",
					Message: "a request with this Idempotency-Key is still running",
				})
			}
			return
		}

		w := &recordingWriter{ResponseWriter: c.Writer}
		c.Writer = w
		c.Next()

		saveCtx := context.WithoutCancel(ctx)
		if w.Status() >= http.StatusInternalServerError {
			if err := store.Abandon(saveCtx, key); err != nil {
				slog.Warn("releasing idempotency key failed", "error", err)
			}
			return
		}
		if err := store.Complete(saveCtx, key, idempotency.Record{
			Fingerprint:    fingerprint,
			ResponseStatus: w.Status(),
			ContentType:    w.Header().Get("Content-Type"),
			ResponseBody:   w.body.Bytes(),
		}); err != nil {
			slog.Warn("saving idempotent response failed", "error", err)
		}
	}
}
