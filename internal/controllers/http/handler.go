package http

import (
	"checkout-service/internal/domain"
	"checkout-service/internal/idempotency"
	"checkout-service/internal/services"
	"checkout-service/internal/validation"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	validatorv10 "github.com/go-playground/validator/v10"
)

const (
	defaultListLimit = 20
	maxListLimit     = 100
	maxWebhookBody   = 64 << 10
)

type Services struct {
	Carts    *services.CartService
	Checkout *services.CheckoutService
	Payments *services.PaymentService
	Wallets  *services.WalletService
	Admin    *services.OrderAdminService
}

type Handler struct {
	svc      Services
	idem     *idempotency.Store
	validate *validatorv10.Validate
}

// NewHandler accepts a nil idempotency store.
func NewHandler(svc Services, idem *idempotency.Store) *Handler {
	return &Handler{svc: svc, idem: idem, validate: validation.New()}
}

func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")

	hooks := api.Group("/webhooks")
	hooks.POST("/payment", h.PaymentWebhook)
	hooks.POST("/payout", h.PayoutWebhook)

	user := api.Group("", Principal())
	once := Idempotency(h.idem)

	user.GET("/cart", h.GetCart)
	user.POST("/cart/items", h.AddCartItem)
	user.PATCH("/cart/items/:productId", h.UpdateCartItem)
	user.DELETE("/cart/items/:productId", h.RemoveCartItem)

	user.POST("/checkout/gateway", once, h.CheckoutGateway)
	user.POST("/checkout/wallet", once, h.CheckoutWallet)
	user.GET("/orders", h.ListOrders)
	user.GET("/orders/:id", h.GetOrder)
	user.GET("/payments/:correlationId/status", h.PaymentStatus)

	user.GET("/wallet", h.GetWallet)
	user.GET("/wallet/transactions", h.WalletHistory)
	user.GET("/wallet/reconcile", h.Reconcile)
	user.POST("/wallet/deposit", once, h.Deposit)
	user.POST("/wallet/withdraw", once, h.Withdraw)

	admin := user.Group("/admin", RequireAdmin())
	admin.GET("/orders/:id", h.AdminGetOrder)
	admin.PATCH("/orders/:id/status", h.UpdateOrderStatus)
	admin.POST("/orders/:id/return", h.ProcessReturn)
	admin.POST("/orders/:id/refund", h.CompleteRefund)
}

func productParam(c *gin.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("productId"), 10, 64)
	if err != nil || id == 0 {
		return 0, domain.Validation("productId must be a positive integer")
	}
	return id, nil
}

func limitParam(c *gin.Context) int {
	limit, err := strconv.Atoi(c.Query("limit"))
	if err != nil || limit <= 0 {
		return defaultListLimit
	}
	if limit > maxListLimit {
		return maxListLimit
	}
	return limit
}

func (h *Handler) GetCart(c *gin.Context) {
	cart, err := h.svc.Carts.GetCart(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) AddCartItem(c *gin.Context) {
	var req validation.AddCartItemRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	cart, err := h.svc.Carts.AddItem(c.Request.Context(), userID(c), req.ProductID, req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) UpdateCartItem(c *gin.Context) {
	productID, err := productParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	var req validation.UpdateCartItemRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	cart, err := h.svc.Carts.UpdateQuantity(c.Request.Context(), userID(c), productID, *req.Quantity)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) RemoveCartItem(c *gin.Context) {
	productID, err := productParam(c)
	if err != nil {
		respondError(c, err)
		return
	}
	cart, err := h.svc.Carts.RemoveItem(c.Request.Context(), userID(c), productID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, cart)
}

func (h *Handler) CheckoutGateway(c *gin.Context) {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	res, err := h.svc.Checkout.InitiateGatewayCheckout(c.Request.Context(), userID(c), req.Shipping.ToDomain())
	if err != nil {
		respondError(c, err)
		return
	}
	if res.Pending {
		c.JSON(http.StatusAccepted, PendingCheckoutResponse{
			Status:  "pending",
			Message: domain.GatewayTimeout(nil).Message,
			Order:   res.Order,
		})
		return
	}
	c.JSON(http.StatusCreated, res)
}

func (h *Handler) CheckoutWallet(c *gin.Context) {
	var req validation.CheckoutRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	order, err := h.svc.Checkout.PayWithWallet(c.Request.Context(), userID(c), req.Shipping.ToDomain())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, order)
}

func (h *Handler) ListOrders(c *gin.Context) {
	orders, err := h.svc.Checkout.ListOrders(c.Request.Context(), userID(c), limitParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, orders)
}

func (h *Handler) GetOrder(c *gin.Context) {
	order, err := h.svc.Checkout.GetOrder(c.Request.Context(), userID(c), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) PaymentStatus(c *gin.Context) {
	state, err := h.svc.Payments.CheckStatus(c.Request.Context(), userID(c), c.Param("correlationId"))
	if err != nil {
		respondError(c, err)
		return
	}
	if state.Pending {
		c.JSON(http.StatusAccepted, state)
		return
	}
	c.JSON(http.StatusOK, state)
}

func (h *Handler) GetWallet(c *gin.Context) {
	wallet, err := h.svc.Wallets.GetWallet(c.Request.Context(), userID(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, wallet)
}

func (h *Handler) WalletHistory(c *gin.Context) {
	txns, err := h.svc.Wallets.History(c.Request.Context(), userID(c), limitParam(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, txns)
}

func (h *Handler) Reconcile(c *gin.Context) {
	rec, err := h.svc.Wallets.Reconcile(c.Request.Context(), userID(c))
	if err != nil {
		if rec != nil && domain.IsKind(err, domain.KindConsistency) {
			c.JSON(http.StatusInternalServerError, ReconcileFailureResponse{
				ErrorResponse:  ErrorResponse{Error: string(domain.KindConsistency), Message: "wallet balance does not match the ledger"},
				Reconciliation: rec,
			})
			return
		}
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) Deposit(c *gin.Context) {
	var req validation.DepositRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	session, err := h.svc.Payments.InitiateDeposit(c.Request.Context(), userID(c), req.Amount)
	if err != nil {
		respondError(c, err)
		return
	}
	if session.Pending {
		c.JSON(http.StatusAccepted, PendingDepositResponse{
			Status:      "pending",
			Message:     domain.GatewayTimeout(nil).Message,
			Transaction: session.Transaction,
		})
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *Handler) Withdraw(c *gin.Context) {
	var req validation.WithdrawRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	txn, err := h.svc.Wallets.InitiateWithdrawal(c.Request.Context(), userID(c), req.Amount, req.Beneficiary)
	if err != nil {
		respondError(c, err)
		return
	}
	if d := txn.WithdrawalDetails; d != nil {
		masked := d.Masked()
		txn.WithdrawalDetails = &masked
	}
	c.JSON(http.StatusAccepted, txn)
}

// PaymentWebhook answers 2xx only for callbacks that were applied or can be
// safely dropped; anything else makes the provider retry.
func (h *Handler) PaymentWebhook(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody)
	if err := c.Request.ParseForm(); err != nil {
		respondError(c, domain.Validation("malformed form body"))
		return
	}
	outcome, err := h.svc.Payments.HandleCallback(c.Request.Context(), c.Request.PostForm)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CallbackResponse{Outcome: outcome})
}

func (h *Handler) PayoutWebhook(c *gin.Context) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBody))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			respondError(c, domain.Validation("payload too large"))
			return
		}
		respondError(c, domain.Validation("unreadable body"))
		return
	}
	outcome, err := h.svc.Wallets.HandlePayoutCallback(c.Request.Context(), body, c.GetHeader("X-Signature"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, CallbackResponse{Outcome: outcome})
}

func (h *Handler) AdminGetOrder(c *gin.Context) {
	order, err := h.svc.Admin.GetOrder(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) UpdateOrderStatus(c *gin.Context) {
	var req validation.UpdateOrderStatusRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	order, err := h.svc.Admin.UpdateStatus(c.Request.Context(), c.Param("id"), domain.OrderStatus(req.Status))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) ProcessReturn(c *gin.Context) {
	var req validation.ReturnRequest
	if err := validation.BindAndValidate(c, &req, h.validate); err != nil {
		return
	}
	order, err := h.svc.Admin.ProcessReturn(c.Request.Context(), c.Param("id"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}

func (h *Handler) CompleteRefund(c *gin.Context) {
	order, err := h.svc.Admin.CompleteRefund(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, order)
}
