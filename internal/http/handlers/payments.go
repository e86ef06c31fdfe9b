package handlers

import (
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tolovpay.uz/app/internal/http/middleware"
	"tolovpay.uz/app/internal/http/validation"
	"tolovpay.uz/app/internal/modules/intents"
	"tolovpay.uz/app/internal/shared/apperr"
)

type PaymentHandler struct {
	Logger *slog.Logger
	Svc    *intents.Service
}

func NewPaymentHandler(logger *slog.Logger, svc *intents.Service) *PaymentHandler {
	return &PaymentHandler{Logger: logger, Svc: svc}
}

type createPaymentRequest struct {
	OrderID        string  `json:"order_id" binding:"required,uuid"`
	AmountTiyin    int64   `json:"amount_tiyin" binding:"required,gt=0"`
	Currency       string  `json:"currency" binding:"required,len=3"`
	Method         string  `json:"method" binding:"required"`
	CustomerID     *string `json:"customer_id"`
	NewCustomer    bool    `json:"new_customer"`
	IdempotencyKey string  `json:"idempotency_key" binding:"required,max=64"`
	ReturnURL      string  `json:"return_url"`
	CancelURL      string  `json:"cancel_url"`
}

// POST /api/payments
func (h *PaymentHandler) Create(c *gin.Context) {
	var req createPaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fields := validation.FromBindError(err, &req)
		middleware.Fail(c, apperr.InvalidErr("invalid payment request", fields))
		return
	}

	res, err := h.Svc.CreateIntent(c.Request.Context(), intents.CreateIntentInput{
		OrderID:        req.OrderID,
		AmountTiyin:    req.AmountTiyin,
		Currency:       req.Currency,
		Method:         req.Method,
		CustomerID:     req.CustomerID,
		NewCustomer:    req.NewCustomer,
		IdempotencyKey: req.IdempotencyKey,
		ReturnURL:      req.ReturnURL,
		CancelURL:      req.CancelURL,
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}

	status := http.StatusCreated
	if res.Idempotent {
		status = http.StatusOK
	}
	body := gin.H{"payment": intentView(res.Intent)}
	if res.RedirectURL != "" {
		body["redirect_url"] = res.RedirectURL
	}
	if res.ClientToken != "" {
		body["client_token"] = res.ClientToken
	}
	c.JSON(status, body)
}

// GET /api/payments/:id
func (h *PaymentHandler) Get(c *gin.Context) {
	p, err := h.Svc.GetIntent(c.Request.Context(), c.Param("id"))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": intentView(p)})
}

type refundRequest struct {
	AmountTiyin int64  `json:"amount_tiyin" binding:"omitempty,gt=0"`
	Reason      string `json:"reason" binding:"max=250"`
}

// POST /api/payments/:id/refund
func (h *PaymentHandler) Refund(c *gin.Context) {
	var req refundRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		fields := validation.FromBindError(err, &req)
		middleware.Fail(c, apperr.InvalidErr("invalid refund request", fields))
		return
	}

	res, err := h.Svc.Refund(c.Request.Context(), intents.RefundInput{
		IntentID:    c.Param("id"),
		AmountTiyin: req.AmountTiyin,
		Reason:      req.Reason,
		ActorID:     actorID(c),
	})
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"payment":        intentView(res.Intent),
		"refunded_tiyin": res.RefundedTiyin,
	})
}

type cancelRequest struct {
	Reason string `json:"reason" binding:"max=250"`
}

// POST /api/payments/:id/cancel
func (h *PaymentHandler) Cancel(c *gin.Context) {
	var req cancelRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			fields := validation.FromBindError(err, &req)
			middleware.Fail(c, apperr.InvalidErr("invalid cancel request", fields))
			return
		}
	}

	p, err := h.Svc.Cancel(c.Request.Context(), c.Param("id"), req.Reason, actorID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": intentView(p)})
}

// POST /api/payments/:id/confirm
// Offline methods only: an operator confirms the money arrived.
func (h *PaymentHandler) Confirm(c *gin.Context) {
	p, err := h.Svc.ConfirmOffline(c.Request.Context(), c.Param("id"), actorID(c))
	if err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"payment": intentView(p)})
}
