package handlers

import (
	"io"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"tolovpay.uz/app/internal/http/middleware"
	"tolovpay.uz/app/internal/modules/webhooks"
)

// CallbackHandler terminates the provider callback endpoints. Click and
// Oson always get HTTP 200 with their own ack vocabulary in the body; the
// card acquirer gets plain HTTP statuses.
type CallbackHandler struct {
	Logger *slog.Logger
	Click  *webhooks.ClickProcessor
	Oson   *webhooks.OsonProcessor
	Card   *webhooks.CardProcessor
}

func NewCallbackHandler(logger *slog.Logger, click *webhooks.ClickProcessor, oson *webhooks.OsonProcessor, card *webhooks.CardProcessor) *CallbackHandler {
	return &CallbackHandler{Logger: logger, Click: click, Oson: oson, Card: card}
}

// POST /callbacks/click
// Form-encoded body. Malformed requests still get a Click-shaped ack so
// the provider parses the refusal instead of retrying blindly.
func (h *CallbackHandler) HandleClick(c *gin.Context) {
	var req webhooks.ClickRequest
	if err := c.ShouldBind(&req); err != nil {
		c.JSON(http.StatusOK, webhooks.ClickResponse{
			Error:     webhooks.ClickErrBadRequest,
			ErrorNote: "Error in request",
		})
		return
	}
	c.JSON(http.StatusOK, h.Click.Process(c.Request.Context(), req))
}

// POST /callbacks/oson
func (h *CallbackHandler) HandleOson(c *gin.Context) {
	var req webhooks.OsonRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusOK, webhooks.OsonResponse{
			Status:  webhooks.OsonErrInternal,
			Message: "malformed request",
		})
		return
	}
	c.JSON(http.StatusOK, h.Oson.Process(c.Request.Context(), req))
}

// CardSignatureHeader carries the acquirer's `t=<ts>,v1=<hex>` signature.
const CardSignatureHeader = "X-Gate-Signature"

// POST /callbacks/card
// Raw JSON body, HMAC signature header. Non-2xx makes the acquirer
// redeliver, so transient store errors map to 5xx and protocol rejections
// to 4xx via the error handler.
func (h *CallbackHandler) HandleCard(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"ok": false})
		return
	}

	if err := h.Card.Process(c.Request.Context(), body, c.GetHeader(CardSignatureHeader)); err != nil {
		middleware.Fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"ok": true})
}
