package handlers

import (
	"time"

	"github.com/gin-gonic/gin"

	"tolovpay.uz/app/internal/modules/intents"
)

// HeaderActorID identifies the operator or upstream system on mutating
// calls; absent, actions are attributed to "api".
const HeaderActorID = "X-Actor-ID"

func actorID(c *gin.Context) string {
	if v := c.GetHeader(HeaderActorID); v != "" {
		return v
	}
	return "api"
}

type intentResponse struct {
	ID              string     `json:"id"`
	OrderID         string     `json:"order_id"`
	Provider        string     `json:"provider"`
	ProviderTransID *string    `json:"provider_trans_id,omitempty"`
	Method          string     `json:"method"`
	Status          string     `json:"status"`
	AmountTiyin     int64      `json:"amount_tiyin"`
	RefundedTiyin   int64      `json:"refunded_tiyin"`
	Currency        string     `json:"currency"`
	RiskLevel       string     `json:"risk_level,omitempty"`
	RedirectURL     *string    `json:"redirect_url,omitempty"`
	ErrorMessage    *string    `json:"error_message,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
}

func intentView(p intents.PaymentIntent) intentResponse {
	return intentResponse{
		ID:              p.ID,
		OrderID:         p.OrderID,
		Provider:        p.Provider,
		ProviderTransID: p.ProviderTransID,
		Method:          p.Method,
		Status:          p.Status,
		AmountTiyin:     p.AmountTiyin,
		RefundedTiyin:   p.RefundedTiyin,
		Currency:        p.Currency,
		RiskLevel:       p.RiskLevel,
		RedirectURL:     p.RedirectURL,
		ErrorMessage:    p.ErrorMessage,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
		CompletedAt:     p.CompletedAt,
	}
}
