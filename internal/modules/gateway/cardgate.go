package gateway

import (
	"context"
	"net/http"
	"net/url"
	"time"
)

const ProviderCard = "cardgate"

// CardGateConfig configures the card acquirer REST client. WebhookSecret
// signs the single-shot payment notifications.
type CardGateConfig struct {
	BaseURL       string
	APIKey        string // bearer token
	WebhookSecret string
	Timeout       time.Duration
}

type CardGate struct {
	cfg    CardGateConfig
	client *http.Client
}

func NewCardGate(cfg CardGateConfig) *CardGate {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &CardGate{cfg: cfg, client: &http.Client{Timeout: cfg.Timeout}}
}

func (g *CardGate) Name() string { return ProviderCard }

type cardOrderRequest struct {
	OrderID     string `json:"order_id"`
	MerchantRef string `json:"merchant_ref"`
	Amount      int64  `json:"amount"`
	Currency    string `json:"currency"`
	Description string `json:"description,omitempty"`
}

type cardOrderResponse struct {
	OrderRef    string `json:"order_ref"`
	ClientToken string `json:"client_token"`
	Status      string `json:"status"`
	Amount      int64  `json:"amount"`
	MerchantRef string `json:"merchant_ref"`
	PaidAt      *int64 `json:"paid_at,omitempty"`
	Decline     string `json:"decline_reason,omitempty"`
}

// CreatePayment opens an acquirer order and returns the client token the
// storefront uses for card tokenization. Declines at this stage (e.g.
// unsupported currency) are permanent.
func (g *CardGate) CreatePayment(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	body := cardOrderRequest{
		OrderID:     req.OrderID,
		MerchantRef: req.IntentID,
		Amount:      req.AmountTiyin,
		Currency:    req.Currency,
		Description: req.Description,
	}

	var out cardOrderResponse
	if _, err := doJSON(ctx, g.client, ProviderCard, http.MethodPost, g.cfg.BaseURL+"/v1/orders", g.headers(), body, &out); err != nil {
		return CreateResponse{}, err
	}
	if out.Status == "declined" {
		return CreateResponse{}, PermanentErr(ProviderCard, "declined", out.Decline)
	}
	return CreateResponse{ProviderRef: out.OrderRef, ClientToken: out.ClientToken}, nil
}

type cardRefundRequest struct {
	Amount int64  `json:"amount"`
	Reason string `json:"reason,omitempty"`
}

func (g *CardGate) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	if req.ProviderRef == "" {
		return RefundResponse{}, PermanentErr(ProviderCard, "no_order_ref", "refund requires an acquirer order reference")
	}

	u := g.cfg.BaseURL + "/v1/orders/" + url.PathEscape(req.ProviderRef) + "/refunds"
	var out cardOrderResponse
	if _, err := doJSON(ctx, g.client, ProviderCard, http.MethodPost, u, g.headers(), cardRefundRequest{Amount: req.AmountTiyin, Reason: req.Reason}, &out); err != nil {
		return RefundResponse{}, err
	}
	return RefundResponse{ProviderRef: out.OrderRef}, nil
}

func (g *CardGate) Lookup(ctx context.Context, providerRef string) (Record, error) {
	u := g.cfg.BaseURL + "/v1/orders/" + url.PathEscape(providerRef)

	var out cardOrderResponse
	status, err := doJSON(ctx, g.client, ProviderCard, http.MethodGet, u, g.headers(), nil, &out)
	if status == http.StatusNotFound {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}

	r := Record{
		ProviderRef: out.OrderRef,
		MerchantRef: out.MerchantRef,
		AmountTiyin: out.Amount,
		Status:      out.Status,
	}
	if out.PaidAt != nil {
		paid := time.Unix(*out.PaidAt, 0)
		r.PaidAt = &paid
	}
	return r, nil
}

func (g *CardGate) WebhookSecret() string { return g.cfg.WebhookSecret }

func (g *CardGate) headers() map[string]string {
	return map[string]string{"Authorization": "Bearer " + g.cfg.APIKey}
}
