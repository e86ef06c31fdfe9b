package gateway

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"tolovpay.uz/app/internal/shared/money"
)

const ProviderClick = "click"

// ClickConfig carries the merchant credentials issued in the Click cabinet.
// SecretKey also signs/verifies the prepare/complete callbacks.
type ClickConfig struct {
	ServiceID      int64
	MerchantID     int64
	MerchantUserID int64
	SecretKey      string
	CheckoutURL    string // e.g. https://my.click.uz/services/pay
	APIBaseURL     string // e.g. https://api.click.uz
	Timeout        time.Duration
}

type Click struct {
	cfg    ClickConfig
	client *http.Client
	now    func() time.Time
}

func NewClick(cfg ClickConfig) *Click {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	return &Click{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		now:    time.Now,
	}
}

func (c *Click) Name() string { return ProviderClick }

// CreatePayment builds the hosted-checkout redirect URL. Click assigns its
// transaction id later, in the prepare callback, so ProviderRef stays empty
// here and no network call is involved.
func (c *Click) CreatePayment(ctx context.Context, req CreateRequest) (CreateResponse, error) {
	_ = ctx

	q := url.Values{}
	q.Set("service_id", strconv.FormatInt(c.cfg.ServiceID, 10))
	q.Set("merchant_id", strconv.FormatInt(c.cfg.MerchantID, 10))
	q.Set("amount", money.FormatTiyin(req.AmountTiyin))
	q.Set("transaction_param", req.IntentID)
	if req.ReturnURL != "" {
		q.Set("return_url", req.ReturnURL)
	}

	return CreateResponse{RedirectURL: c.cfg.CheckoutURL + "?" + q.Encode()}, nil
}

type clickAPIResponse struct {
	ErrorCode int    `json:"error_code"`
	ErrorNote string `json:"error_note"`
	PaymentID int64  `json:"payment_id"`
}

func (c *Click) Refund(ctx context.Context, req RefundRequest) (RefundResponse, error) {
	if req.ProviderRef == "" {
		return RefundResponse{}, PermanentErr(ProviderClick, "no_payment_id", "refund requires a provider payment id")
	}

	u := fmt.Sprintf("%s/v2/merchant/payment/reversal/%d/%s",
		c.cfg.APIBaseURL, c.cfg.ServiceID, url.PathEscape(req.ProviderRef))

	var out clickAPIResponse
	if _, err := doJSON(ctx, c.client, ProviderClick, http.MethodDelete, u, c.authHeaders(), nil, &out); err != nil {
		return RefundResponse{}, err
	}
	if out.ErrorCode != 0 {
		return RefundResponse{}, PermanentErr(ProviderClick, strconv.Itoa(out.ErrorCode), out.ErrorNote)
	}
	return RefundResponse{ProviderRef: req.ProviderRef}, nil
}

type clickPaymentInfo struct {
	ErrorCode     int    `json:"error_code"`
	ErrorNote     string `json:"error_note"`
	PaymentID     int64  `json:"payment_id"`
	MerchantTrans string `json:"merchant_trans_id"`
	Amount        string `json:"amount"`
	PaymentStatus int    `json:"payment_status"`
}

func (c *Click) Lookup(ctx context.Context, providerRef string) (Record, error) {
	u := fmt.Sprintf("%s/v2/merchant/payment/%d/%s",
		c.cfg.APIBaseURL, c.cfg.ServiceID, url.PathEscape(providerRef))

	var out clickPaymentInfo
	status, err := doJSON(ctx, c.client, ProviderClick, http.MethodGet, u, c.authHeaders(), nil, &out)
	if status == http.StatusNotFound {
		return Record{}, ErrNotFound
	}
	if err != nil {
		return Record{}, err
	}
	if out.ErrorCode == -16 { // click: payment not found
		return Record{}, ErrNotFound
	}
	if out.ErrorCode != 0 {
		return Record{}, PermanentErr(ProviderClick, strconv.Itoa(out.ErrorCode), out.ErrorNote)
	}

	amt, perr := money.ParseSumToTiyin(out.Amount)
	if perr != nil {
		return Record{}, PermanentErr(ProviderClick, "bad_amount", "unparseable amount in payment info")
	}
	return Record{
		ProviderRef: strconv.FormatInt(out.PaymentID, 10),
		MerchantRef: out.MerchantTrans,
		AmountTiyin: amt,
		Status:      clickStatusName(out.PaymentStatus),
	}, nil
}

// authHeaders builds the Click merchant-API digest header:
// "Auth: <user_id>:<sha1(timestamp + secret_key)>:<timestamp>".
func (c *Click) authHeaders() map[string]string {
	ts := strconv.FormatInt(c.now().Unix(), 10)
	sum := sha1.Sum([]byte(ts + c.cfg.SecretKey))
	return map[string]string{
		"Auth": fmt.Sprintf("%d:%s:%s", c.cfg.MerchantUserID, hex.EncodeToString(sum[:]), ts),
	}
}

func clickStatusName(code int) string {
	switch code {
	case 2:
		return "paid"
	case 1, 0:
		return "processing"
	case -1, -2:
		return "cancelled"
	default:
		return "unknown"
	}
}
