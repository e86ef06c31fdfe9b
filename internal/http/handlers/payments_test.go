package handlers_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apphttp "tolovpay.uz/app/internal/http"
	"tolovpay.uz/app/internal/http/handlers"
	"tolovpay.uz/app/internal/modules/fraud"
	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/modules/intents"
	"tolovpay.uz/app/internal/modules/reconcile"
	"tolovpay.uz/app/internal/modules/webhooks"
)

const clickSecret = "router-test-secret"

func newTestRouter(t *testing.T) (*gin.Engine, *intents.MemoryStore) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	store := intents.NewMemoryStore()
	adapters := map[string]gateway.Adapter{
		intents.MethodClick: &gateway.Mock{
			NameValue: "click",
			CreateFunc: func(req gateway.CreateRequest) (gateway.CreateResponse, error) {
				return gateway.CreateResponse{RedirectURL: "https://my.click.uz/services/pay?transaction_param=" + req.IntentID}, nil
			},
		},
	}
	svc := intents.NewService(store, adapters, intents.Options{
		FraudPolicy: fraud.DefaultPolicy(),
		Retry:       gateway.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
		Currencies:  []string{"UZS"},
		Logger:      logger,
	})

	r := apphttp.NewRouter(apphttp.RouterDeps{
		Logger:   logger,
		Payments: handlers.NewPaymentHandler(logger, svc),
		Callbacks: handlers.NewCallbackHandler(logger,
			webhooks.NewClickProcessor(svc, 1, clickSecret, logger),
			webhooks.NewOsonProcessor(svc, "oson-secret", logger),
			webhooks.NewCardProcessor(svc, "card-secret", logger),
		),
		Reconcile: handlers.NewReconcileHandler(logger,
			reconcile.NewEngine(store, map[string]gateway.Adapter{}, logger), nil),
	})
	return r, store
}

func doJSON(t *testing.T, r *gin.Engine, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestCreateAndFetchPayment(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/payments", gin.H{
		"order_id":        uuid.NewString(),
		"amount_tiyin":    5_000_000,
		"currency":        "UZS",
		"method":          "click",
		"idempotency_key": "k-1",
	})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())

	var created struct {
		Payment struct {
			ID     string `json:"id"`
			Status string `json:"status"`
		} `json:"payment"`
		RedirectURL string `json:"redirect_url"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))
	assert.Equal(t, "processing", created.Payment.Status)
	assert.NotEmpty(t, created.RedirectURL)
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))

	got := doJSON(t, r, http.MethodGet, "/api/payments/"+created.Payment.ID, nil)
	require.Equal(t, http.StatusOK, got.Code)
	assert.Contains(t, got.Body.String(), created.Payment.ID)
}

func TestCreatePaymentValidationError(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/payments", gin.H{
		"order_id":        "not-a-uuid",
		"amount_tiyin":    -5,
		"currency":        "UZS",
		"method":          "click",
		"idempotency_key": "k-2",
	})
	require.Equal(t, http.StatusBadRequest, w.Code)

	var body struct {
		Code   string            `json:"code"`
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "validation_error", body.Code)
	assert.Contains(t, body.Fields, "order_id")
	assert.Contains(t, body.Fields, "amount_tiyin")
}

func TestGetUnknownPayment(t *testing.T) {
	r, _ := newTestRouter(t)

	w := doJSON(t, r, http.MethodGet, "/api/payments/"+uuid.NewString(), nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestClickCallbackOverHTTP(t *testing.T) {
	r, store := newTestRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/payments", gin.H{
		"order_id":        uuid.NewString(),
		"amount_tiyin":    5_000_000,
		"currency":        "UZS",
		"method":          "click",
		"idempotency_key": "k-3",
	})
	require.Equal(t, http.StatusCreated, w.Code)
	var created struct {
		Payment struct {
			ID string `json:"id"`
		} `json:"payment"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &created))

	prep := postClick(t, r, created.Payment.ID, webhooks.ClickActionPrepare, "")
	require.Equal(t, float64(0), prep["error"], "prepare refused: %v", prep["error_note"])

	comp := postClick(t, r, created.Payment.ID, webhooks.ClickActionComplete, created.Payment.ID)
	require.Equal(t, float64(0), comp["error"], "complete refused: %v", comp["error_note"])

	stored, err := store.GetIntent(context.Background(), created.Payment.ID)
	require.NoError(t, err)
	assert.Equal(t, intents.StatusCompleted, stored.Status)
}

func postClick(t *testing.T, r *gin.Engine, intentID string, action int, prepareID string) map[string]any {
	t.Helper()

	req := webhooks.ClickRequest{
		ClickTransID:      424242,
		ServiceID:         1,
		MerchantTransID:   intentID,
		MerchantPrepareID: prepareID,
		Amount:            "50000.00",
		Action:            action,
		SignTime:          "2026-08-20 15:00:00",
	}
	req.SignString = webhooks.ClickSign(clickSecret, req)

	form := url.Values{}
	form.Set("click_trans_id", strconv.FormatInt(req.ClickTransID, 10))
	form.Set("service_id", strconv.FormatInt(req.ServiceID, 10))
	form.Set("merchant_trans_id", req.MerchantTransID)
	if prepareID != "" {
		form.Set("merchant_prepare_id", prepareID)
	}
	form.Set("amount", req.Amount)
	form.Set("action", strconv.Itoa(req.Action))
	form.Set("sign_time", req.SignTime)
	form.Set("sign_string", req.SignString)

	httpReq := httptest.NewRequest(http.MethodPost, "/callbacks/click", strings.NewReader(form.Encode()))
	httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httpReq)
	require.Equal(t, http.StatusOK, w.Code)

	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}
