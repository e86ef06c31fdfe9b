package webhooks

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tolovpay.uz/app/internal/modules/fraud"
	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/modules/intents"
)

const (
	testClickSecret  = "click-test-secret"
	testClickService = int64(7001)
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newIntentService(store intents.Store) *intents.Service {
	return intents.NewService(store, nil, intents.Options{
		FraudPolicy: fraud.DefaultPolicy(),
		Retry:       gateway.RetryPolicy{MaxAttempts: 1, BaseDelay: time.Millisecond},
		Currencies:  []string{"UZS"},
		Logger:      discard(),
	})
}

func seed(t *testing.T, store intents.Store, p intents.PaymentIntent) intents.PaymentIntent {
	t.Helper()
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.OrderID == "" {
		p.OrderID = uuid.NewString()
	}
	if p.Currency == "" {
		p.Currency = "UZS"
	}
	now := time.Now()
	p.CreatedAt, p.UpdatedAt = now, now
	err := store.InTx(context.Background(), func(tx intents.Tx) error {
		return tx.CreateIntent(&p)
	})
	require.NoError(t, err)
	return p
}

func signedClick(intentID string, transID int64, amount string, action int, prepareID string) ClickRequest {
	req := ClickRequest{
		ClickTransID:      transID,
		ServiceID:         testClickService,
		MerchantTransID:   intentID,
		MerchantPrepareID: prepareID,
		Amount:            amount,
		Action:            action,
		SignTime:          "2026-08-20 14:05:33",
	}
	req.SignString = ClickSign(testClickSecret, req)
	return req
}

func newClickSetup(t *testing.T) (*intents.MemoryStore, *ClickProcessor) {
	t.Helper()
	store := intents.NewMemoryStore()
	svc := newIntentService(store)
	return store, NewClickProcessor(svc, testClickService, testClickSecret, discard())
}

func TestClickPrepareThenComplete(t *testing.T) {
	store, proc := newClickSetup(t)
	p := seed(t, store, intents.PaymentIntent{
		Provider: gateway.ProviderClick, Method: intents.MethodClick,
		Status: intents.StatusPending, AmountTiyin: 5_000_000,
	})

	prep := proc.Process(context.Background(), signedClick(p.ID, 900100, "50000.00", ClickActionPrepare, ""))
	require.Equal(t, ClickOK, prep.Error, "prepare refused: %s", prep.ErrorNote)
	assert.Equal(t, p.ID, prep.MerchantPrepareID)

	comp := proc.Process(context.Background(), signedClick(p.ID, 900100, "50000.00", ClickActionComplete, prep.MerchantPrepareID))
	require.Equal(t, ClickOK, comp.Error, "complete refused: %s", comp.ErrorNote)
	assert.Equal(t, p.ID, comp.MerchantConfirmID)

	stored, err := store.GetIntent(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, intents.StatusCompleted, stored.Status)
}

func TestClickBadSignatureConstantBehavior(t *testing.T) {
	store, proc := newClickSetup(t)
	p := seed(t, store, intents.PaymentIntent{
		Provider: gateway.ProviderClick, Method: intents.MethodClick,
		Status: intents.StatusPending, AmountTiyin: 5_000_000,
	})

	existing := signedClick(p.ID, 900200, "50000.00", ClickActionPrepare, "")
	existing.SignString = "deadbeefdeadbeefdeadbeefdeadbeef"
	missing := signedClick(uuid.NewString(), 900201, "50000.00", ClickActionPrepare, "")
	missing.SignString = "deadbeefdeadbeefdeadbeefdeadbeef"

	ackExisting := proc.Process(context.Background(), existing)
	ackMissing := proc.Process(context.Background(), missing)

	// A forged digest learns nothing about whether the transaction exists.
	assert.Equal(t, ClickErrSign, ackExisting.Error)
	assert.Equal(t, ClickErrSign, ackMissing.Error)
	assert.Equal(t, ackExisting.ErrorNote, ackMissing.ErrorNote)

	stored, _ := store.GetIntent(context.Background(), p.ID)
	assert.Equal(t, intents.StatusPending, stored.Status)
}

func TestClickTamperedFieldFailsSignature(t *testing.T) {
	store, proc := newClickSetup(t)
	p := seed(t, store, intents.PaymentIntent{
		Provider: gateway.ProviderClick, Method: intents.MethodClick,
		Status: intents.StatusPending, AmountTiyin: 5_000_000,
	})

	req := signedClick(p.ID, 900300, "50000.00", ClickActionPrepare, "")
	req.Amount = "1.00" // signed over the original amount

	ack := proc.Process(context.Background(), req)
	assert.Equal(t, ClickErrSign, ack.Error)
}

func TestClickAmountMismatch(t *testing.T) {
	store, proc := newClickSetup(t)
	p := seed(t, store, intents.PaymentIntent{
		Provider: gateway.ProviderClick, Method: intents.MethodClick,
		Status: intents.StatusPending, AmountTiyin: 5_000_000,
	})

	ack := proc.Process(context.Background(), signedClick(p.ID, 900400, "49990.00", ClickActionPrepare, ""))
	assert.Equal(t, ClickErrAmount, ack.Error)
}

func TestClickAlreadyPaid(t *testing.T) {
	store, proc := newClickSetup(t)
	transID := "900500"
	p := seed(t, store, intents.PaymentIntent{
		Provider: gateway.ProviderClick, Method: intents.MethodClick,
		Status: intents.StatusCompleted, AmountTiyin: 5_000_000,
		ProviderTransID: &transID,
	})

	ack := proc.Process(context.Background(), signedClick(p.ID, 900501, "50000.00", ClickActionPrepare, ""))
	assert.Equal(t, ClickErrAlreadyPaid, ack.Error)
}

func TestClickUnknownTransaction(t *testing.T) {
	_, proc := newClickSetup(t)

	ack := proc.Process(context.Background(), signedClick(uuid.NewString(), 900600, "50000.00", ClickActionPrepare, ""))
	assert.Equal(t, ClickErrNotFound, ack.Error)
}

func TestClickUnknownAction(t *testing.T) {
	_, proc := newClickSetup(t)

	ack := proc.Process(context.Background(), signedClick(uuid.NewString(), 900700, "50000.00", 5, ""))
	assert.Equal(t, ClickErrAction, ack.Error)
}

func TestClickWrongService(t *testing.T) {
	_, proc := newClickSetup(t)

	req := ClickRequest{
		ClickTransID:    900800,
		ServiceID:       testClickService + 1,
		MerchantTransID: uuid.NewString(),
		Amount:          "50000.00",
		Action:          ClickActionPrepare,
		SignTime:        "2026-08-20 14:05:33",
	}
	req.SignString = ClickSign(testClickSecret, req)

	ack := proc.Process(context.Background(), req)
	assert.Equal(t, ClickErrBadRequest, ack.Error)
}

func TestClickCompleteWithProviderError(t *testing.T) {
	store, proc := newClickSetup(t)
	transID := "900900"
	p := seed(t, store, intents.PaymentIntent{
		Provider: gateway.ProviderClick, Method: intents.MethodClick,
		Status: intents.StatusProcessing, AmountTiyin: 5_000_000,
		ProviderTransID: &transID,
	})

	req := ClickRequest{
		ClickTransID:      900900,
		ServiceID:         testClickService,
		MerchantTransID:   p.ID,
		MerchantPrepareID: p.ID,
		Amount:            "50000.00",
		Action:            ClickActionComplete,
		ErrorCode:         -5017,
		ErrorNote:         "insufficient funds",
		SignTime:          "2026-08-20 14:05:33",
	}
	req.SignString = ClickSign(testClickSecret, req)

	ack := proc.Process(context.Background(), req)
	assert.Equal(t, ClickErrCancelled, ack.Error)

	stored, _ := store.GetIntent(context.Background(), p.ID)
	assert.Equal(t, intents.StatusFailed, stored.Status)
}

func TestClickAckWireFormat(t *testing.T) {
	ack := ClickResponse{
		ClickTransID:      900123,
		MerchantTransID:   "abc",
		MerchantPrepareID: "abc",
		ErrorNote:         "Success",
	}
	body, err := json.Marshal(ack)
	require.NoError(t, err)
	assert.JSONEq(t,
		`{"click_trans_id":900123,"merchant_trans_id":"abc","merchant_prepare_id":"abc","error":0,"error_note":"Success"}`,
		string(body))
}
