package reconcile

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/modules/intents"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var (
	windowFrom = time.Date(2026, 8, 20, 0, 0, 0, 0, time.UTC)
	windowTo   = time.Date(2026, 8, 21, 0, 0, 0, 0, time.UTC)
)

func seed(t *testing.T, store intents.Store, status, provider, ref string, amount int64) intents.PaymentIntent {
	t.Helper()
	p := intents.PaymentIntent{
		ID:          uuid.NewString(),
		OrderID:     uuid.NewString(),
		Provider:    provider,
		Method:      provider,
		Status:      status,
		AmountTiyin: amount,
		Currency:    "UZS",
		CreatedAt:   windowFrom.Add(2 * time.Hour),
		UpdatedAt:   windowFrom.Add(2 * time.Hour),
	}
	if ref != "" {
		p.ProviderTransID = &ref
	}
	err := store.InTx(context.Background(), func(tx intents.Tx) error {
		return tx.CreateIntent(&p)
	})
	require.NoError(t, err)
	return p
}

func TestRunCleanWindow(t *testing.T) {
	store := intents.NewMemoryStore()
	p := seed(t, store, intents.StatusCompleted, "click", "ck-1", 5_000_000)
	seed(t, store, intents.StatusFailed, "click", "", 1_000_000)

	mock := &gateway.Mock{
		NameValue: "click",
		LookupFunc: func(ref string) (gateway.Record, error) {
			return gateway.Record{ProviderRef: ref, MerchantRef: p.ID, AmountTiyin: 5_000_000, Status: "paid"}, nil
		},
	}
	engine := NewEngine(store, map[string]gateway.Adapter{"click": mock}, discard())

	report, err := engine.Run(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	assert.True(t, report.Clean())
	assert.Equal(t, 2, report.IntentsChecked)
	assert.Equal(t, 1, mock.LookupCalls(), "only settled referenced intents are verified")
	assert.Equal(t, StatusTotal{Count: 1, AmountTiyin: 5_000_000}, report.TotalsByStatus[intents.StatusCompleted])
	assert.Equal(t, StatusTotal{Count: 1, AmountTiyin: 1_000_000}, report.TotalsByStatus[intents.StatusFailed])
}

func TestRunAmountMismatch(t *testing.T) {
	store := intents.NewMemoryStore()
	p := seed(t, store, intents.StatusCompleted, "click", "ck-2", 5_000_000)

	mock := &gateway.Mock{
		NameValue: "click",
		LookupFunc: func(ref string) (gateway.Record, error) {
			return gateway.Record{ProviderRef: ref, AmountTiyin: 4_999_990, Status: "paid"}, nil
		},
	}
	engine := NewEngine(store, map[string]gateway.Adapter{"click": mock}, discard())

	report, err := engine.Run(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, KindAmountMismatch, d.Kind)
	assert.Equal(t, p.ID, d.IntentID)
	assert.Equal(t, int64(5_000_000), d.ExpectedTiyin)
	assert.Equal(t, int64(4_999_990), d.ActualTiyin)
	assert.Equal(t, int64(10), d.DiffTiyin)
}

func TestRunMissingAtProvider(t *testing.T) {
	store := intents.NewMemoryStore()
	p := seed(t, store, intents.StatusCompleted, "click", "ck-3", 2_000_000)

	mock := &gateway.Mock{NameValue: "click"} // Lookup defaults to ErrNotFound
	engine := NewEngine(store, map[string]gateway.Adapter{"click": mock}, discard())

	report, err := engine.Run(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, KindMissingAtProvider, d.Kind)
	assert.Equal(t, p.ID, d.IntentID)
	assert.Equal(t, int64(2_000_000), d.DiffTiyin)
}

func TestRunMissingLocally(t *testing.T) {
	store := intents.NewMemoryStore()
	seed(t, store, intents.StatusCompleted, "oson", "os-1", 3_000_000)

	mock := &gateway.MockLister{
		Mock: gateway.Mock{
			NameValue: "oson",
			LookupFunc: func(ref string) (gateway.Record, error) {
				return gateway.Record{ProviderRef: ref, AmountTiyin: 3_000_000, Status: "paid"}, nil
			},
		},
		ListFunc: func(from, to time.Time) ([]gateway.Record, error) {
			return []gateway.Record{
				{ProviderRef: "os-1", AmountTiyin: 3_000_000, Status: "paid"},
				{ProviderRef: "os-ghost", AmountTiyin: 750_000, Status: "paid"},
			}, nil
		},
	}
	engine := NewEngine(store, map[string]gateway.Adapter{"oson": mock}, discard())

	report, err := engine.Run(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	require.Len(t, report.Discrepancies, 1)
	d := report.Discrepancies[0]
	assert.Equal(t, KindMissingLocally, d.Kind)
	assert.Equal(t, "os-ghost", d.ProviderRef)
	assert.Equal(t, int64(750_000), d.ActualTiyin)
	assert.Equal(t, int64(-750_000), d.DiffTiyin)
}

func TestRunSkipsOfflineIntents(t *testing.T) {
	store := intents.NewMemoryStore()
	seed(t, store, intents.StatusCompleted, "cash_on_delivery", "", 1_500_000)

	engine := NewEngine(store, map[string]gateway.Adapter{}, discard())

	report, err := engine.Run(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)

	assert.True(t, report.Clean(), "intents with no provider reference have nothing to verify")
	assert.Equal(t, StatusTotal{Count: 1, AmountTiyin: 1_500_000}, report.TotalsByStatus[intents.StatusCompleted])
}

func TestRunOutsideWindowIgnored(t *testing.T) {
	store := intents.NewMemoryStore()
	p := intents.PaymentIntent{
		ID: uuid.NewString(), OrderID: uuid.NewString(),
		Provider: "click", Method: "click", Status: intents.StatusCompleted,
		AmountTiyin: 1_000_000, Currency: "UZS",
		CreatedAt: windowTo.Add(time.Hour), UpdatedAt: windowTo.Add(time.Hour),
	}
	require.NoError(t, store.InTx(context.Background(), func(tx intents.Tx) error {
		return tx.CreateIntent(&p)
	}))

	engine := NewEngine(store, map[string]gateway.Adapter{}, discard())
	report, err := engine.Run(context.Background(), windowFrom, windowTo)
	require.NoError(t, err)
	assert.Equal(t, 0, report.IntentsChecked)
}

func TestRunRejectsEmptyWindow(t *testing.T) {
	engine := NewEngine(intents.NewMemoryStore(), nil, discard())
	_, err := engine.Run(context.Background(), windowTo, windowFrom)
	assert.Error(t, err)
}
