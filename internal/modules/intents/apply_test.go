package intents

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tolovpay.uz/app/internal/modules/gateway"
)

func prepareInput(p PaymentIntent, transID string) WebhookInput {
	return WebhookInput{
		Provider:        p.Provider,
		MerchantTransID: p.ID,
		ProviderTransID: transID,
		AmountTiyin:     p.AmountTiyin,
		Payload:         []byte(`{"src":"test"}`),
	}
}

func TestApplyPrepareBindsReference(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, map[string]gateway.Adapter{MethodClick: &gateway.Mock{NameValue: "click"}})

	res, err := svc.CreateIntent(context.Background(), validCreate(MethodClick))
	require.NoError(t, err)
	require.Equal(t, StatusProcessing, res.Intent.Status)

	out, err := svc.ApplyPrepare(context.Background(), prepareInput(res.Intent, "730001"))
	require.NoError(t, err)

	assert.Equal(t, res.Intent.ID, out.PrepareID, "prepare id is our intent id")
	assert.False(t, out.Duplicate)
	assert.Equal(t, StatusProcessing, out.Intent.Status)
	require.NotNil(t, out.Intent.ProviderTransID)
	assert.Equal(t, "730001", *out.Intent.ProviderTransID)
}

func TestApplyPrepareFromPending(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusPending, AmountTiyin: 5_000_000,
	})

	out, err := svc.ApplyPrepare(context.Background(), prepareInput(p, "730002"))
	require.NoError(t, err)
	assert.Equal(t, StatusProcessing, out.Intent.Status)
}

func TestApplyPrepareRedelivery(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusPending, AmountTiyin: 5_000_000,
	})

	_, err := svc.ApplyPrepare(context.Background(), prepareInput(p, "730003"))
	require.NoError(t, err)

	out, err := svc.ApplyPrepare(context.Background(), prepareInput(p, "730003"))
	require.NoError(t, err, "redelivered prepare acks success")
	assert.True(t, out.Duplicate)

	events, _ := store.ListIntentEvents(context.Background(), p.ID)
	assert.Len(t, events, 1, "redelivery must not add transitions")

	_, err = svc.ApplyPrepare(context.Background(), prepareInput(p, "730003"))
	require.NoError(t, err)

	var duplicates int
	for _, ev := range store.WebhookEvents() {
		if ev.Outcome == OutcomeDuplicate {
			duplicates++
		}
	}
	assert.Equal(t, 1, duplicates, "redeliveries leave one duplicate-outcome record")
}

func TestApplyPrepareAmountMismatch(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusPending, AmountTiyin: 5_000_000,
	})

	in := prepareInput(p, "730004")
	in.AmountTiyin = 4_999_000
	_, err := svc.ApplyPrepare(context.Background(), in)
	assert.True(t, errors.Is(err, ErrAmountMismatch))

	stored, _ := store.GetIntent(context.Background(), p.ID)
	assert.Equal(t, StatusPending, stored.Status, "rejection must not mutate the intent")
	assert.Nil(t, stored.ProviderTransID)

	var rejected int
	for _, ev := range store.WebhookEvents() {
		if ev.Outcome == OutcomeRejected {
			rejected++
		}
	}
	assert.Equal(t, 1, rejected, "rejections leave an audit record")
}

func TestApplyPrepareUnknownIntent(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	_, err := svc.ApplyPrepare(context.Background(), WebhookInput{
		Provider:        "click",
		MerchantTransID: "11111111-1111-1111-1111-111111111111",
		ProviderTransID: "730005",
		AmountTiyin:     1_000_000,
	})
	assert.True(t, errors.Is(err, ErrIntentNotFound))
}

func TestApplyPrepareWrongProvider(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "oson", Method: MethodOson, Status: StatusPending, AmountTiyin: 1_000_000,
	})

	in := prepareInput(p, "730006")
	in.Provider = "click" // claims another provider's intent
	_, err := svc.ApplyPrepare(context.Background(), in)
	assert.True(t, errors.Is(err, ErrIntentNotFound))
}

func TestApplyPrepareCancelledIntent(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusCancelled, AmountTiyin: 1_000_000,
	})

	_, err := svc.ApplyPrepare(context.Background(), prepareInput(p, "730007"))
	assert.True(t, errors.Is(err, ErrIntentCancelled))
}

func completeInput(p PaymentIntent, transID string) WebhookInput {
	in := prepareInput(p, transID)
	in.MerchantPrepareID = p.ID
	return in
}

func TestApplyCompleteSettles(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusPending, AmountTiyin: 5_000_000,
	})

	_, err := svc.ApplyPrepare(context.Background(), prepareInput(p, "730010"))
	require.NoError(t, err)

	out, err := svc.ApplyComplete(context.Background(), completeInput(p, "730010"))
	require.NoError(t, err)

	assert.Equal(t, StatusCompleted, out.Intent.Status)
	require.NotNil(t, out.Intent.CompletedAt)

	var completed int
	for _, e := range store.LedgerEntries() {
		if e.Event == LedgerPaymentCompleted && e.RefID == p.ID {
			completed++
			assert.Equal(t, int64(5_000_000), e.AmountTiyin)
		}
	}
	assert.Equal(t, 1, completed)
}

func TestApplyCompleteIdempotent(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusPending, AmountTiyin: 5_000_000,
	})

	_, err := svc.ApplyPrepare(context.Background(), prepareInput(p, "730011"))
	require.NoError(t, err)
	_, err = svc.ApplyComplete(context.Background(), completeInput(p, "730011"))
	require.NoError(t, err)

	out, err := svc.ApplyComplete(context.Background(), completeInput(p, "730011"))
	require.NoError(t, err, "redelivered complete acks success")
	assert.True(t, out.Duplicate)
	assert.Equal(t, StatusCompleted, out.Intent.Status)

	var completedTransitions int
	events, _ := store.ListIntentEvents(context.Background(), p.ID)
	for _, ev := range events {
		if ev.ToStatus == StatusCompleted {
			completedTransitions++
		}
	}
	assert.Equal(t, 1, completedTransitions, "exactly one completed transition after redelivery")

	var ledger int
	for _, e := range store.LedgerEntries() {
		if e.Event == LedgerPaymentCompleted && e.RefID == p.ID {
			ledger++
		}
	}
	assert.Equal(t, 1, ledger)

	var duplicates int
	for _, ev := range store.WebhookEvents() {
		if ev.Outcome == OutcomeDuplicate {
			duplicates++
			assert.Equal(t, EventComplete+"_duplicate", ev.EventType)
		}
	}
	assert.Equal(t, 1, duplicates, "the redelivery itself is recorded")
}

func TestApplyCompleteWithoutPrepare(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusPending, AmountTiyin: 5_000_000,
	})

	_, err := svc.ApplyComplete(context.Background(), completeInput(p, "730012"))
	assert.True(t, errors.Is(err, ErrNotPrepared))
}

func TestApplyCompleteReferenceMismatch(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusProcessing,
		AmountTiyin: 5_000_000, ProviderTransID: strptr("730013"),
	})

	_, err := svc.ApplyComplete(context.Background(), completeInput(p, "999999"))
	assert.True(t, errors.Is(err, ErrRefMismatch))

	stored, _ := store.GetIntent(context.Background(), p.ID)
	assert.Equal(t, StatusProcessing, stored.Status)
}

func TestApplyCompleteWrongPrepareID(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "oson", Method: MethodOson, Status: StatusProcessing,
		AmountTiyin: 5_000_000, ProviderTransID: strptr("os-9"),
	})

	in := prepareInput(p, "os-9")
	in.MerchantPrepareID = "22222222-2222-2222-2222-222222222222"
	_, err := svc.ApplyComplete(context.Background(), in)
	assert.True(t, errors.Is(err, ErrNotPrepared))
}

func TestApplyFailureByMerchantRef(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "oson", Method: MethodOson, Status: StatusProcessing,
		AmountTiyin: 5_000_000, ProviderTransID: strptr("os-10"),
	})

	in := prepareInput(p, "os-10")
	in.Reason = "insufficient funds"
	out, err := svc.ApplyFailure(context.Background(), in)
	require.NoError(t, err)

	assert.Equal(t, StatusFailed, out.Intent.Status)
	require.NotNil(t, out.Intent.ErrorMessage)
	assert.Equal(t, "insufficient funds", *out.Intent.ErrorMessage)
}

func TestApplyFailureByProviderRef(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "cardgate", Method: MethodCard, Status: StatusProcessing,
		AmountTiyin: 5_000_000, ProviderTransID: strptr("ord_42"),
	})

	out, err := svc.ApplyFailure(context.Background(), WebhookInput{
		Provider:        "cardgate",
		ProviderTransID: "ord_42", // no merchant ref on this contract
		AmountTiyin:     5_000_000,
		Reason:          "declined by issuer",
	})
	require.NoError(t, err)
	assert.Equal(t, p.ID, out.Intent.ID)
	assert.Equal(t, StatusFailed, out.Intent.Status)
}

func TestApplyFailureOnCompletedRejected(t *testing.T) {
	store := NewMemoryStore()
	svc := newTestService(store, nil)

	p := seedIntent(t, store, PaymentIntent{
		Provider: "click", Method: MethodClick, Status: StatusCompleted,
		AmountTiyin: 5_000_000, ProviderTransID: strptr("730014"),
	})

	_, err := svc.ApplyFailure(context.Background(), prepareInput(p, "730014"))
	assert.True(t, errors.Is(err, ErrAlreadyPaid))

	stored, _ := store.GetIntent(context.Background(), p.ID)
	assert.Equal(t, StatusCompleted, stored.Status, "settled money is never un-settled by a callback")
}
