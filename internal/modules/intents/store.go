package intents

import (
	"context"
	"errors"
	"time"
)

var (
	ErrNotFound = errors.New("intents: record not found")
	// ErrDuplicateEvent: the (provider, provider_trans_id, event_type) key
	// was already recorded — the callback was processed before.
	ErrDuplicateEvent = errors.New("intents: webhook event already recorded")
	// ErrDuplicateIntent: the (order_id, idempotency_key) row exists; a
	// concurrent create won the insert and callers replay its intent.
	ErrDuplicateIntent = errors.New("intents: idempotency key already used")
)

// Store is the transactional boundary of the ledger. The production
// implementation is MySQL via gorm; MemoryStore backs tests and local runs.
//
// Transition safety contract: GetIntentForUpdate inside InTx serializes all
// state changes for one intent — two concurrent transactions resolve
// deterministically, the second observing the first's committed state.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	GetIntent(ctx context.Context, id string) (PaymentIntent, error)
	ListIntentsCreatedBetween(ctx context.Context, from, to time.Time) ([]PaymentIntent, error)
	ListIntentEvents(ctx context.Context, intentID string) ([]IntentEvent, error)
	CreateFraudAudit(ctx context.Context, a *FraudAudit) error
}

type Tx interface {
	GetIntentForUpdate(id string) (PaymentIntent, error)
	GetIntentByProviderRefForUpdate(provider, providerTransID string) (PaymentIntent, error)
	FindIntentByIdempotencyKey(orderID, key string) (PaymentIntent, error)
	// CreateIntent returns ErrDuplicateIntent when the (order_id,
	// idempotency_key) pair is already taken.
	CreateIntent(p *PaymentIntent) error
	// SaveIntent persists the full row; callers hold the row lock from
	// GetIntentForUpdate.
	SaveIntent(p PaymentIntent) error
	// CreateWebhookEvent returns ErrDuplicateEvent when the idempotency key
	// already exists.
	CreateWebhookEvent(ev *WebhookEventRecord) error
	CreateIntentEvent(ev *IntentEvent) error
	CreateLedgerEntry(e *LedgerEntry) error
	// EnsureLedgerEntry creates the entry unless one with the same
	// (ref_type, ref_id, event) already exists.
	EnsureLedgerEntry(e *LedgerEntry) error
}
