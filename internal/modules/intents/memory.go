package intents

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

// MemoryStore implements Store without a database; tests and local
// development use it. A single mutex serializes transactions, which gives
// the same per-intent ordering guarantee the MySQL row locks provide.
type MemoryStore struct {
	mu      sync.Mutex
	intents map[string]PaymentIntent
	events  map[string]WebhookEventRecord
	audit   []IntentEvent
	ledger  []LedgerEntry
	frauds  []FraudAudit
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		intents: make(map[string]PaymentIntent),
		events:  make(map[string]WebhookEventRecord),
	}
}

func eventKey(provider, transID, eventType string) string {
	return strings.Join([]string{provider, transID, eventType}, "|")
}

func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memTx{
		intents: make(map[string]PaymentIntent, len(s.intents)),
		events:  make(map[string]WebhookEventRecord, len(s.events)),
		audit:   append([]IntentEvent(nil), s.audit...),
		ledger:  append([]LedgerEntry(nil), s.ledger...),
	}
	for k, v := range s.intents {
		tx.intents[k] = v
	}
	for k, v := range s.events {
		tx.events[k] = v
	}

	if err := fn(tx); err != nil {
		return err // staged copies are discarded
	}

	s.intents = tx.intents
	s.events = tx.events
	s.audit = tx.audit
	s.ledger = tx.ledger
	return nil
}

func (s *MemoryStore) GetIntent(ctx context.Context, id string) (PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.intents[id]
	if !ok {
		return PaymentIntent{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) ListIntentsCreatedBetween(ctx context.Context, from, to time.Time) ([]PaymentIntent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []PaymentIntent
	for _, p := range s.intents {
		if !p.CreatedAt.Before(from) && p.CreatedAt.Before(to) {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) ListIntentEvents(ctx context.Context, intentID string) ([]IntentEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []IntentEvent
	for _, e := range s.audit {
		if e.IntentID == intentID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (s *MemoryStore) CreateFraudAudit(ctx context.Context, a *FraudAudit) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.frauds = append(s.frauds, *a)
	return nil
}

// FraudAudits returns a copy of the recorded hard rejections.
func (s *MemoryStore) FraudAudits() []FraudAudit {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]FraudAudit(nil), s.frauds...)
}

// LedgerEntries returns a copy of the financial journal.
func (s *MemoryStore) LedgerEntries() []LedgerEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]LedgerEntry(nil), s.ledger...)
}

// WebhookEvents returns a copy of the recorded callbacks.
func (s *MemoryStore) WebhookEvents() []WebhookEventRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]WebhookEventRecord, 0, len(s.events))
	for _, e := range s.events {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ReceivedAt.Before(out[j].ReceivedAt) })
	return out
}

// memTx operates on staged copies; MemoryStore.InTx commits them on success.
type memTx struct {
	intents map[string]PaymentIntent
	events  map[string]WebhookEventRecord
	audit   []IntentEvent
	ledger  []LedgerEntry
}

func (t *memTx) GetIntentForUpdate(id string) (PaymentIntent, error) {
	p, ok := t.intents[id]
	if !ok {
		return PaymentIntent{}, ErrNotFound
	}
	return p, nil
}

func (t *memTx) GetIntentByProviderRefForUpdate(provider, providerTransID string) (PaymentIntent, error) {
	for _, p := range t.intents {
		if p.Provider == provider && p.ProviderTransID != nil && *p.ProviderTransID == providerTransID {
			return p, nil
		}
	}
	return PaymentIntent{}, ErrNotFound
}

func (t *memTx) FindIntentByIdempotencyKey(orderID, key string) (PaymentIntent, error) {
	for _, p := range t.intents {
		if p.OrderID == orderID && p.IdempotencyKey == key {
			return p, nil
		}
	}
	return PaymentIntent{}, ErrNotFound
}

func (t *memTx) CreateIntent(p *PaymentIntent) error {
	for _, q := range t.intents {
		if q.OrderID == p.OrderID && q.IdempotencyKey == p.IdempotencyKey {
			return ErrDuplicateIntent
		}
	}
	t.intents[p.ID] = *p
	return nil
}

func (t *memTx) SaveIntent(p PaymentIntent) error {
	t.intents[p.ID] = p
	return nil
}

func (t *memTx) CreateWebhookEvent(ev *WebhookEventRecord) error {
	k := eventKey(ev.Provider, ev.ProviderTransID, ev.EventType)
	if _, exists := t.events[k]; exists {
		return ErrDuplicateEvent
	}
	t.events[k] = *ev
	return nil
}

func (t *memTx) CreateIntentEvent(ev *IntentEvent) error {
	t.audit = append(t.audit, *ev)
	return nil
}

func (t *memTx) CreateLedgerEntry(e *LedgerEntry) error {
	t.ledger = append(t.ledger, *e)
	return nil
}

func (t *memTx) EnsureLedgerEntry(e *LedgerEntry) error {
	for _, le := range t.ledger {
		if le.RefType == e.RefType && le.RefID == e.RefID && le.Event == e.Event {
			return nil
		}
	}
	t.ledger = append(t.ledger, *e)
	return nil
}

var _ Store = (*MemoryStore)(nil)
