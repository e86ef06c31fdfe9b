// Package reconcile compares the local ledger against provider records for
// a time window. It is read-only: discrepancies are reported, never fixed.
package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/modules/intents"
	"tolovpay.uz/app/internal/shared/money"
)

// Discrepancy kinds.
const (
	KindMissingAtProvider = "missing_at_provider"
	KindAmountMismatch    = "amount_mismatch"
	KindMissingLocally    = "missing_locally"
)

type Discrepancy struct {
	Kind          string `json:"kind"`
	IntentID      string `json:"intent_id,omitempty"`
	OrderID       string `json:"order_id,omitempty"`
	Provider      string `json:"provider"`
	ProviderRef   string `json:"provider_ref,omitempty"`
	ExpectedTiyin int64  `json:"expected_tiyin"`
	ActualTiyin   int64  `json:"actual_tiyin"`
	// DiffTiyin is expected minus actual; positive means the provider saw
	// less money than we recorded.
	DiffTiyin int64  `json:"diff_tiyin"`
	Detail    string `json:"detail,omitempty"`
}

type StatusTotal struct {
	Count       int   `json:"count"`
	AmountTiyin int64 `json:"amount_tiyin"`
}

type Report struct {
	From           time.Time              `json:"from"`
	To             time.Time              `json:"to"`
	GeneratedAt    time.Time              `json:"generated_at"`
	IntentsChecked int                    `json:"intents_checked"`
	TotalsByStatus map[string]StatusTotal `json:"totals_by_status"`
	Discrepancies  []Discrepancy          `json:"discrepancies"`
}

func (r Report) Clean() bool { return len(r.Discrepancies) == 0 }

// Lister reads intents for the window; intents.Store satisfies it.
type Lister interface {
	ListIntentsCreatedBetween(ctx context.Context, from, to time.Time) ([]intents.PaymentIntent, error)
}

type Engine struct {
	store    Lister
	adapters map[string]gateway.Adapter // keyed by provider name
	logger   *slog.Logger
	now      func() time.Time
}

func NewEngine(store Lister, adapters map[string]gateway.Adapter, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{store: store, adapters: adapters, logger: logger, now: time.Now}
}

// Run reconciles the window [from, to). Settled intents are verified against
// the provider one by one; providers that can list their side of the window
// are additionally checked for transactions we never recorded.
func (e *Engine) Run(ctx context.Context, from, to time.Time) (Report, error) {
	if !to.After(from) {
		return Report{}, fmt.Errorf("reconcile: empty window [%s, %s)", from, to)
	}

	local, err := e.store.ListIntentsCreatedBetween(ctx, from, to)
	if err != nil {
		return Report{}, fmt.Errorf("reconcile: list intents: %w", err)
	}

	report := Report{
		From:           from,
		To:             to,
		GeneratedAt:    e.now(),
		IntentsChecked: len(local),
		TotalsByStatus: map[string]StatusTotal{},
	}

	seenRefs := map[string]map[string]bool{} // provider -> ref -> true
	for _, p := range local {
		t := report.TotalsByStatus[p.Status]
		t.Count++
		t.AmountTiyin += p.AmountTiyin
		report.TotalsByStatus[p.Status] = t

		if p.ProviderTransID != nil {
			if seenRefs[p.Provider] == nil {
				seenRefs[p.Provider] = map[string]bool{}
			}
			seenRefs[p.Provider][*p.ProviderTransID] = true
		}

		if !settled(p.Status) {
			continue
		}
		// Offline and never-referenced intents have nothing to verify
		// against; the provider does not know them.
		if p.ProviderTransID == nil {
			continue
		}
		adapter, ok := e.adapters[p.Provider]
		if !ok {
			continue
		}

		if d, ok := e.checkIntent(ctx, adapter, p); ok {
			report.Discrepancies = append(report.Discrepancies, d)
		}
	}

	for name, adapter := range e.adapters {
		lister, ok := adapter.(gateway.Lister)
		if !ok {
			continue
		}
		records, err := lister.ListBetween(ctx, from, to)
		if err != nil {
			e.logger.WarnContext(ctx, "reconcile: provider statement unavailable",
				"provider", name, "err", err)
			continue
		}
		for _, rec := range records {
			if seenRefs[name][rec.ProviderRef] {
				continue
			}
			report.Discrepancies = append(report.Discrepancies, Discrepancy{
				Kind:        KindMissingLocally,
				Provider:    name,
				ProviderRef: rec.ProviderRef,
				ActualTiyin: rec.AmountTiyin,
				DiffTiyin:   -rec.AmountTiyin,
				Detail:      "provider transaction with no local intent",
			})
		}
	}

	e.logger.InfoContext(ctx, "reconciliation finished",
		"from", from, "to", to,
		"intents", report.IntentsChecked, "discrepancies", len(report.Discrepancies))
	return report, nil
}

func (e *Engine) checkIntent(ctx context.Context, adapter gateway.Adapter, p intents.PaymentIntent) (Discrepancy, bool) {
	rec, err := adapter.Lookup(ctx, *p.ProviderTransID)
	if errors.Is(err, gateway.ErrNotFound) {
		return Discrepancy{
			Kind:          KindMissingAtProvider,
			IntentID:      p.ID,
			OrderID:       p.OrderID,
			Provider:      p.Provider,
			ProviderRef:   *p.ProviderTransID,
			ExpectedTiyin: p.AmountTiyin,
			DiffTiyin:     p.AmountTiyin,
			Detail:        "settled locally, unknown to provider",
		}, true
	}
	if err != nil {
		e.logger.WarnContext(ctx, "reconcile: provider lookup failed",
			"provider", p.Provider, "provider_ref", *p.ProviderTransID, "err", err)
		return Discrepancy{}, false
	}

	if rec.AmountTiyin != p.AmountTiyin {
		return Discrepancy{
			Kind:          KindAmountMismatch,
			IntentID:      p.ID,
			OrderID:       p.OrderID,
			Provider:      p.Provider,
			ProviderRef:   *p.ProviderTransID,
			ExpectedTiyin: p.AmountTiyin,
			ActualTiyin:   rec.AmountTiyin,
			DiffTiyin:     p.AmountTiyin - rec.AmountTiyin,
			Detail: fmt.Sprintf("expected %s, provider has %s",
				money.FormatTiyin(p.AmountTiyin), money.FormatTiyin(rec.AmountTiyin)),
		}, true
	}
	return Discrepancy{}, false
}

func settled(status string) bool {
	switch status {
	case intents.StatusCompleted, intents.StatusRefunded, intents.StatusPartiallyRefunded:
		return true
	}
	return false
}
