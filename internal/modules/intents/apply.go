package intents

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"tolovpay.uz/app/internal/shared/apperr"
)

// Webhook event types. Together with (provider, provider_trans_id) they form
// the idempotency key of webhook_events.
const (
	EventPrepare  = "prepare"
	EventComplete = "complete"
	EventFailure  = "failure"
)

// WebhookInput is a provider callback after signature verification. The
// handler translates provider field names; MerchantTransID is our intent id
// echoed back by the provider.
type WebhookInput struct {
	Provider          string
	MerchantTransID   string
	MerchantPrepareID string // complete only; must echo the prepare response
	ProviderTransID   string
	AmountTiyin       int64
	Reason            string // failure only
	Payload           []byte // raw verified body, stored for audit
}

// WebhookResult reports what applying a callback did.
type WebhookResult struct {
	Intent    PaymentIntent
	PrepareID string // our handle for the two-phase protocol: the intent id
	Duplicate bool   // the event had already been applied; this was a no-op
}

// ApplyPrepare handles phase one of the two-phase protocol: the provider
// announces a transaction and we either claim it or refuse. On success the
// provider transaction id is bound to the intent and the intent moves to
// processing. Redelivery of the same prepare acks success without effect.
func (s *Service) ApplyPrepare(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	var res WebhookResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetIntentForUpdate(in.MerchantTransID)
		if errors.Is(err, ErrNotFound) {
			return ErrIntentNotFound
		}
		if err != nil {
			return err
		}
		if p.Provider != in.Provider {
			return ErrIntentNotFound
		}
		if p.AmountTiyin != in.AmountTiyin {
			return ErrAmountMismatch
		}
		switch p.Status {
		case StatusCompleted, StatusRefunded, StatusPartiallyRefunded:
			return ErrAlreadyPaid
		case StatusCancelled, StatusFailed:
			return ErrIntentCancelled
		}
		if p.ProviderTransID != nil && *p.ProviderTransID != in.ProviderTransID {
			return ErrRefMismatch
		}

		now := s.now()
		if err := tx.CreateWebhookEvent(s.eventRecord(in, EventPrepare, &p.ID, OutcomeAccepted, now)); err != nil {
			if errors.Is(err, ErrDuplicateEvent) {
				if derr := s.recordDuplicate(tx, in, EventPrepare, &p.ID, now); derr != nil {
					return derr
				}
				res = WebhookResult{Intent: p, PrepareID: p.ID, Duplicate: true}
				return nil
			}
			return err
		}

		if p.ProviderTransID == nil {
			ref := in.ProviderTransID
			p.ProviderTransID = &ref
		}
		if p.Status == StatusPending {
			if err := s.transition(tx, &p, StatusProcessing, in.Provider, nil, now); err != nil {
				return err
			}
		}
		if err := s.save(tx, &p, &res.Intent, now); err != nil {
			return err
		}
		res.PrepareID = p.ID
		return nil
	})
	if err != nil {
		s.recordRejected(ctx, in, EventPrepare, err)
		return WebhookResult{}, err
	}

	s.logger.InfoContext(ctx, "webhook prepare applied",
		"provider", in.Provider, "intent_id", res.PrepareID,
		"provider_trans_id", in.ProviderTransID, "duplicate", res.Duplicate)
	return res, nil
}

// ApplyComplete handles phase two: money moved, the intent becomes completed
// and the ledger gets its payment_completed entry. Redelivery — including a
// complete for an intent that is already completed with the same provider
// reference — acks success without touching anything.
func (s *Service) ApplyComplete(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	var res WebhookResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetIntentForUpdate(in.MerchantTransID)
		if errors.Is(err, ErrNotFound) {
			return ErrIntentNotFound
		}
		if err != nil {
			return err
		}
		if p.Provider != in.Provider {
			return ErrIntentNotFound
		}
		if in.MerchantPrepareID != "" && in.MerchantPrepareID != p.ID {
			return ErrNotPrepared
		}
		if p.ProviderTransID == nil {
			return ErrNotPrepared
		}
		if *p.ProviderTransID != in.ProviderTransID {
			return ErrRefMismatch
		}
		if p.AmountTiyin != in.AmountTiyin {
			return ErrAmountMismatch
		}

		switch p.Status {
		case StatusCompleted, StatusRefunded, StatusPartiallyRefunded:
			// Same transaction, already settled: redelivery.
			if derr := s.recordDuplicate(tx, in, EventComplete, &p.ID, s.now()); derr != nil {
				return derr
			}
			res = WebhookResult{Intent: p, PrepareID: p.ID, Duplicate: true}
			return nil
		case StatusCancelled, StatusFailed:
			return ErrIntentCancelled
		case StatusPending:
			return ErrNotPrepared
		}

		now := s.now()
		if err := tx.CreateWebhookEvent(s.eventRecord(in, EventComplete, &p.ID, OutcomeAccepted, now)); err != nil {
			if errors.Is(err, ErrDuplicateEvent) {
				if derr := s.recordDuplicate(tx, in, EventComplete, &p.ID, now); derr != nil {
					return derr
				}
				res = WebhookResult{Intent: p, PrepareID: p.ID, Duplicate: true}
				return nil
			}
			return err
		}

		if err := s.transition(tx, &p, StatusCompleted, in.Provider, nil, now); err != nil {
			return err
		}
		t := now
		p.CompletedAt = &t
		if err := s.save(tx, &p, &res.Intent, now); err != nil {
			return err
		}
		res.PrepareID = p.ID
		return tx.EnsureLedgerEntry(&LedgerEntry{
			ID: uuid.NewString(), OrderID: p.OrderID, Event: LedgerPaymentCompleted,
			AmountTiyin: p.AmountTiyin, Currency: p.Currency, RefType: "intent", RefID: p.ID, CreatedAt: now,
		})
	})
	if err != nil {
		s.recordRejected(ctx, in, EventComplete, err)
		return WebhookResult{}, err
	}

	s.logger.InfoContext(ctx, "webhook complete applied",
		"provider", in.Provider, "intent_id", res.PrepareID,
		"provider_trans_id", in.ProviderTransID, "duplicate", res.Duplicate)
	return res, nil
}

// ApplyFailure marks an intent failed on a provider error callback. The
// intent is resolved by our id when the provider echoes it, otherwise by the
// provider transaction reference. Terminal intents are left untouched.
func (s *Service) ApplyFailure(ctx context.Context, in WebhookInput) (WebhookResult, error) {
	var res WebhookResult
	err := s.store.InTx(ctx, func(tx Tx) error {
		var p PaymentIntent
		var err error
		if in.MerchantTransID != "" {
			p, err = tx.GetIntentForUpdate(in.MerchantTransID)
		} else {
			p, err = tx.GetIntentByProviderRefForUpdate(in.Provider, in.ProviderTransID)
		}
		if errors.Is(err, ErrNotFound) {
			return ErrIntentNotFound
		}
		if err != nil {
			return err
		}
		if p.Provider != in.Provider {
			return ErrIntentNotFound
		}

		if p.Status == StatusFailed || p.Status == StatusCancelled {
			if derr := s.recordDuplicate(tx, in, EventFailure, &p.ID, s.now()); derr != nil {
				return derr
			}
			res = WebhookResult{Intent: p, PrepareID: p.ID, Duplicate: true}
			return nil
		}
		if p.Status != StatusPending && p.Status != StatusProcessing {
			return ErrAlreadyPaid
		}

		now := s.now()
		if err := tx.CreateWebhookEvent(s.eventRecord(in, EventFailure, &p.ID, OutcomeAccepted, now)); err != nil {
			if errors.Is(err, ErrDuplicateEvent) {
				if derr := s.recordDuplicate(tx, in, EventFailure, &p.ID, now); derr != nil {
					return derr
				}
				res = WebhookResult{Intent: p, PrepareID: p.ID, Duplicate: true}
				return nil
			}
			return err
		}

		var note *string
		if in.Reason != "" {
			r := truncate(in.Reason, 250)
			note = &r
			p.ErrorMessage = &r
		}
		if err := s.transition(tx, &p, StatusFailed, in.Provider, note, now); err != nil {
			return err
		}
		if err := s.save(tx, &p, &res.Intent, now); err != nil {
			return err
		}
		res.PrepareID = p.ID
		return nil
	})
	if err != nil {
		s.recordRejected(ctx, in, EventFailure, err)
		return WebhookResult{}, err
	}

	s.logger.InfoContext(ctx, "webhook failure applied",
		"provider", in.Provider, "intent_id", res.PrepareID, "duplicate", res.Duplicate)
	return res, nil
}

func (s *Service) eventRecord(in WebhookInput, eventType string, intentID *string, outcome string, now time.Time) *WebhookEventRecord {
	var payload datatypes.JSON
	if len(in.Payload) > 0 {
		payload = datatypes.JSON(in.Payload)
	}
	return &WebhookEventRecord{
		ID:              uuid.NewString(),
		Provider:        in.Provider,
		ProviderTransID: in.ProviderTransID,
		EventType:       eventType,
		IntentID:        intentID,
		PayloadJSON:     payload,
		Outcome:         outcome,
		ReceivedAt:      now,
	}
}

// recordDuplicate keeps an audit trace of redeliveries: the no-op is still
// recorded. The suffixed event type keeps the row off the acceptance
// idempotency key, so repeated redeliveries of the same event leave one row.
func (s *Service) recordDuplicate(tx Tx, in WebhookInput, eventType string, intentID *string, now time.Time) error {
	err := tx.CreateWebhookEvent(s.eventRecord(in, eventType+"_duplicate", intentID, OutcomeDuplicate, now))
	if errors.Is(err, ErrDuplicateEvent) {
		return nil
	}
	return err
}

// recordRejected keeps an audit trace of refused callbacks, best-effort and
// in its own transaction so it survives the rejection. The suffixed event
// type keeps the row off the acceptance idempotency key; a repeat rejection
// for the same reference is simply not recorded twice.
func (s *Service) recordRejected(ctx context.Context, in WebhookInput, eventType string, cause error) {
	rec := s.eventRecord(in, eventType+"_rejected", nil, OutcomeRejected, s.now())
	err := s.store.InTx(ctx, func(tx Tx) error {
		return tx.CreateWebhookEvent(rec)
	})
	if err != nil && !errors.Is(err, ErrDuplicateEvent) {
		s.logger.ErrorContext(ctx, "failed to record rejected webhook",
			"provider", in.Provider, "provider_trans_id", in.ProviderTransID, "err", err)
	}
	s.logger.WarnContext(ctx, "webhook rejected",
		"provider", in.Provider, "event", eventType,
		"provider_trans_id", in.ProviderTransID, "reason", apperr.PublicCode(cause))
}
