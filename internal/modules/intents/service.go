package intents

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"tolovpay.uz/app/internal/modules/fraud"
	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/shared/apperr"
)

const actorSystem = "system"

// Service is the payment orchestrator: the only writer of intent state.
// Webhook handlers and reconciliation route through it (or stay read-only)
// so the state machine and refund invariants hold in one place.
type Service struct {
	store       Store
	adapters    map[string]gateway.Adapter // keyed by payment method
	fraudPolicy fraud.Policy
	retry       gateway.RetryPolicy
	currencies  map[string]struct{}
	logger      *slog.Logger
	now         func() time.Time
}

type Options struct {
	FraudPolicy fraud.Policy
	Retry       gateway.RetryPolicy
	Currencies  []string
	Logger      *slog.Logger
}

func NewService(store Store, adapters map[string]gateway.Adapter, opts Options) *Service {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	currencies := make(map[string]struct{}, len(opts.Currencies))
	for _, c := range opts.Currencies {
		currencies[strings.ToUpper(c)] = struct{}{}
	}
	return &Service{
		store:       store,
		adapters:    adapters,
		fraudPolicy: opts.FraudPolicy,
		retry:       opts.Retry,
		currencies:  currencies,
		logger:      logger,
		now:         time.Now,
	}
}

type CreateIntentInput struct {
	OrderID        string
	AmountTiyin    int64
	Currency       string
	Method         string
	CustomerID     *string
	NewCustomer    bool
	IdempotencyKey string
	ReturnURL      string
	CancelURL      string
}

type CreateIntentResult struct {
	Intent      PaymentIntent
	RedirectURL string
	ClientToken string
	Idempotent  bool
}

// CreateIntent validates input, applies the fraud gate, persists a PENDING
// intent and contacts the provider. The provider call runs outside any
// store transaction; the retry policy covers transient failures only.
func (s *Service) CreateIntent(ctx context.Context, in CreateIntentInput) (CreateIntentResult, error) {
	if fields := s.validateCreate(in); len(fields) > 0 {
		return CreateIntentResult{}, apperr.InvalidErr("invalid payment request", fields)
	}
	adapter, ok := s.adapters[in.Method]
	if !ok {
		return CreateIntentResult{}, apperr.InvalidErr("invalid payment request", map[string]string{"method": "payment method not enabled"})
	}

	// Fraud gate runs before anything is persisted or any provider is
	// contacted. Hard rejections leave only an audit record.
	score := fraud.Score(s.fraudPolicy, fraud.Input{
		AmountTiyin: in.AmountTiyin,
		Method:      in.Method,
		NewCustomer: in.NewCustomer,
		At:          s.now(),
	})
	if s.fraudPolicy.Rejected(score.Score) {
		audit := &FraudAudit{
			ID:          uuid.NewString(),
			OrderID:     in.OrderID,
			Method:      in.Method,
			AmountTiyin: in.AmountTiyin,
			Currency:    in.Currency,
			Score:       score.Score,
			Reasons:     strings.Join(score.Reasons, ","),
			CreatedAt:   s.now(),
		}
		if err := s.store.CreateFraudAudit(ctx, audit); err != nil {
			return CreateIntentResult{}, apperr.Wrap(err)
		}
		s.logger.WarnContext(ctx, "payment rejected by fraud gate",
			"order_id", in.OrderID, "method", in.Method, "score", score.Score, "reasons", audit.Reasons)
		return CreateIntentResult{}, apperr.FraudRejectedErr("payment rejected")
	}

	// Phase-1: idempotency check + PENDING row.
	var intent PaymentIntent
	var idempotent bool
	err := s.store.InTx(ctx, func(tx Tx) error {
		existing, err := tx.FindIntentByIdempotencyKey(in.OrderID, in.IdempotencyKey)
		if err == nil {
			intent = existing
			idempotent = true
			return nil
		}
		if !errors.Is(err, ErrNotFound) {
			return err
		}

		now := s.now()
		sc := score.Score
		intent = PaymentIntent{
			ID:             uuid.NewString(),
			OrderID:        in.OrderID,
			Provider:       adapter.Name(),
			Method:         in.Method,
			Status:         StatusPending,
			AmountTiyin:    in.AmountTiyin,
			Currency:       strings.ToUpper(in.Currency),
			FraudScore:     &sc,
			RiskLevel:      score.Level,
			CustomerID:     in.CustomerID,
			IdempotencyKey: in.IdempotencyKey,
			CreatedAt:      now,
			UpdatedAt:      now,
		}
		err = tx.CreateIntent(&intent)
		if errors.Is(err, ErrDuplicateIntent) {
			// Lost the insert race: a concurrent request with the same key
			// committed between our check and our insert. Replay its row.
			winner, ferr := tx.FindIntentByIdempotencyKey(in.OrderID, in.IdempotencyKey)
			if ferr != nil {
				return ferr
			}
			intent = winner
			idempotent = true
			return nil
		}
		return err
	})
	if err != nil {
		return CreateIntentResult{}, apperr.Wrap(err)
	}
	if idempotent {
		res := CreateIntentResult{Intent: intent, Idempotent: true}
		if intent.RedirectURL != nil {
			res.RedirectURL = *intent.RedirectURL
		}
		return res, nil
	}

	// Phase-2: provider call, never under a row lock.
	var resp gateway.CreateResponse
	callErr := gateway.Do(ctx, s.retry, s.logger, "create_payment", func() error {
		var cerr error
		resp, cerr = adapter.CreatePayment(ctx, gateway.CreateRequest{
			IntentID:    intent.ID,
			OrderID:     in.OrderID,
			AmountTiyin: in.AmountTiyin,
			Currency:    intent.Currency,
			ReturnURL:   in.ReturnURL,
			CancelURL:   in.CancelURL,
		})
		return cerr
	})

	// Phase-3: finalize against whatever state the intent is in now. A
	// webhook may already have advanced it while the call was in flight.
	err = s.store.InTx(ctx, func(tx Tx) error {
		cur, err := tx.GetIntentForUpdate(intent.ID)
		if err != nil {
			return err
		}
		now := s.now()

		if callErr != nil {
			if cur.Status != StatusPending {
				intent = cur // provider truth already arrived; keep it
				return nil
			}
			msg := truncate(callErr.Error(), 250)
			cur.ErrorMessage = &msg
			if err := s.transition(tx, &cur, StatusFailed, actorSystem, &msg, now); err != nil {
				return err
			}
			return s.save(tx, &cur, &intent, now)
		}

		if cur.Status == StatusPending {
			if err := s.transition(tx, &cur, StatusProcessing, actorSystem, nil, now); err != nil {
				return err
			}
		}
		if resp.ProviderRef != "" && cur.ProviderTransID == nil {
			ref := resp.ProviderRef
			cur.ProviderTransID = &ref
		}
		if resp.RedirectURL != "" {
			u := resp.RedirectURL
			cur.RedirectURL = &u
		}
		return s.save(tx, &cur, &intent, now)
	})
	if err != nil {
		return CreateIntentResult{}, apperr.Wrap(err)
	}

	if callErr != nil {
		s.logger.ErrorContext(ctx, "gateway create failed",
			"intent_id", intent.ID, "provider", adapter.Name(), "err", callErr)
		if gateway.IsTransient(callErr) {
			return CreateIntentResult{Intent: intent}, apperr.GatewayTransientErr(callErr)
		}
		return CreateIntentResult{Intent: intent}, apperr.GatewayPermanentErr("payment was declined", callErr)
	}

	s.logger.InfoContext(ctx, "payment intent created",
		"intent_id", intent.ID, "order_id", in.OrderID, "provider", adapter.Name(),
		"amount_tiyin", in.AmountTiyin, "risk_level", intent.RiskLevel)

	return CreateIntentResult{Intent: intent, RedirectURL: resp.RedirectURL, ClientToken: resp.ClientToken}, nil
}

type RefundInput struct {
	IntentID    string
	AmountTiyin int64 // 0 means the full remaining balance
	Reason      string
	ActorID     string
}

type RefundResult struct {
	Intent        PaymentIntent
	RefundedTiyin int64 // amount refunded by this call
}

// Refund reverses money. The amount is reserved on the intent before the
// provider call and rolled back if the provider refuses; a provider failure
// is surfaced, never retried automatically (double-refund risk).
func (s *Service) Refund(ctx context.Context, in RefundInput) (RefundResult, error) {
	if in.IntentID == "" || in.ActorID == "" {
		return RefundResult{}, apperr.InvalidErr("invalid refund request", nil)
	}
	if in.AmountTiyin < 0 {
		return RefundResult{}, apperr.InvalidErr("invalid refund request", map[string]string{"amount": "must not be negative"})
	}

	// Phase-1: validate under lock and reserve the amount.
	var cur PaymentIntent
	var amount int64
	err := s.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetIntentForUpdate(in.IntentID)
		if errors.Is(err, ErrNotFound) {
			return ErrIntentNotFound
		}
		if err != nil {
			return err
		}
		if p.Status != StatusCompleted && p.Status != StatusPartiallyRefunded {
			return apperr.InvalidStateErr("payment is not refundable")
		}
		if _, ok := s.adapters[p.Method]; !ok {
			return apperr.InvalidErr("payment method not enabled", nil)
		}

		remaining := p.RemainingTiyin()
		amount = in.AmountTiyin
		if amount == 0 {
			amount = remaining
		}
		if amount > remaining {
			return apperr.InvalidErr("refund exceeds remaining balance", nil)
		}

		p.RefundedTiyin += amount
		p.UpdatedAt = s.now()
		if err := tx.SaveIntent(p); err != nil {
			return err
		}
		cur = p
		return nil
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return RefundResult{}, err
		}
		return RefundResult{}, apperr.Wrap(err)
	}

	// Phase-2: provider refund, single attempt.
	adapter := s.adapters[cur.Method]
	ref := ""
	if cur.ProviderTransID != nil {
		ref = *cur.ProviderTransID
	}
	_, callErr := adapter.Refund(ctx, gateway.RefundRequest{
		IntentID:    cur.ID,
		ProviderRef: ref,
		AmountTiyin: amount,
		Reason:      in.Reason,
	})

	// Phase-3: finalize or roll the reservation back.
	var result RefundResult
	err = s.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetIntentForUpdate(cur.ID)
		if err != nil {
			return err
		}
		now := s.now()

		if callErr != nil {
			p.RefundedTiyin -= amount
			p.UpdatedAt = now
			if err := tx.SaveIntent(p); err != nil {
				return err
			}
			note := truncate("refund failed: "+callErr.Error(), 250)
			if err := tx.CreateIntentEvent(&IntentEvent{
				ID: uuid.NewString(), IntentID: p.ID, Actor: in.ActorID,
				FromStatus: p.Status, ToStatus: p.Status, Note: &note, CreatedAt: now,
			}); err != nil {
				return err
			}
			return tx.CreateLedgerEntry(&LedgerEntry{
				ID: uuid.NewString(), OrderID: p.OrderID, Event: LedgerRefundFailed,
				AmountTiyin: 0, Currency: p.Currency, RefType: "intent", RefID: p.ID, CreatedAt: now,
			})
		}

		target := StatusPartiallyRefunded
		if p.RefundedTiyin >= p.AmountTiyin {
			target = StatusRefunded
		}
		if p.Status != target {
			note := "refund by " + in.ActorID
			if err := s.transition(tx, &p, target, in.ActorID, &note, now); err != nil {
				return err
			}
		}
		p.UpdatedAt = now
		if err := tx.SaveIntent(p); err != nil {
			return err
		}
		if err := tx.CreateLedgerEntry(&LedgerEntry{
			ID: uuid.NewString(), OrderID: p.OrderID, Event: LedgerRefundCompleted,
			AmountTiyin: -amount, Currency: p.Currency, RefType: "intent", RefID: p.ID, CreatedAt: now,
		}); err != nil {
			return err
		}
		result = RefundResult{Intent: p, RefundedTiyin: amount}
		return nil
	})
	if err != nil {
		return RefundResult{}, apperr.Wrap(err)
	}

	if callErr != nil {
		s.logger.ErrorContext(ctx, "gateway refund failed",
			"intent_id", cur.ID, "provider", cur.Provider, "amount_tiyin", amount, "err", callErr)
		if gateway.IsTransient(callErr) {
			return RefundResult{}, apperr.GatewayTransientErr(callErr)
		}
		return RefundResult{}, apperr.GatewayPermanentErr("refund was declined", callErr)
	}

	s.logger.InfoContext(ctx, "refund applied",
		"intent_id", cur.ID, "amount_tiyin", amount, "status", result.Intent.Status, "actor", in.ActorID)
	return result, nil
}

// Cancel aborts an intent that has not completed. Cancelling an already
// cancelled intent is a no-op, not an error.
func (s *Service) Cancel(ctx context.Context, intentID, reason, actorID string) (PaymentIntent, error) {
	if intentID == "" {
		return PaymentIntent{}, apperr.InvalidErr("invalid cancel request", nil)
	}
	if actorID == "" {
		actorID = actorSystem
	}

	var out PaymentIntent
	err := s.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetIntentForUpdate(intentID)
		if errors.Is(err, ErrNotFound) {
			return ErrIntentNotFound
		}
		if err != nil {
			return err
		}
		if p.Status == StatusCancelled {
			out = p
			return nil
		}
		if p.Status != StatusPending && p.Status != StatusProcessing {
			return apperr.InvalidStateErr("payment can no longer be cancelled")
		}

		now := s.now()
		var note *string
		if reason != "" {
			r := truncate(reason, 250)
			note = &r
		}
		if err := s.transition(tx, &p, StatusCancelled, actorID, note, now); err != nil {
			return err
		}
		return s.save(tx, &p, &out, now)
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return PaymentIntent{}, err
		}
		return PaymentIntent{}, apperr.Wrap(err)
	}

	s.logger.InfoContext(ctx, "payment intent cancelled", "intent_id", intentID, "actor", actorID)
	return out, nil
}

// ConfirmOffline finalizes a cash-on-delivery or bank-transfer intent once
// an operator has seen the money.
func (s *Service) ConfirmOffline(ctx context.Context, intentID, actorID string) (PaymentIntent, error) {
	if intentID == "" || actorID == "" {
		return PaymentIntent{}, apperr.InvalidErr("invalid confirm request", nil)
	}

	var out PaymentIntent
	err := s.store.InTx(ctx, func(tx Tx) error {
		p, err := tx.GetIntentForUpdate(intentID)
		if errors.Is(err, ErrNotFound) {
			return ErrIntentNotFound
		}
		if err != nil {
			return err
		}
		if !OfflineMethod(p.Method) {
			return apperr.InvalidErr("not an offline payment", nil)
		}
		if p.Status == StatusCompleted {
			out = p
			return nil
		}
		if p.Status != StatusProcessing {
			return apperr.InvalidStateErr("payment cannot be confirmed")
		}

		now := s.now()
		if err := s.transition(tx, &p, StatusCompleted, actorID, nil, now); err != nil {
			return err
		}
		t := now
		p.CompletedAt = &t
		if err := s.save(tx, &p, &out, now); err != nil {
			return err
		}
		return tx.EnsureLedgerEntry(&LedgerEntry{
			ID: uuid.NewString(), OrderID: p.OrderID, Event: LedgerPaymentCompleted,
			AmountTiyin: p.AmountTiyin, Currency: p.Currency, RefType: "intent", RefID: p.ID, CreatedAt: now,
		})
	})
	if err != nil {
		if _, ok := apperr.As(err); ok {
			return PaymentIntent{}, err
		}
		return PaymentIntent{}, apperr.Wrap(err)
	}

	s.logger.InfoContext(ctx, "offline payment confirmed", "intent_id", intentID, "actor", actorID)
	return out, nil
}

func (s *Service) GetIntent(ctx context.Context, id string) (PaymentIntent, error) {
	p, err := s.store.GetIntent(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return PaymentIntent{}, ErrIntentNotFound
	}
	if err != nil {
		return PaymentIntent{}, apperr.Wrap(err)
	}
	return p, nil
}

func (s *Service) validateCreate(in CreateIntentInput) map[string]string {
	fields := map[string]string{}
	if in.OrderID == "" {
		fields["order_id"] = "required"
	}
	if in.IdempotencyKey == "" {
		fields["idempotency_key"] = "required"
	}
	if in.AmountTiyin <= 0 {
		fields["amount_tiyin"] = "must be positive"
	}
	if _, ok := s.currencies[strings.ToUpper(in.Currency)]; !ok {
		fields["currency"] = "currency not allowed"
	}
	if !ValidMethod(in.Method) {
		fields["method"] = "unknown payment method"
	}
	return fields
}

// transition enforces the state machine and writes the audit row. The
// caller mutates nothing before this succeeds.
func (s *Service) transition(tx Tx, p *PaymentIntent, to, actor string, note *string, now time.Time) error {
	if !CanTransition(p.Status, to) {
		return apperr.InvalidStateErr("illegal status transition")
	}
	ev := &IntentEvent{
		ID:         uuid.NewString(),
		IntentID:   p.ID,
		Actor:      actor,
		FromStatus: p.Status,
		ToStatus:   to,
		Note:       note,
		CreatedAt:  now,
	}
	if err := tx.CreateIntentEvent(ev); err != nil {
		return err
	}
	p.Status = to
	return nil
}

func (s *Service) save(tx Tx, p *PaymentIntent, out *PaymentIntent, now time.Time) error {
	p.UpdatedAt = now
	if err := tx.SaveIntent(*p); err != nil {
		return err
	}
	*out = *p
	return nil
}

func truncate(s string, n int) string {
	if n <= 0 || len(s) <= n {
		return s
	}
	return s[:n]
}
