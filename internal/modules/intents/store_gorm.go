package intents

import (
	"context"
	"errors"
	"time"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type GormStore struct {
	db *gorm.DB
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db}
}

func (s *GormStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormTx{ctx: ctx, tx: tx})
	})
}

func (s *GormStore) GetIntent(ctx context.Context, id string) (PaymentIntent, error) {
	var p PaymentIntent
	err := s.db.WithContext(ctx).First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentIntent{}, ErrNotFound
	}
	return p, err
}

func (s *GormStore) ListIntentsCreatedBetween(ctx context.Context, from, to time.Time) ([]PaymentIntent, error) {
	var out []PaymentIntent
	err := s.db.WithContext(ctx).
		Where("created_at >= ? AND created_at < ?", from, to).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) ListIntentEvents(ctx context.Context, intentID string) ([]IntentEvent, error) {
	var out []IntentEvent
	err := s.db.WithContext(ctx).
		Where("intent_id = ?", intentID).
		Order("created_at ASC").
		Find(&out).Error
	return out, err
}

func (s *GormStore) CreateFraudAudit(ctx context.Context, a *FraudAudit) error {
	return s.db.WithContext(ctx).Create(a).Error
}

type gormTx struct {
	ctx context.Context
	tx  *gorm.DB
}

func (t *gormTx) GetIntentForUpdate(id string) (PaymentIntent, error) {
	var p PaymentIntent
	err := t.tx.WithContext(t.ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentIntent{}, ErrNotFound
	}
	return p, err
}

func (t *gormTx) GetIntentByProviderRefForUpdate(provider, providerTransID string) (PaymentIntent, error) {
	var p PaymentIntent
	err := t.tx.WithContext(t.ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "provider = ? AND provider_trans_id = ?", provider, providerTransID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentIntent{}, ErrNotFound
	}
	return p, err
}

func (t *gormTx) FindIntentByIdempotencyKey(orderID, key string) (PaymentIntent, error) {
	var p PaymentIntent
	err := t.tx.WithContext(t.ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&p, "order_id = ? AND idempotency_key = ?", orderID, key).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return PaymentIntent{}, ErrNotFound
	}
	return p, err
}

func (t *gormTx) CreateIntent(p *PaymentIntent) error {
	if err := t.tx.WithContext(t.ctx).Create(p).Error; err != nil {
		if isDup(err) {
			return ErrDuplicateIntent
		}
		return err
	}
	return nil
}

func (t *gormTx) SaveIntent(p PaymentIntent) error {
	return t.tx.WithContext(t.ctx).Save(&p).Error
}

func (t *gormTx) CreateWebhookEvent(ev *WebhookEventRecord) error {
	if err := t.tx.WithContext(t.ctx).Create(ev).Error; err != nil {
		if isDup(err) {
			return ErrDuplicateEvent
		}
		return err
	}
	return nil
}

func (t *gormTx) CreateIntentEvent(ev *IntentEvent) error {
	return t.tx.WithContext(t.ctx).Create(ev).Error
}

func (t *gormTx) CreateLedgerEntry(e *LedgerEntry) error {
	return t.tx.WithContext(t.ctx).Create(e).Error
}

func (t *gormTx) EnsureLedgerEntry(e *LedgerEntry) error {
	var cnt int64
	if err := t.tx.WithContext(t.ctx).
		Model(&LedgerEntry{}).
		Where("ref_type = ? AND ref_id = ? AND event = ?", e.RefType, e.RefID, e.Event).
		Count(&cnt).Error; err != nil {
		return err
	}
	if cnt > 0 {
		return nil
	}
	return t.tx.WithContext(t.ctx).Create(e).Error
}

func isDup(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && me.Number == 1062
}

var _ Store = (*GormStore)(nil)
