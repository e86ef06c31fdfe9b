package intents

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusPending           = "pending"
	StatusProcessing        = "processing"
	StatusCompleted         = "completed"
	StatusFailed            = "failed"
	StatusCancelled         = "cancelled"
	StatusRefunded          = "refunded"
	StatusPartiallyRefunded = "partially_refunded"
)

const (
	MethodCard           = "card"
	MethodClick          = "click"
	MethodOson           = "oson"
	MethodCashOnDelivery = "cash_on_delivery"
	MethodBankTransfer   = "bank_transfer"
)

// Webhook event outcomes recorded for audit.
const (
	OutcomeAccepted  = "accepted"
	OutcomeRejected  = "rejected"
	OutcomeDuplicate = "duplicate"
)

// PaymentIntent is one attempt to collect money for one order. Amount and,
// once set, the provider transaction id are immutable; rows are never
// deleted — terminal intents stay for audit and reconciliation.
type PaymentIntent struct {
	ID              string  `gorm:"type:char(36);primaryKey"`
	OrderID         string  `gorm:"type:char(36);not null;index:ix_payment_intents_order_id;uniqueIndex:ux_payment_intents_idem,priority:1"`
	Provider        string  `gorm:"type:varchar(64);not null"`
	ProviderTransID *string `gorm:"type:varchar(128);index:ix_payment_intents_provider_ref"`
	Method          string  `gorm:"type:varchar(32);not null"`
	Status          string  `gorm:"type:varchar(32);not null;index:ix_payment_intents_status"`

	AmountTiyin   int64  `gorm:"not null"`
	RefundedTiyin int64  `gorm:"not null;default:0"`
	Currency      string `gorm:"type:char(3);not null"`

	FraudScore *int    `gorm:"type:int"`
	RiskLevel  string  `gorm:"type:varchar(16)"`
	CustomerID *string `gorm:"type:char(36)"`

	RedirectURL    *string `gorm:"type:varchar(512)"`
	IdempotencyKey string  `gorm:"type:varchar(64);not null;uniqueIndex:ux_payment_intents_idem,priority:2"`
	ErrorMessage   *string `gorm:"type:varchar(255)"`

	CreatedAt   time.Time  `gorm:"type:datetime(3);not null"`
	UpdatedAt   time.Time  `gorm:"type:datetime(3);not null"`
	CompletedAt *time.Time `gorm:"type:datetime(3)"`
}

func (PaymentIntent) TableName() string { return "payment_intents" }

func (p PaymentIntent) RemainingTiyin() int64 { return p.AmountTiyin - p.RefundedTiyin }

// WebhookEventRecord is an inbound provider callback, recorded before its
// effect is applied. The unique (provider, provider_trans_id, event_type)
// index is the idempotency key; a duplicate insert means the event was
// already processed with effect.
type WebhookEventRecord struct {
	ID              string         `gorm:"type:char(36);primaryKey"`
	Provider        string         `gorm:"type:varchar(64);not null;uniqueIndex:ux_webhook_events_key,priority:1"`
	ProviderTransID string         `gorm:"type:varchar(128);not null;uniqueIndex:ux_webhook_events_key,priority:2"`
	EventType       string         `gorm:"type:varchar(32);not null;uniqueIndex:ux_webhook_events_key,priority:3"`
	IntentID        *string        `gorm:"type:char(36);index:ix_webhook_events_intent"`
	PayloadJSON     datatypes.JSON `gorm:"type:json"`
	Outcome         string         `gorm:"type:varchar(16);not null"`
	ReceivedAt      time.Time      `gorm:"type:datetime(3);not null"`
}

func (WebhookEventRecord) TableName() string { return "webhook_events" }

// IntentEvent is the audit trail: one row per applied state transition.
type IntentEvent struct {
	ID         string    `gorm:"type:char(36);primaryKey"`
	IntentID   string    `gorm:"type:char(36);not null;index:ix_intent_events_intent"`
	Actor      string    `gorm:"type:varchar(64);not null"` // system|provider name|operator id
	FromStatus string    `gorm:"type:varchar(32);not null"`
	ToStatus   string    `gorm:"type:varchar(32);not null"`
	Note       *string   `gorm:"type:varchar(255)"`
	CreatedAt  time.Time `gorm:"type:datetime(3);not null"`
}

func (IntentEvent) TableName() string { return "intent_events" }

// LedgerEntry is the financial journal: signed amounts, append-only.
type LedgerEntry struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	OrderID     string    `gorm:"type:char(36);not null;index:ix_financial_entries_order"`
	Event       string    `gorm:"type:varchar(32);not null"`
	AmountTiyin int64     `gorm:"not null"`
	Currency    string    `gorm:"type:char(3);not null"`
	RefType     string    `gorm:"type:varchar(16);not null;index:ix_financial_entries_ref,priority:1"`
	RefID       string    `gorm:"type:char(36);not null;index:ix_financial_entries_ref,priority:2"`
	CreatedAt   time.Time `gorm:"type:datetime(3);not null"`
}

func (LedgerEntry) TableName() string { return "financial_entries" }

const (
	LedgerPaymentCompleted = "payment_completed"
	LedgerRefundCompleted  = "refund_completed"
	LedgerRefundFailed     = "refund_failed"
)

// FraudAudit records hard fraud rejections. No intent row exists for those;
// this is the only trace.
type FraudAudit struct {
	ID          string    `gorm:"type:char(36);primaryKey"`
	OrderID     string    `gorm:"type:char(36);not null;index:ix_fraud_audits_order"`
	Method      string    `gorm:"type:varchar(32);not null"`
	AmountTiyin int64     `gorm:"not null"`
	Currency    string    `gorm:"type:char(3);not null"`
	Score       int       `gorm:"not null"`
	Reasons     string    `gorm:"type:varchar(255)"`
	CreatedAt   time.Time `gorm:"type:datetime(3);not null"`
}

func (FraudAudit) TableName() string { return "fraud_audits" }
