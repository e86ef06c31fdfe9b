package main

import (
	"log"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
)

func main() {
	_ = godotenv.Load()

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		log.Fatal("DB_DSN environment variable is required")
	}

	db, err := gorm.Open(mysql.Open(dsn), &gorm.Config{})
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		log.Fatalf("Failed to get DB: %v", err)
	}

	// One statement per table: multi-statement Exec would require
	// multiStatements=true in the DSN.
	tables := []struct {
		name string
		ddl  string
	}{
		{"payment_intents", `
	CREATE TABLE IF NOT EXISTS payment_intents (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  provider_trans_id VARCHAR(128) NULL,
	  method VARCHAR(32) NOT NULL,
	  status VARCHAR(32) NOT NULL,
	  amount_tiyin BIGINT NOT NULL,
	  refunded_tiyin BIGINT NOT NULL DEFAULT 0,
	  currency CHAR(3) NOT NULL DEFAULT 'UZS',
	  fraud_score INT NULL,
	  risk_level VARCHAR(16) NULL,
	  customer_id CHAR(36) NULL,
	  redirect_url VARCHAR(512) NULL,
	  idempotency_key VARCHAR(64) NOT NULL,
	  error_message VARCHAR(255) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  updated_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  completed_at DATETIME(3) NULL,
	  PRIMARY KEY (id),
	  KEY ix_payment_intents_order_id (order_id),
	  KEY ix_payment_intents_provider_ref (provider_trans_id),
	  KEY ix_payment_intents_status (status),
	  UNIQUE KEY ux_payment_intents_idem (order_id, idempotency_key)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},

		{"webhook_events", `
	CREATE TABLE IF NOT EXISTS webhook_events (
	  id CHAR(36) NOT NULL,
	  provider VARCHAR(64) NOT NULL,
	  provider_trans_id VARCHAR(128) NOT NULL,
	  event_type VARCHAR(32) NOT NULL,
	  intent_id CHAR(36) NULL,
	  payload_json JSON NULL,
	  outcome VARCHAR(16) NOT NULL,
	  received_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  UNIQUE KEY ux_webhook_events_key (provider, provider_trans_id, event_type),
	  KEY ix_webhook_events_intent (intent_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},

		{"intent_events", `
	CREATE TABLE IF NOT EXISTS intent_events (
	  id CHAR(36) NOT NULL,
	  intent_id CHAR(36) NOT NULL,
	  actor VARCHAR(64) NOT NULL,
	  from_status VARCHAR(32) NOT NULL,
	  to_status VARCHAR(32) NOT NULL,
	  note VARCHAR(255) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_intent_events_intent (intent_id, created_at)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},

		{"financial_entries", `
	CREATE TABLE IF NOT EXISTS financial_entries (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  event VARCHAR(32) NOT NULL,
	  amount_tiyin BIGINT NOT NULL,
	  currency CHAR(3) NOT NULL,
	  ref_type VARCHAR(16) NOT NULL,
	  ref_id CHAR(36) NOT NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_financial_entries_order (order_id, created_at),
	  KEY ix_financial_entries_ref (ref_type, ref_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},

		{"fraud_audits", `
	CREATE TABLE IF NOT EXISTS fraud_audits (
	  id CHAR(36) NOT NULL,
	  order_id CHAR(36) NOT NULL,
	  method VARCHAR(32) NOT NULL,
	  amount_tiyin BIGINT NOT NULL,
	  currency CHAR(3) NOT NULL,
	  score INT NOT NULL,
	  reasons VARCHAR(255) NULL,
	  created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
	  PRIMARY KEY (id),
	  KEY ix_fraud_audits_order (order_id)
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`},
	}

	for _, t := range tables {
		if _, err := sqlDB.Exec(t.ddl); err != nil {
			log.Fatalf("Failed to create %s: %v", t.name, err)
		}
		log.Printf("✓ %s table created successfully", t.name)
	}
}
