// Package config reads the environment once at startup and hands typed
// configuration to the entrypoints. Required keys fail fast with a named
// error; everything else has a development-friendly default.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"tolovpay.uz/app/internal/modules/fraud"
	"tolovpay.uz/app/internal/modules/gateway"
)

type SMTPConfig struct {
	Host          string
	Port          string
	User          string
	Pass          string
	TLSMode       string // "", "tls", "starttls"
	SkipVerifyTLS bool
	From          string
	FromName      string
}

type Config struct {
	AppEnv   string // development | production
	HTTPAddr string
	DBDSN    string

	Currencies []string

	Fraud fraud.Policy
	Retry gateway.RetryPolicy

	Click gateway.ClickConfig
	Oson  gateway.OsonConfig
	Card  gateway.CardGateConfig

	SMTP         SMTPConfig
	FinanceEmail string // reconciliation summaries; empty disables mail
}

func FromEnv() (Config, error) {
	cfg := Config{
		AppEnv:   envOr("APP_ENV", "development"),
		HTTPAddr: envOr("HTTP_ADDR", ":8080"),
		DBDSN:    os.Getenv("DB_DSN"),

		Currencies: splitList(envOr("CURRENCIES", "UZS")),

		Fraud: fraudFromEnv(),
		Retry: gateway.RetryPolicy{
			MaxAttempts: envInt("GATEWAY_MAX_ATTEMPTS", 3),
			BaseDelay:   envDuration("GATEWAY_RETRY_BASE_DELAY", 200*time.Millisecond),
		},

		Click: gateway.ClickConfig{
			ServiceID:      envInt64("CLICK_SERVICE_ID", 0),
			MerchantID:     envInt64("CLICK_MERCHANT_ID", 0),
			MerchantUserID: envInt64("CLICK_MERCHANT_USER_ID", 0),
			SecretKey:      os.Getenv("CLICK_SECRET_KEY"),
			CheckoutURL:    envOr("CLICK_CHECKOUT_URL", "https://my.click.uz/services/pay"),
			APIBaseURL:     envOr("CLICK_API_BASE_URL", "https://api.click.uz"),
			Timeout:        envDuration("CLICK_TIMEOUT", 10*time.Second),
		},
		Oson: gateway.OsonConfig{
			MerchantID: os.Getenv("OSON_MERCHANT_ID"),
			SecretKey:  os.Getenv("OSON_SECRET_KEY"),
			BaseURL:    envOr("OSON_BASE_URL", "https://api.oson.uz"),
			Timeout:    envDuration("OSON_TIMEOUT", 10*time.Second),
		},
		Card: gateway.CardGateConfig{
			BaseURL:       envOr("CARDGATE_BASE_URL", "https://api.cardgate.uz"),
			APIKey:        os.Getenv("CARDGATE_API_KEY"),
			WebhookSecret: os.Getenv("CARDGATE_WEBHOOK_SECRET"),
			Timeout:       envDuration("CARDGATE_TIMEOUT", 10*time.Second),
		},

		SMTP: SMTPConfig{
			Host:          envOr("SMTP_HOST", "localhost"),
			Port:          envOr("SMTP_PORT", "1025"),
			User:          os.Getenv("SMTP_USER"),
			Pass:          os.Getenv("SMTP_PASS"),
			TLSMode:       os.Getenv("SMTP_TLS_MODE"),
			SkipVerifyTLS: envBool("SMTP_SKIP_VERIFY_TLS", false),
			From:          envOr("SMTP_FROM", "no-reply@tolovpay.uz"),
			FromName:      envOr("SMTP_FROM_NAME", "Tolovpay"),
		},
		FinanceEmail: os.Getenv("FINANCE_EMAIL"),
	}

	if cfg.DBDSN == "" {
		return Config{}, fmt.Errorf("config: DB_DSN is required")
	}
	if len(cfg.Currencies) == 0 {
		return Config{}, fmt.Errorf("config: CURRENCIES must not be empty")
	}
	return cfg, nil
}

func fraudFromEnv() fraud.Policy {
	p := fraud.DefaultPolicy()
	p.HighValueThresholdTiyin = envInt64("FRAUD_HIGH_VALUE_TIYIN", p.HighValueThresholdTiyin)
	p.FlagAbove = envInt("FRAUD_FLAG_ABOVE", p.FlagAbove)
	p.RejectAbove = envInt("FRAUD_REJECT_ABOVE", p.RejectAbove)
	return p
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, strings.ToUpper(p))
		}
	}
	return out
}

func envOr(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envInt64(k string, def int64) int64 {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func envBool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
