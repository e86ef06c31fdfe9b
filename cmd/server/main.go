package main

import (
	"context"
	"log"
	"log/slog"
	"os"

	"github.com/joho/godotenv"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"tolovpay.uz/app/internal/config"
	apphttp "tolovpay.uz/app/internal/http"
	"tolovpay.uz/app/internal/http/handlers"
	"tolovpay.uz/app/internal/mailer"
	"tolovpay.uz/app/internal/modules/gateway"
	"tolovpay.uz/app/internal/modules/intents"
	"tolovpay.uz/app/internal/modules/reconcile"
	"tolovpay.uz/app/internal/modules/webhooks"
	"tolovpay.uz/app/internal/storage"
)

func main() {
	// Load .env file (ignore error if not found - prod uses real env vars)
	_ = godotenv.Load()

	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal(err)
	}

	db, err := gorm.Open(mysql.Open(cfg.DBDSN), &gorm.Config{})
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	store := intents.NewGormStore(db)

	click := gateway.NewClick(cfg.Click)
	oson := gateway.NewOson(cfg.Oson)
	card := gateway.NewCardGate(cfg.Card)

	// One adapter per payment method; offline methods share the stub that
	// succeeds locally and is settled by operator confirmation.
	adapters := map[string]gateway.Adapter{
		intents.MethodClick:          click,
		intents.MethodOson:           oson,
		intents.MethodCard:           card,
		intents.MethodCashOnDelivery: gateway.NewOffline(intents.MethodCashOnDelivery),
		intents.MethodBankTransfer:   gateway.NewOffline(intents.MethodBankTransfer),
	}

	svc := intents.NewService(store, adapters, intents.Options{
		FraudPolicy: cfg.Fraud,
		Retry:       cfg.Retry,
		Currencies:  cfg.Currencies,
		Logger:      logger,
	})

	byProvider := map[string]gateway.Adapter{
		gateway.ProviderClick: click,
		gateway.ProviderOson:  oson,
		gateway.ProviderCard:  card,
	}
	engine := reconcile.NewEngine(store, byProvider, logger)

	var publisher *reconcile.Publisher
	if archive, err := storage.FromEnv(context.Background()); err == nil {
		var mail mailer.Service
		if cfg.FinanceEmail != "" {
			mail = mailer.NewSMTPMailer(cfg.SMTP)
		}
		publisher = reconcile.NewPublisher(archive.Storage, mail, cfg.SMTP.From, cfg.FinanceEmail, logger)
	} else {
		logger.Warn("report archive disabled", "err", err)
	}

	r := apphttp.NewRouter(apphttp.RouterDeps{
		Logger:   logger,
		Payments: handlers.NewPaymentHandler(logger, svc),
		Callbacks: handlers.NewCallbackHandler(logger,
			webhooks.NewClickProcessor(svc, cfg.Click.ServiceID, cfg.Click.SecretKey, logger),
			webhooks.NewOsonProcessor(svc, cfg.Oson.SecretKey, logger),
			webhooks.NewCardProcessor(svc, cfg.Card.WebhookSecret, logger),
		),
		Reconcile: handlers.NewReconcileHandler(logger, engine, publisher),
	})

	logger.Info("server starting", "addr", cfg.HTTPAddr, "env", cfg.AppEnv)
	if err := r.Run(cfg.HTTPAddr); err != nil {
		log.Fatal(err)
	}
}
