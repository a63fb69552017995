package main

import (
	"context"
	"encoding/base64"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/splitpay/checkout-core/internal/config"
	httpdelivery "github.com/splitpay/checkout-core/internal/delivery/http"
	"github.com/splitpay/checkout-core/internal/infrastructure/auditlog"
	"github.com/splitpay/checkout-core/internal/infrastructure/encryption"
	"github.com/splitpay/checkout-core/internal/infrastructure/kafka"
	"github.com/splitpay/checkout-core/internal/infrastructure/metrics"
	"github.com/splitpay/checkout-core/internal/infrastructure/migrate"
	"github.com/splitpay/checkout-core/internal/infrastructure/platform"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres"
	"github.com/splitpay/checkout-core/internal/infrastructure/postgres/repository"
	"github.com/splitpay/checkout-core/internal/infrastructure/provider"
	"github.com/splitpay/checkout-core/internal/orchestrator"
	"github.com/splitpay/checkout-core/internal/reconciler"
	"github.com/splitpay/checkout-core/internal/session"
)

func main() {
	if err := godotenv.Load(); err != nil {
		log.Println("failed to load .env")
	}

	cfg := config.MustLoad()

	db := postgres.MustInitDB(cfg)
	if err := migrate.RunMigrations(db, "internal/infrastructure/migrate/migrations"); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	encKey, err := base64.StdEncoding.DecodeString(cfg.Encryption.KeyBase64)
	if err != nil {
		log.Fatalf("failed to decode ACCESS_TOKEN_ENCRYPTION_KEY: %v", err)
	}
	enc, err := encryption.NewService(encKey)
	if err != nil {
		log.Fatalf("failed to init encryption service: %v", err)
	}

	storeRepo := repository.NewStoreRepository(db, enc)
	transactionRepo := repository.NewTransactionRepository(db)
	paymentRepo := repository.NewPaymentRepository(db)
	refundRepo := repository.NewRefundRepository(db)
	idempotencyRepo := repository.NewIdempotencyRepository(db)

	sessions := session.NewInMemoryStore()
	providerAdapter := provider.NewHTTPAdapter(cfg.Provider.BaseURL, cfg.Provider.SecretKey)
	platformClient := platform.NewClient(cfg.Platform.BaseURL)
	alerts := kafka.NewAlertPublisher(cfg.KafkaConfig.Brokers, cfg.KafkaConfig.Topic)
	defer alerts.Close()
	audit := auditlog.NewPGLogger(db)
	m := metrics.NewCheckoutMetrics()

	orch := orchestrator.New(
		storeRepo,
		transactionRepo,
		paymentRepo,
		refundRepo,
		idempotencyRepo,
		sessions,
		providerAdapter,
		platformClient,
		alerts,
		audit,
		m,
	)
	orch.SessionTTL = cfg.Session.TTL

	providerReconciler := reconciler.NewProviderReconciler(paymentRepo, refundRepo, alerts, m)
	platformReconciler := reconciler.NewPlatformReconciler(storeRepo, transactionRepo, m, alerts)
	startupReconciler := reconciler.NewStartupReconciler(storeRepo, transactionRepo, paymentRepo, platformClient, alerts)

	// Post-capture/pre-order crash window (spec.md §9): on boot, retry
	// order submission for every transaction that captured every card
	// but never got an order_id recorded.
	startupReconciler.ReconcileOrphanedOrders(context.Background())

	// Sweep expired sessions on a ticker, the same shape as the teacher's
	// periodic CancelExpiredOrders goroutine in main.
	go func() {
		ticker := time.NewTicker(cfg.Session.SweepInterval)
		defer ticker.Stop()
		for range ticker.C {
			sessions.Sweep()
		}
	}()

	widgetHandler := httpdelivery.NewWidgetHandler(orch)
	adminHandler := httpdelivery.NewAdminHandler(orch, transactionRepo, storeRepo)
	webhookHandler := httpdelivery.NewWebhookHandler(providerReconciler, platformReconciler, cfg.Provider.WebhookSecret, cfg.Platform.WebhookSecret)

	mux := httpdelivery.NewRouter(widgetHandler, adminHandler, webhookHandler, nil, nil)
	mux.Handle("/metrics", metrics.Handler())

	srv := &http.Server{
		Addr:         cfg.HTTPServer.Host + ":" + cfg.HTTPServer.Port,
		Handler:      mux,
		ReadTimeout:  cfg.HTTPServer.ReadTimeout,
		WriteTimeout: cfg.HTTPServer.WriteTimeout,
	}

	go func() {
		slog.Info("checkout core http server starting", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server failed: %v", err)
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)
	<-stop

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("graceful shutdown failed", "error", err)
	}
}
