package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/ToropovAlexei/autosales-sub001/internal/config"
	"github.com/ToropovAlexei/autosales-sub001/internal/customer"
	"github.com/ToropovAlexei/autosales-sub001/internal/db"
	"github.com/ToropovAlexei/autosales-sub001/internal/gateway"
	"github.com/ToropovAlexei/autosales-sub001/internal/invoice"
	"github.com/ToropovAlexei/autosales-sub001/internal/jobs"
	"github.com/ToropovAlexei/autosales-sub001/internal/ledger"
	"github.com/ToropovAlexei/autosales-sub001/internal/logger"
	"github.com/ToropovAlexei/autosales-sub001/internal/notify"
	"github.com/ToropovAlexei/autosales-sub001/internal/product"
	"github.com/ToropovAlexei/autosales-sub001/internal/purchase"
	"github.com/ToropovAlexei/autosales-sub001/internal/server"
	"github.com/ToropovAlexei/autosales-sub001/internal/settings"
	"github.com/ToropovAlexei/autosales-sub001/internal/store"
	"github.com/ToropovAlexei/autosales-sub001/internal/subscription"
)

// @title Autosales Store API
// @version 1.0
// @description Financial ledger and payment lifecycle engine for a digital goods store.
// @host localhost:8080
// @BasePath /
// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
func main() {
	logger.Init()
	logger.Info("Starting autosales backend")

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("Failed to load config: %v", err)
	}

	logger.Info("Connecting to database...")
	database, err := db.Connect(cfg.DatabaseURL)
	if err != nil {
		logger.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()
	logger.Info("Database connected")

	if err := db.RunMigrations(database, "migrations"); err != nil {
		logger.Fatalf("Failed to run migrations: %v", err)
	}
	logger.Info("Migrations completed")

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	dispatcher := notify.NewService(rdb, cfg.DispatchURL)

	gateways := gateway.NewRegistry()
	for _, name := range cfg.EnabledGatewayNames() {
		switch name {
		case "mock":
			gateways.Register(gateway.NewMockAdapter(cfg.MockGatewayURL))
		case "platform_card":
			gateways.Register(gateway.NewPlatformCardAdapter(cfg.PlatformGatewayURL, cfg.PlatformAPIKey))
		case "platform_sbp":
			gateways.Register(gateway.NewPlatformSBPAdapter(cfg.PlatformGatewayURL, cfg.PlatformAPIKey))
		default:
			logger.Errorf("Unknown gateway %q in ENABLED_GATEWAYS, skipping", name)
		}
	}
	logger.Infof("Payment gateways enabled: %v", gateways.Names())

	ledgerRepo := ledger.NewRepository(database)
	settingsRepo := settings.NewRepository(database)
	customerRepo := customer.NewRepository(database)
	productRepo := product.NewRepository(database)
	invoiceRepo := invoice.NewRepository(database)
	purchaseRepo := purchase.NewRepository(database)
	storeRepo := store.NewRepository(database)
	subscriptionRepo := subscription.NewRepository(database)

	invoiceService := invoice.NewService(database, invoiceRepo, ledgerRepo, settingsRepo,
		gateways, dispatcher, time.Duration(cfg.InvoiceTTLHours)*time.Hour)
	purchaseService := purchase.NewService(database, purchaseRepo, productRepo,
		ledgerRepo, settingsRepo, subscriptionRepo, dispatcher)
	storeService := store.NewService(database, storeRepo, ledgerRepo, settingsRepo, dispatcher)
	biller := subscription.NewBiller(subscriptionRepo, rdb, dispatcher, purchaseService,
		time.Duration(cfg.SubscriptionNotifyWindowHours)*time.Hour)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go dispatcher.Start(ctx)

	runner := jobs.NewRunner(
		jobs.NewInvoiceSweep(invoiceRepo, invoiceService, gateways, dispatcher,
			time.Duration(cfg.PaymentNotifyAfterMinutes)*time.Minute,
			time.Duration(cfg.PaymentPollSeconds)*time.Second),
		jobs.Job{
			Name:     "subscription-biller",
			Interval: time.Duration(cfg.SubscriptionPollSeconds) * time.Second,
			Run:      biller.Run,
		},
	)
	if cfg.RateSourceURL != "" {
		runner.Add(jobs.NewRateSync(settingsRepo, cfg.RateSourceURL,
			time.Duration(cfg.RateSyncSeconds)*time.Second))
	}
	runner.Start(ctx)

	srv := server.New(server.Deps{
		DB:               database,
		Config:           cfg,
		InvoiceService:   invoiceService,
		InvoiceRepo:      invoiceRepo,
		PurchaseService:  purchaseService,
		StoreService:     storeService,
		StoreRepo:        storeRepo,
		ProductRepo:      productRepo,
		CustomerRepo:     customerRepo,
		SubscriptionRepo: subscriptionRepo,
		SettingsRepo:     settingsRepo,
	})

	serverErrChan := make(chan error, 1)
	go func() {
		logger.Infof("Server starting on port %s", cfg.Port)
		if err := srv.Start(cfg.Port); err != nil && err != http.ErrServerClosed {
			serverErrChan <- err
		}
	}()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Infof("Received signal: %v", sig)
	case err := <-serverErrChan:
		logger.Errorf("Server error: %v", err)
	}

	logger.Info("Shutting down gracefully...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	cancel()
	runner.Wait()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Errorf("Error during server shutdown: %v", err)
	}

	logger.Info("Server stopped")
}
