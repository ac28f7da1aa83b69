package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/gestorhub/billing/internal/config"
	"github.com/gestorhub/billing/internal/infrastructure/database"
	httpServer "github.com/gestorhub/billing/internal/infrastructure/http"
	"github.com/gestorhub/billing/internal/infrastructure/provider/mercadopago"
	"github.com/gestorhub/billing/internal/platform/logger"
	"github.com/gestorhub/billing/internal/usecase"
)

func main() {
	// Load configuration
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Initialize logger
	zapLogger, err := logger.NewZapLogger(logger.Config{
		Level:       cfg.Log.Level,
		Format:      cfg.Log.Format,
		Output:      cfg.Log.Output,
		FilePath:    cfg.Log.FilePath,
		Development: cfg.Log.Development,
	})
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer zapLogger.Sync()

	// Initialize database connection
	db, err := database.NewConnection(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := database.Close(db, zapLogger); err != nil {
			zapLogger.Error("Failed to close database connection", zap.Error(err))
		}
	}()

	// Run database migrations
	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run database migrations", zap.Error(err))
	}

	// Initialize repositories
	repos := database.NewRepositories(db, zapLogger)

	// Initialize provider client and services
	providerClient := mercadopago.NewClient(
		cfg.Provider.BaseURL,
		cfg.Provider.AccessToken,
		cfg.Provider.Timeout,
		zapLogger,
	)

	subscriptionService := usecase.NewSubscriptionService(repos.Subscription, repos.Plan, zapLogger)
	syncService := usecase.NewPaymentSyncService(
		providerClient,
		repos.Ledger,
		repos.Subscription,
		subscriptionService,
		repos.Tx,
		usecase.RetryConfig{
			MaxAttempts: cfg.Provider.MaxAttempts,
			BaseDelay:   cfg.Provider.BaseDelay,
		},
		zapLogger,
	)
	reconcileService := usecase.NewReconcileService(repos.Ledger, syncService, zapLogger)

	// Create context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Schedule the periodic reconciliation sweep
	scheduler := cron.New()
	if cfg.Reconcile.Schedule != "" {
		_, err := scheduler.AddFunc(cfg.Reconcile.Schedule, func() {
			sweepCtx, sweepCancel := context.WithTimeout(ctx, 10*time.Minute)
			defer sweepCancel()

			report, err := reconcileService.Reconcile(sweepCtx, cfg.Reconcile.DefaultLookbackDays)
			if err != nil {
				zapLogger.Error("Scheduled reconciliation failed", zap.Error(err))
				return
			}
			zapLogger.Info("Scheduled reconciliation completed",
				zap.Int("analyzed", report.Analyzed),
				zap.Int("updated", report.Updated),
				zap.Int("failed", report.Failed))
		})
		if err != nil {
			zapLogger.Fatal("Invalid reconcile schedule", zap.Error(err))
		}
		scheduler.Start()
		zapLogger.Info("Reconciliation sweep scheduled",
			zap.String("schedule", cfg.Reconcile.Schedule))
	}

	// Initialize HTTP server
	httpSrv := httpServer.NewServer(cfg, zapLogger, repos, syncService, reconcileService, subscriptionService)

	go func() {
		if err := httpSrv.Start(); err != nil {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	// Wait for interrupt signal
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	zapLogger.Info("Shutting down...")

	cronCtx := scheduler.Stop()
	<-cronCtx.Done()

	if err := httpSrv.Shutdown(ctx); err != nil {
		zapLogger.Error("Failed to shutdown HTTP server", zap.Error(err))
	}

	zapLogger.Info("Server shut down successfully")
}
