package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gestorhub/billing/internal/domain/model"
)

// Migrate runs database migrations
func Migrate(db *gorm.DB, logger *zap.Logger) error {
	logger.Info("Running database migrations...")

	if err := createExtensions(db); err != nil {
		logger.Error("Failed to create extensions", zap.Error(err))
		return err
	}

	// Custom types must exist before auto-migrate references them
	if err := createCustomTypes(db); err != nil {
		logger.Error("Failed to create custom types", zap.Error(err))
		return err
	}

	err := db.AutoMigrate(
		&model.Plan{},
		&model.Subscription{},
		&model.Payment{},
		&model.WebhookEvent{},
	)
	if err != nil {
		logger.Error("Failed to run migrations", zap.Error(err))
		return err
	}

	if err := createCustomIndexes(db); err != nil {
		logger.Error("Failed to create custom indexes", zap.Error(err))
		return err
	}

	logger.Info("Database migrations completed successfully")
	return nil
}

// createExtensions creates required PostgreSQL extensions
func createExtensions(db *gorm.DB) error {
	return db.Exec(`CREATE EXTENSION IF NOT EXISTS "pgcrypto"`).Error
}

// createCustomTypes creates custom PostgreSQL types
func createCustomTypes(db *gorm.DB) error {
	var exists bool
	db.Raw(`SELECT EXISTS (SELECT 1 FROM pg_type WHERE typname = 'subscription_status')`).Scan(&exists)
	if !exists {
		if err := db.Exec(`CREATE TYPE subscription_status AS ENUM ('trial', 'pending_payment', 'active', 'suspended', 'cancelled')`).Error; err != nil {
			return err
		}
	}
	return nil
}

// createCustomIndexes creates custom indexes that GORM doesn't handle
// automatically
func createCustomIndexes(db *gorm.DB) error {
	// Each tenant holds at most one non-cancelled subscription
	if err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS unique_live_subscription_per_tenant ON subscriptions (tenant_id) WHERE status <> 'cancelled'`).Error; err != nil {
		return err
	}

	// Sweep query: pending payments inside the lookback window
	if err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_payments_pending_created ON payments (created_at) WHERE status = 'pending'`).Error; err != nil {
		return err
	}

	return nil
}
