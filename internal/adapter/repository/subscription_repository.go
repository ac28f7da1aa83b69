package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gestorhub/billing/internal/domain/model"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

type subscriptionRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewSubscriptionRepository creates a new subscription repository.
func NewSubscriptionRepository(db *gorm.DB, logger *zap.Logger) domainRepo.SubscriptionRepository {
	return &subscriptionRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a subscription by its id
func (r *subscriptionRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription

	err := conn(ctx, r.db).
		Preload("Plan").
		Where("id = ?", id).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by ID",
			zap.String("subscription_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// CurrentForTenant retrieves the tenant's non-cancelled subscription
func (r *subscriptionRepository) CurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	var sub model.Subscription

	err := conn(ctx, r.db).
		Preload("Plan").
		Where("tenant_id = ? AND status <> ?", tenantID, model.SubscriptionStatusCancelled).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get current subscription",
			zap.String("tenant_id", tenantID.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get current subscription: %w", err)
	}

	return &sub, nil
}

// FirstWithStatus retrieves the tenant's subscription in the given status
func (r *subscriptionRepository) FirstWithStatus(ctx context.Context, tenantID uuid.UUID, status model.SubscriptionStatus) (*model.Subscription, error) {
	var sub model.Subscription

	err := conn(ctx, r.db).
		Where("tenant_id = ? AND status = ?", tenantID, status).
		First(&sub).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get subscription by status",
			zap.String("tenant_id", tenantID.String()),
			zap.String("status", string(status)),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get subscription: %w", err)
	}

	return &sub, nil
}

// Create persists a new subscription
func (r *subscriptionRepository) Create(ctx context.Context, sub *model.Subscription) error {
	err := conn(ctx, r.db).Create(sub).Error
	if err != nil {
		r.logger.Error("Failed to create subscription",
			zap.String("tenant_id", sub.TenantID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to create subscription: %w", err)
	}

	return nil
}

// Update persists changes to an existing subscription
func (r *subscriptionRepository) Update(ctx context.Context, sub *model.Subscription) error {
	// Select the mutable columns explicitly so cleared nullable fields
	// (trial_ends_at, next_charge_at, ended_at) are written as NULL, not
	// skipped by the zero-value rules of Updates.
	err := conn(ctx, r.db).
		Model(&model.Subscription{}).
		Where("id = ?", sub.ID).
		Select("status", "plan_id", "amount", "started_at", "trial_ends_at", "next_charge_at", "ended_at", "updated_at").
		Updates(sub).Error

	if err != nil {
		r.logger.Error("Failed to update subscription",
			zap.String("subscription_id", sub.ID.String()),
			zap.Error(err))
		return fmt.Errorf("failed to update subscription: %w", err)
	}

	return nil
}
