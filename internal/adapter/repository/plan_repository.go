package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gestorhub/billing/internal/domain/model"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

type planRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPlanRepository creates a new plan repository.
func NewPlanRepository(db *gorm.DB, logger *zap.Logger) domainRepo.PlanRepository {
	return &planRepository{
		db:     db,
		logger: logger,
	}
}

// GetByID retrieves a plan by its id
func (r *planRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.Plan, error) {
	var plan model.Plan

	err := conn(ctx, r.db).
		Where("id = ?", id).
		First(&plan).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get plan",
			zap.String("plan_id", id.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}

	return &plan, nil
}

// FindByPrice retrieves an active plan by exact price match. Returns nil
// when no plan matches; ambiguity between plans sharing a price resolves
// to the first match, which is accepted tolerant behavior for legacy
// records lacking a plan link.
func (r *planRepository) FindByPrice(ctx context.Context, price decimal.Decimal) (*model.Plan, error) {
	var plan model.Plan

	err := conn(ctx, r.db).
		Where("price = ? AND active = true", price).
		Order("created_at ASC").
		First(&plan).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to find plan by price",
			zap.String("price", price.String()),
			zap.Error(err))
		return nil, fmt.Errorf("failed to find plan by price: %w", err)
	}

	return &plan, nil
}
