package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gestorhub/billing/internal/domain/model"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

type webhookEventRepository struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewWebhookEventRepository creates a new webhook event repository.
func NewWebhookEventRepository(db *gorm.DB, logger *zap.Logger) domainRepo.WebhookEventRepository {
	return &webhookEventRepository{
		db:     db,
		logger: logger,
	}
}

// SaveEvent stores the inbound notification before any interpretation
func (r *webhookEventRepository) SaveEvent(ctx context.Context, event *model.WebhookEvent) error {
	err := conn(ctx, r.db).Create(event).Error
	if err != nil {
		r.logger.Error("Failed to save webhook event",
			zap.String("event_kind", event.EventKind),
			zap.Error(err))
		return fmt.Errorf("failed to save webhook event: %w", err)
	}

	return nil
}

// Finish records the processing outcome of a stored event
func (r *webhookEventRepository) Finish(ctx context.Context, id uuid.UUID, status model.WebhookEventStatus, procErr error) error {
	updates := map[string]interface{}{
		"status":     status,
		"updated_at": time.Now().UTC(),
	}
	if procErr != nil {
		msg := procErr.Error()
		updates["last_error"] = &msg
	}

	result := conn(ctx, r.db).
		Model(&model.WebhookEvent{}).
		Where("id = ?", id).
		Updates(updates)

	if result.Error != nil {
		r.logger.Error("Failed to finish webhook event",
			zap.String("event_id", id.String()),
			zap.Error(result.Error))
		return fmt.Errorf("failed to finish webhook event: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("webhook event not found: %s", id)
	}

	return nil
}

// ListRecent returns the most recent webhook events, newest first
func (r *webhookEventRepository) ListRecent(ctx context.Context, limit int) ([]*model.WebhookEvent, error) {
	var events []*model.WebhookEvent

	query := conn(ctx, r.db).Order("created_at DESC")
	if limit > 0 {
		query = query.Limit(limit)
	}

	err := query.Find(&events).Error
	if err != nil {
		r.logger.Error("Failed to list webhook events", zap.Error(err))
		return nil, fmt.Errorf("failed to list webhook events: %w", err)
	}

	return events, nil
}
