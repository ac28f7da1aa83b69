package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/gestorhub/billing/internal/domain/model"
	"github.com/gestorhub/billing/internal/domain/provider"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

type paymentLedger struct {
	db     *gorm.DB
	logger *zap.Logger
}

// NewPaymentLedger creates a new payment ledger backed by Postgres.
func NewPaymentLedger(db *gorm.DB, logger *zap.Logger) domainRepo.PaymentLedger {
	return &paymentLedger{
		db:     db,
		logger: logger,
	}
}

// Upsert applies a canonical provider snapshot to the ledger. The whole
// operation runs in a transaction with a row lock so that concurrent
// deliveries for the same provider payment id serialize instead of losing
// updates. Lookup order: provider payment id, then external reference for
// rows created before the provider assigned an id, then insert.
func (r *paymentLedger) Upsert(ctx context.Context, tenantID uuid.UUID, canonical *provider.CanonicalPayment, raw model.JSONB) (*model.Payment, string, error) {
	var (
		result     *model.Payment
		prevStatus string
	)

	err := conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		var existing model.Payment
		err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("provider_payment_id = ?", canonical.ProviderPaymentID).
			First(&existing).Error

		if errors.Is(err, gorm.ErrRecordNotFound) && canonical.ExternalReference != "" {
			// A charge-generation step may have created the row before the
			// provider assigned a payment id.
			err = tx.Clauses(clause.Locking{Strength: "UPDATE"}).
				Where("external_reference = ? AND provider_payment_id IS NULL", canonical.ExternalReference).
				First(&existing).Error
		}

		if err != nil {
			if !errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("failed to look up payment: %w", err)
			}
			row, createErr := r.createFromCanonical(tx, tenantID, canonical, raw)
			if createErr != nil {
				return createErr
			}
			prevStatus = ""
			result = row
			return nil
		}

		prevStatus = existing.Status

		// A delayed fetch can carry a snapshot older than what is already
		// stored. Never let it roll a newer status back.
		if !canonical.DateLastUpdated.IsZero() &&
			canonical.DateLastUpdated.Before(existing.UpdatedAt) &&
			existing.Status != canonical.Status {
			r.logger.Warn("Skipping stale canonical snapshot",
				zap.String("provider_payment_id", canonical.ProviderPaymentID),
				zap.String("stored_status", existing.Status),
				zap.String("snapshot_status", canonical.Status),
				zap.Time("stored_updated_at", existing.UpdatedAt),
				zap.Time("snapshot_updated_at", canonical.DateLastUpdated))
			result = &existing
			return nil
		}

		// Full overwrite of the mutable fields; an empty canonical detail
		// clears the stored one.
		updates := map[string]interface{}{
			"provider_payment_id": canonical.ProviderPaymentID,
			"status":              canonical.Status,
			"status_detail":       nullableString(canonical.StatusDetail),
			"updated_at":          updatedAtFrom(canonical),
		}
		if canonical.Status == model.PaymentStatusApproved {
			updates["paid_at"] = paidAtFrom(canonical)
		}
		if raw != nil {
			updates["webhook_received"] = true
			updates["raw_webhook_payload"] = raw
		}

		if err := tx.Model(&model.Payment{}).
			Where("id = ?", existing.ID).
			Updates(updates).Error; err != nil {
			return fmt.Errorf("failed to update payment: %w", err)
		}

		var updated model.Payment
		if err := tx.First(&updated, "id = ?", existing.ID).Error; err != nil {
			return fmt.Errorf("failed to reload payment: %w", err)
		}
		result = &updated
		return nil
	})

	if err != nil {
		r.logger.Error("Payment upsert failed",
			zap.String("provider_payment_id", canonical.ProviderPaymentID),
			zap.Error(err))
		return nil, "", err
	}

	return result, prevStatus, nil
}

func (r *paymentLedger) createFromCanonical(tx *gorm.DB, tenantID uuid.UUID, canonical *provider.CanonicalPayment, raw model.JSONB) (*model.Payment, error) {
	providerID := canonical.ProviderPaymentID
	row := &model.Payment{
		TenantID:          tenantID,
		ProviderPaymentID: &providerID,
		Status:            canonical.Status,
		Amount:            canonical.TransactionAmount,
		UpdatedAt:         updatedAtFrom(canonical),
	}
	if !canonical.DateCreated.IsZero() {
		row.CreatedAt = canonical.DateCreated
	}
	row.StatusDetail = nullableString(canonical.StatusDetail)
	row.ExternalReference = nullableString(canonical.ExternalReference)
	if canonical.Status == model.PaymentStatusApproved {
		paidAt := paidAtFrom(canonical)
		row.PaidAt = &paidAt
	}
	if raw != nil {
		row.WebhookReceived = true
		row.RawWebhookPayload = raw
	}

	// The unique index on provider_payment_id guards the insert against a
	// concurrent create racing past the locked lookup.
	if err := tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "provider_payment_id"}},
		DoNothing: true,
	}).Create(row).Error; err != nil {
		return nil, fmt.Errorf("failed to create payment: %w", err)
	}

	var created model.Payment
	if err := tx.Where("provider_payment_id = ?", providerID).First(&created).Error; err != nil {
		return nil, fmt.Errorf("failed to reload created payment: %w", err)
	}
	return &created, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func updatedAtFrom(canonical *provider.CanonicalPayment) time.Time {
	if !canonical.DateLastUpdated.IsZero() {
		return canonical.DateLastUpdated
	}
	return time.Now().UTC()
}

func paidAtFrom(canonical *provider.CanonicalPayment) time.Time {
	if canonical.DateApproved != nil {
		return *canonical.DateApproved
	}
	return time.Now().UTC()
}

// GetByProviderPaymentID returns the payment for the provider id
func (r *paymentLedger) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	var payment model.Payment

	err := conn(ctx, r.db).
		Where("provider_payment_id = ?", providerPaymentID).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment by provider id",
			zap.String("provider_payment_id", providerPaymentID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

// GetByExternalReference returns the payment carrying the external reference
func (r *paymentLedger) GetByExternalReference(ctx context.Context, externalReference string) (*model.Payment, error) {
	var payment model.Payment

	err := conn(ctx, r.db).
		Where("external_reference = ?", externalReference).
		First(&payment).Error

	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		r.logger.Error("Failed to get payment by external reference",
			zap.String("external_reference", externalReference),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get payment: %w", err)
	}

	return &payment, nil
}

// ListPendingSince returns pending payments created at or after the cutoff
func (r *paymentLedger) ListPendingSince(ctx context.Context, cutoff time.Time) ([]*model.Payment, error) {
	var payments []*model.Payment

	err := conn(ctx, r.db).
		Where("status = ? AND created_at >= ?", model.PaymentStatusPending, cutoff).
		Order("created_at ASC").
		Find(&payments).Error

	if err != nil {
		r.logger.Error("Failed to list pending payments",
			zap.Time("cutoff", cutoff),
			zap.Error(err))
		return nil, fmt.Errorf("failed to list pending payments: %w", err)
	}

	return payments, nil
}
