// Package repository defines the persistence boundaries of the billing
// core. The ledger exclusively owns Payment rows; the subscription
// repository exclusively owns Subscription rows.
package repository

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gestorhub/billing/internal/domain/model"
	"github.com/gestorhub/billing/internal/domain/provider"
)

// TxManager runs a function inside one database transaction so that a
// payment upsert and the subscription transition it triggers commit or
// roll back together.
type TxManager interface {
	Do(ctx context.Context, fn func(ctx context.Context) error) error
}

// PaymentLedger persists payment records keyed by the provider payment id.
type PaymentLedger interface {
	// Upsert applies a canonical provider snapshot to the ledger and
	// returns the resulting row together with the status it held
	// immediately before the call. Two ingestion events for the same
	// provider payment id converge to one row; concurrent upserts for the
	// same id serialize on a row lock. A non-nil raw payload is persisted
	// for audit and marks the row as webhook-received.
	Upsert(ctx context.Context, tenantID uuid.UUID, canonical *provider.CanonicalPayment, raw model.JSONB) (*model.Payment, string, error)

	// GetByProviderPaymentID returns the payment for the provider id, or
	// nil when none exists.
	GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error)

	// GetByExternalReference returns the payment carrying the given
	// external reference, or nil when none exists.
	GetByExternalReference(ctx context.Context, externalReference string) (*model.Payment, error)

	// ListPendingSince returns payments still in the non-terminal pending
	// status created at or after the cutoff.
	ListPendingSince(ctx context.Context, cutoff time.Time) ([]*model.Payment, error)
}

// SubscriptionRepository persists subscription records.
type SubscriptionRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Subscription, error)

	// CurrentForTenant returns the tenant's non-cancelled subscription,
	// or nil when none exists.
	CurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error)

	// FirstWithStatus returns the tenant's subscription in the given
	// status, or nil when none exists.
	FirstWithStatus(ctx context.Context, tenantID uuid.UUID, status model.SubscriptionStatus) (*model.Subscription, error)

	Create(ctx context.Context, sub *model.Subscription) error
	Update(ctx context.Context, sub *model.Subscription) error
}

// PlanRepository reads the plan catalog. Plan CRUD lives elsewhere.
type PlanRepository interface {
	GetByID(ctx context.Context, id uuid.UUID) (*model.Plan, error)

	// FindByPrice returns an active plan with the exact price, or nil
	// when no plan matches. Used as a tolerant fallback for payments
	// lacking a plan link.
	FindByPrice(ctx context.Context, price decimal.Decimal) (*model.Plan, error)
}

// WebhookEventRepository stores the audit trail of inbound notifications.
type WebhookEventRepository interface {
	SaveEvent(ctx context.Context, event *model.WebhookEvent) error
	Finish(ctx context.Context, id uuid.UUID, status model.WebhookEventStatus, procErr error) error
	ListRecent(ctx context.Context, limit int) ([]*model.WebhookEvent, error)
}
