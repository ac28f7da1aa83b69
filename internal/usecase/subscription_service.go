package usecase

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/gestorhub/billing/internal/domain/billing"
	"github.com/gestorhub/billing/internal/domain/model"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

// SubscriptionService owns every write to subscription rows. It applies
// canonical payment outcomes to a tenant's subscription, enforcing the
// legal transitions trial/pending_payment -> active -> suspended.
type SubscriptionService struct {
	subscriptions domainRepo.SubscriptionRepository
	plans         domainRepo.PlanRepository
	logger        *zap.Logger
	now           func() time.Time
}

// NewSubscriptionService creates a new subscription service.
func NewSubscriptionService(
	subscriptions domainRepo.SubscriptionRepository,
	plans domainRepo.PlanRepository,
	logger *zap.Logger,
) *SubscriptionService {
	return &SubscriptionService{
		subscriptions: subscriptions,
		plans:         plans,
		logger:        logger,
		now:           func() time.Time { return time.Now().UTC() },
	}
}

// CurrentForTenant returns the tenant's non-cancelled subscription.
func (s *SubscriptionService) CurrentForTenant(ctx context.Context, tenantID uuid.UUID) (*model.Subscription, error) {
	return s.subscriptions.CurrentForTenant(ctx, tenantID)
}

// ApplyPaymentOutcome applies a payment's canonical status to the tenant's
// subscription. It is a no-op when the status did not change since the
// previous local observation, which makes re-running the pipeline with the
// same canonical input safe.
func (s *SubscriptionService) ApplyPaymentOutcome(ctx context.Context, tenantID uuid.UUID, payment *model.Payment, previousStatus string) error {
	if payment.Status == previousStatus {
		s.logger.Debug("Payment status unchanged, skipping subscription transition",
			zap.String("tenant_id", tenantID.String()),
			zap.String("status", payment.Status))
		return nil
	}

	switch payment.Status {
	case model.PaymentStatusApproved:
		return s.activate(ctx, tenantID, payment)
	case model.PaymentStatusRejected, model.PaymentStatusCancelled:
		return s.suspendActive(ctx, tenantID, payment)
	default:
		// Intermediate provider statuses never move the subscription.
		return nil
	}
}

// activate moves the tenant onto an active subscription. An existing
// trial, pending_payment or suspended subscription is transformed in place
// so the one-non-cancelled-subscription invariant holds; only when the
// tenant has no subscription at all is a new active one created.
func (s *SubscriptionService) activate(ctx context.Context, tenantID uuid.UUID, payment *model.Payment) error {
	now := s.now()
	nextCharge := billing.NextChargeDate(now)

	for _, status := range []model.SubscriptionStatus{
		model.SubscriptionStatusTrial,
		model.SubscriptionStatusPendingPayment,
		model.SubscriptionStatusSuspended,
	} {
		sub, err := s.subscriptions.FirstWithStatus(ctx, tenantID, status)
		if err != nil {
			return err
		}
		if sub == nil {
			continue
		}

		sub.Status = model.SubscriptionStatusActive
		sub.StartedAt = &now
		sub.TrialEndsAt = nil
		sub.NextChargeAt = &nextCharge
		sub.EndedAt = nil
		sub.Amount = payment.Amount
		sub.UpdatedAt = now
		if payment.PlanID != nil {
			sub.PlanID = payment.PlanID
		}

		if err := s.subscriptions.Update(ctx, sub); err != nil {
			return err
		}

		s.logger.Info("Subscription activated",
			zap.String("tenant_id", tenantID.String()),
			zap.String("subscription_id", sub.ID.String()),
			zap.String("previous_status", string(status)),
			zap.Time("next_charge_at", nextCharge))
		return nil
	}

	active, err := s.subscriptions.FirstWithStatus(ctx, tenantID, model.SubscriptionStatusActive)
	if err != nil {
		return err
	}
	if active != nil {
		s.logger.Debug("Tenant already active, no transition needed",
			zap.String("tenant_id", tenantID.String()),
			zap.String("subscription_id", active.ID.String()))
		return nil
	}

	planID, err := s.resolvePlan(ctx, payment)
	if err != nil {
		return err
	}

	sub := &model.Subscription{
		TenantID:     tenantID,
		PlanID:       planID,
		Status:       model.SubscriptionStatusActive,
		Amount:       payment.Amount,
		StartedAt:    &now,
		NextChargeAt: &nextCharge,
	}
	if err := s.subscriptions.Create(ctx, sub); err != nil {
		return err
	}

	s.logger.Info("Subscription created as active",
		zap.String("tenant_id", tenantID.String()),
		zap.String("subscription_id", sub.ID.String()),
		zap.Bool("plan_resolved", planID != nil),
		zap.Time("next_charge_at", nextCharge))
	return nil
}

// resolvePlan prefers the payment's own plan link and falls back to an
// exact price match. A nil result is acceptable; the plan can be linked
// later.
func (s *SubscriptionService) resolvePlan(ctx context.Context, payment *model.Payment) (*uuid.UUID, error) {
	if payment.PlanID != nil {
		return payment.PlanID, nil
	}

	plan, err := s.plans.FindByPrice(ctx, payment.Amount)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		s.logger.Warn("No plan matches payment amount, leaving plan unlinked",
			zap.String("payment_id", payment.ID.String()),
			zap.String("amount", payment.Amount.String()))
		return nil, nil
	}
	return &plan.ID, nil
}

// suspendActive suspends the tenant's active subscription on a rejected or
// cancelled payment. A tenant still on trial or pending_payment keeps its
// state: a failed first conversion attempt is not grounds for suspension.
func (s *SubscriptionService) suspendActive(ctx context.Context, tenantID uuid.UUID, payment *model.Payment) error {
	active, err := s.subscriptions.FirstWithStatus(ctx, tenantID, model.SubscriptionStatusActive)
	if err != nil {
		return err
	}
	if active == nil {
		s.logger.Info("No active subscription to suspend",
			zap.String("tenant_id", tenantID.String()),
			zap.String("payment_status", payment.Status))
		return nil
	}

	now := s.now()
	active.Status = model.SubscriptionStatusSuspended
	active.NextChargeAt = nil
	active.UpdatedAt = now

	if err := s.subscriptions.Update(ctx, active); err != nil {
		return err
	}

	s.logger.Warn("Subscription suspended",
		zap.String("tenant_id", tenantID.String()),
		zap.String("subscription_id", active.ID.String()),
		zap.String("payment_status", payment.Status))
	return nil
}
