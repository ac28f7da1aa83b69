package usecase

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	apperrors "github.com/gestorhub/billing/internal/platform/errors"

	"github.com/gestorhub/billing/internal/domain/model"
	"github.com/gestorhub/billing/internal/domain/provider"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

// subscriptionRefPrefix tags external references pointing at a
// subscription, e.g. "subscription_5f1c…".
const subscriptionRefPrefix = "subscription_"

// SubscriptionTransitioner applies a canonical payment outcome to a
// tenant's subscription.
type SubscriptionTransitioner interface {
	ApplyPaymentOutcome(ctx context.Context, tenantID uuid.UUID, payment *model.Payment, previousStatus string) error
}

// RetryConfig bounds the caller-side retry around provider fetches.
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// SyncResult describes the outcome of one pipeline run.
type SyncResult struct {
	Payment        *model.Payment             `json:"payment"`
	PreviousStatus string                     `json:"previous_status"`
	StatusChanged  bool                       `json:"status_changed"`
	Canonical      *provider.CanonicalPayment `json:"canonical"`
}

// PaymentSyncService runs the apply-canonical-payment-state pipeline:
// fetch the provider's authoritative snapshot, upsert it into the ledger,
// and let the subscription state machine react. Both the webhook endpoint
// and the reconciliation sweeper terminate here.
type PaymentSyncService struct {
	provider      provider.PaymentProvider
	ledger        domainRepo.PaymentLedger
	subscriptions domainRepo.SubscriptionRepository
	transitioner  SubscriptionTransitioner
	tx            domainRepo.TxManager
	retry         RetryConfig
	logger        *zap.Logger
	sleep         func(ctx context.Context, d time.Duration) error
}

// NewPaymentSyncService creates a new payment sync service.
func NewPaymentSyncService(
	paymentProvider provider.PaymentProvider,
	ledger domainRepo.PaymentLedger,
	subscriptions domainRepo.SubscriptionRepository,
	transitioner SubscriptionTransitioner,
	tx domainRepo.TxManager,
	retry RetryConfig,
	logger *zap.Logger,
) *PaymentSyncService {
	if retry.MaxAttempts < 1 {
		retry.MaxAttempts = 1
	}
	if retry.BaseDelay <= 0 {
		retry.BaseDelay = 500 * time.Millisecond
	}
	return &PaymentSyncService{
		provider:      paymentProvider,
		ledger:        ledger,
		subscriptions: subscriptions,
		transitioner:  transitioner,
		tx:            tx,
		retry:         retry,
		logger:        logger,
		sleep:         sleepCtx,
	}
}

// Sync runs the full pipeline for one provider payment id. rawPayload, when
// non-nil, is the inbound webhook body kept for audit; it is never used to
// decide the resulting state. The upsert and the subscription transition
// commit in one transaction, so a crash between them cannot strand an
// approved payment without its activation.
func (s *PaymentSyncService) Sync(ctx context.Context, providerPaymentID string, rawPayload model.JSONB) (*SyncResult, error) {
	canonical, err := s.fetchWithRetry(ctx, providerPaymentID)
	if err != nil {
		return nil, err
	}

	tenantID, err := s.resolveTenant(ctx, providerPaymentID, canonical)
	if err != nil {
		return nil, err
	}

	var result SyncResult
	err = s.tx.Do(ctx, func(txCtx context.Context) error {
		payment, previousStatus, err := s.ledger.Upsert(txCtx, tenantID, canonical, rawPayload)
		if err != nil {
			return err
		}

		result = SyncResult{
			Payment:        payment,
			PreviousStatus: previousStatus,
			StatusChanged:  payment.Status != previousStatus,
			Canonical:      canonical,
		}

		return s.transitioner.ApplyPaymentOutcome(txCtx, tenantID, payment, previousStatus)
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("Payment synchronized",
		zap.String("provider_payment_id", providerPaymentID),
		zap.String("tenant_id", tenantID.String()),
		zap.String("previous_status", result.PreviousStatus),
		zap.String("status", result.Payment.Status),
		zap.Bool("changed", result.StatusChanged))

	return &result, nil
}

// fetchWithRetry wraps the provider fetch in explicit-arithmetic
// exponential backoff. Only transient provider errors are retried; a
// not-found or malformed response surfaces immediately. A timeout is a
// retryable error, never a payment outcome.
func (s *PaymentSyncService) fetchWithRetry(ctx context.Context, providerPaymentID string) (*provider.CanonicalPayment, error) {
	var lastErr error
	for attempt := 0; attempt < s.retry.MaxAttempts; attempt++ {
		if attempt > 0 {
			delay := s.retry.BaseDelay * (1 << (attempt - 1))
			if err := s.sleep(ctx, delay); err != nil {
				return nil, err
			}
		}

		canonical, err := s.provider.FetchPayment(ctx, providerPaymentID)
		if err == nil {
			return canonical, nil
		}
		lastErr = err

		var provErr *provider.ProviderError
		if !apperrors.As(err, &provErr) || !provErr.Retryable() {
			return nil, err
		}

		s.logger.Warn("Provider fetch failed, will retry",
			zap.String("provider_payment_id", providerPaymentID),
			zap.Int("attempt", attempt+1),
			zap.Int("max_attempts", s.retry.MaxAttempts),
			zap.Error(err))
	}
	return nil, lastErr
}

// resolveTenant determines which tenant owns the payment: a ledger row for
// the provider id, the subscription named by the canonical external
// reference, or a ledger row created under that reference before the
// provider assigned an id. No match means no state may change.
func (s *PaymentSyncService) resolveTenant(ctx context.Context, providerPaymentID string, canonical *provider.CanonicalPayment) (uuid.UUID, error) {
	existing, err := s.ledger.GetByProviderPaymentID(ctx, providerPaymentID)
	if err != nil {
		return uuid.Nil, err
	}
	if existing != nil {
		return existing.TenantID, nil
	}

	if ref := canonical.ExternalReference; ref != "" {
		if subID, ok := parseSubscriptionRef(ref); ok {
			sub, err := s.subscriptions.GetByID(ctx, subID)
			if err != nil {
				return uuid.Nil, err
			}
			if sub != nil {
				return sub.TenantID, nil
			}
		}

		byRef, err := s.ledger.GetByExternalReference(ctx, ref)
		if err != nil {
			return uuid.Nil, err
		}
		if byRef != nil {
			return byRef.TenantID, nil
		}
	}

	s.logger.Warn("Cannot resolve tenant for payment",
		zap.String("provider_payment_id", providerPaymentID),
		zap.String("external_reference", canonical.ExternalReference))
	return uuid.Nil, apperrors.NewAppError(apperrors.ErrNotFound,
		"no tenant resolvable for provider payment "+providerPaymentID, nil)
}

func parseSubscriptionRef(ref string) (uuid.UUID, bool) {
	if !strings.HasPrefix(ref, subscriptionRefPrefix) {
		return uuid.Nil, false
	}
	id, err := uuid.Parse(strings.TrimPrefix(ref, subscriptionRefPrefix))
	if err != nil {
		return uuid.Nil, false
	}
	return id, true
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
