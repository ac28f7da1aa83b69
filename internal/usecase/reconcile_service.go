package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/gestorhub/billing/internal/domain/model"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

// Lookback bounds for the reconciliation sweep, in days.
const (
	MinLookbackDays     = 1
	MaxLookbackDays     = 90
	DefaultLookbackDays = 7
)

// PaymentSyncer runs the apply-canonical-payment-state pipeline for one
// provider payment id.
type PaymentSyncer interface {
	Sync(ctx context.Context, providerPaymentID string, rawPayload model.JSONB) (*SyncResult, error)
}

// ReconcileItem is the per-payment outcome of a sweep.
type ReconcileItem struct {
	PaymentID         string `json:"id"`
	ProviderPaymentID string `json:"payment_id,omitempty"`
	PreviousStatus    string `json:"previous_status"`
	NewStatus         string `json:"new_status,omitempty"`
	Updated           bool   `json:"updated"`
	Error             string `json:"error,omitempty"`
}

// ReconcileReport summarizes a sweep.
type ReconcileReport struct {
	LookbackDays int             `json:"lookback_days"`
	Analyzed     int             `json:"analyzed"`
	Updated      int             `json:"updated"`
	Failed       int             `json:"failed"`
	Items        []ReconcileItem `json:"items"`
}

// ReconcileService heals missed or delayed webhooks: it re-fetches the
// canonical state of every payment still pending inside a lookback window
// and replays the same pipeline the webhook path uses.
type ReconcileService struct {
	ledger domainRepo.PaymentLedger
	syncer PaymentSyncer
	logger *zap.Logger
	now    func() time.Time
}

// NewReconcileService creates a new reconcile service.
func NewReconcileService(ledger domainRepo.PaymentLedger, syncer PaymentSyncer, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		ledger: ledger,
		syncer: syncer,
		logger: logger,
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// ClampLookbackDays bounds the requested window to [1, 90] days, falling
// back to the default for non-positive requests.
func ClampLookbackDays(days int) int {
	if days == 0 {
		return DefaultLookbackDays
	}
	if days < MinLookbackDays {
		return MinLookbackDays
	}
	if days > MaxLookbackDays {
		return MaxLookbackDays
	}
	return days
}

// Reconcile sweeps pending payments created within the lookback window.
// Per-item failures are recorded in the report and never abort the sweep;
// one unreachable payment must not block reconciliation of the rest.
func (s *ReconcileService) Reconcile(ctx context.Context, lookbackDays int) (*ReconcileReport, error) {
	lookbackDays = ClampLookbackDays(lookbackDays)
	cutoff := s.now().AddDate(0, 0, -lookbackDays)

	pending, err := s.ledger.ListPendingSince(ctx, cutoff)
	if err != nil {
		return nil, err
	}

	report := &ReconcileReport{
		LookbackDays: lookbackDays,
		Analyzed:     len(pending),
		Items:        make([]ReconcileItem, 0, len(pending)),
	}

	s.logger.Info("Reconciliation sweep started",
		zap.Int("lookback_days", lookbackDays),
		zap.Int("pending", len(pending)))

	for _, payment := range pending {
		item := ReconcileItem{
			PaymentID:      payment.ID.String(),
			PreviousStatus: payment.Status,
		}

		if payment.ProviderPaymentID == nil || *payment.ProviderPaymentID == "" {
			// Rows the charge-generation step created before the provider
			// assigned an id; nothing to fetch yet.
			item.Error = "payment has no provider payment id"
			report.Failed++
			report.Items = append(report.Items, item)
			continue
		}
		item.ProviderPaymentID = *payment.ProviderPaymentID

		result, err := s.syncer.Sync(ctx, *payment.ProviderPaymentID, nil)
		if err != nil {
			item.Error = err.Error()
			report.Failed++
			report.Items = append(report.Items, item)
			s.logger.Warn("Reconciliation item failed",
				zap.String("payment_id", payment.ID.String()),
				zap.String("provider_payment_id", *payment.ProviderPaymentID),
				zap.Error(err))
			continue
		}

		if result.StatusChanged {
			item.NewStatus = result.Payment.Status
			item.Updated = true
			report.Updated++
		}
		report.Items = append(report.Items, item)
	}

	s.logger.Info("Reconciliation sweep finished",
		zap.Int("analyzed", report.Analyzed),
		zap.Int("updated", report.Updated),
		zap.Int("failed", report.Failed))

	return report, nil
}
