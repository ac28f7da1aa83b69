package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	apperrors "github.com/gestorhub/billing/internal/platform/errors"

	"github.com/gestorhub/billing/internal/domain/model"
	"github.com/gestorhub/billing/internal/domain/provider"
)

// MockPaymentLedger is a mock implementation of PaymentLedger
type MockPaymentLedger struct {
	mock.Mock
}

func (m *MockPaymentLedger) Upsert(ctx context.Context, tenantID uuid.UUID, canonical *provider.CanonicalPayment, raw model.JSONB) (*model.Payment, string, error) {
	args := m.Called(ctx, tenantID, canonical, raw)
	if args.Get(0) == nil {
		return nil, args.String(1), args.Error(2)
	}
	return args.Get(0).(*model.Payment), args.String(1), args.Error(2)
}

func (m *MockPaymentLedger) GetByProviderPaymentID(ctx context.Context, providerPaymentID string) (*model.Payment, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentLedger) GetByExternalReference(ctx context.Context, externalReference string) (*model.Payment, error) {
	args := m.Called(ctx, externalReference)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Payment), args.Error(1)
}

func (m *MockPaymentLedger) ListPendingSince(ctx context.Context, cutoff time.Time) ([]*model.Payment, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*model.Payment), args.Error(1)
}

// MockSyncer is a mock implementation of PaymentSyncer
type MockSyncer struct {
	mock.Mock
}

func (m *MockSyncer) Sync(ctx context.Context, providerPaymentID string, rawPayload model.JSONB) (*SyncResult, error) {
	args := m.Called(ctx, providerPaymentID, rawPayload)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*SyncResult), args.Error(1)
}

func pendingPayment(providerID string) *model.Payment {
	p := &model.Payment{
		ID:     uuid.New(),
		Status: model.PaymentStatusPending,
	}
	if providerID != "" {
		p.ProviderPaymentID = &providerID
	}
	return p
}

func TestClampLookbackDays(t *testing.T) {
	assert.Equal(t, DefaultLookbackDays, ClampLookbackDays(0))
	assert.Equal(t, MinLookbackDays, ClampLookbackDays(-3))
	assert.Equal(t, 1, ClampLookbackDays(1))
	assert.Equal(t, 30, ClampLookbackDays(30))
	assert.Equal(t, MaxLookbackDays, ClampLookbackDays(90))
	assert.Equal(t, MaxLookbackDays, ClampLookbackDays(365))
}

func TestReconcileService_Reconcile(t *testing.T) {
	ctx := context.Background()
	fixedNow := time.Date(2025, 6, 20, 12, 0, 0, 0, time.UTC)

	newService := func(ledger *MockPaymentLedger, syncer *MockSyncer) *ReconcileService {
		svc := NewReconcileService(ledger, syncer, zap.NewNop())
		svc.now = func() time.Time { return fixedNow }
		return svc
	}

	t.Run("per-item failure does not abort the sweep", func(t *testing.T) {
		ledger := new(MockPaymentLedger)
		syncer := new(MockSyncer)
		svc := newService(ledger, syncer)

		payments := []*model.Payment{
			pendingPayment("100"),
			pendingPayment("200"),
			pendingPayment("300"),
			pendingPayment("400"),
			pendingPayment("500"),
		}
		cutoff := fixedNow.AddDate(0, 0, -7)
		ledger.On("ListPendingSince", ctx, cutoff).Return(payments, nil)

		for _, id := range []string{"100", "200", "400", "500"} {
			syncer.On("Sync", mock.Anything, id, model.JSONB(nil)).Return(&SyncResult{
				Payment:        &model.Payment{Status: model.PaymentStatusApproved},
				PreviousStatus: model.PaymentStatusPending,
				StatusChanged:  true,
			}, nil)
		}
		syncer.On("Sync", mock.Anything, "300", model.JSONB(nil)).
			Return(nil, apperrors.NewAppError(apperrors.ErrTimeout, "provider unreachable", nil))

		report, err := svc.Reconcile(ctx, 0)

		assert.NoError(t, err)
		assert.Equal(t, DefaultLookbackDays, report.LookbackDays)
		assert.Equal(t, 5, report.Analyzed)
		assert.Equal(t, 4, report.Updated)
		assert.Equal(t, 1, report.Failed)
		assert.Len(t, report.Items, 5)
		assert.Equal(t, "300", report.Items[2].ProviderPaymentID)
		assert.NotEmpty(t, report.Items[2].Error)
		assert.False(t, report.Items[2].Updated)
		syncer.AssertExpectations(t)
	})

	t.Run("payments without provider id are reported, not fetched", func(t *testing.T) {
		ledger := new(MockPaymentLedger)
		syncer := new(MockSyncer)
		svc := newService(ledger, syncer)

		payments := []*model.Payment{pendingPayment("")}
		cutoff := fixedNow.AddDate(0, 0, -30)
		ledger.On("ListPendingSince", ctx, cutoff).Return(payments, nil)

		report, err := svc.Reconcile(ctx, 30)

		assert.NoError(t, err)
		assert.Equal(t, 1, report.Analyzed)
		assert.Equal(t, 1, report.Failed)
		assert.Equal(t, 0, report.Updated)
		syncer.AssertNotCalled(t, "Sync", mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("unchanged payments are analyzed but not counted as updated", func(t *testing.T) {
		ledger := new(MockPaymentLedger)
		syncer := new(MockSyncer)
		svc := newService(ledger, syncer)

		payments := []*model.Payment{pendingPayment("700")}
		cutoff := fixedNow.AddDate(0, 0, -7)
		ledger.On("ListPendingSince", ctx, cutoff).Return(payments, nil)
		syncer.On("Sync", mock.Anything, "700", model.JSONB(nil)).Return(&SyncResult{
			Payment:        &model.Payment{Status: model.PaymentStatusPending},
			PreviousStatus: model.PaymentStatusPending,
			StatusChanged:  false,
		}, nil)

		report, err := svc.Reconcile(ctx, 7)

		assert.NoError(t, err)
		assert.Equal(t, 1, report.Analyzed)
		assert.Equal(t, 0, report.Updated)
		assert.Equal(t, 0, report.Failed)
		assert.False(t, report.Items[0].Updated)
	})

	t.Run("lookback window above the cap is clamped", func(t *testing.T) {
		ledger := new(MockPaymentLedger)
		syncer := new(MockSyncer)
		svc := newService(ledger, syncer)

		cutoff := fixedNow.AddDate(0, 0, -MaxLookbackDays)
		ledger.On("ListPendingSince", ctx, cutoff).Return([]*model.Payment{}, nil)

		report, err := svc.Reconcile(ctx, 365)

		assert.NoError(t, err)
		assert.Equal(t, MaxLookbackDays, report.LookbackDays)
		ledger.AssertExpectations(t)
	})
}
