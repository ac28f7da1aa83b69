package usecase

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.uber.org/zap"

	"github.com/gestorhub/billing/internal/domain/model"
	"github.com/gestorhub/billing/internal/domain/provider"
)

// MockPaymentProvider is a mock implementation of PaymentProvider
type MockPaymentProvider struct {
	mock.Mock
}

func (m *MockPaymentProvider) FetchPayment(ctx context.Context, providerPaymentID string) (*provider.CanonicalPayment, error) {
	args := m.Called(ctx, providerPaymentID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*provider.CanonicalPayment), args.Error(1)
}

func (m *MockPaymentProvider) GetProviderName() string {
	return "mock"
}

// MockTransitioner is a mock implementation of SubscriptionTransitioner
type MockTransitioner struct {
	mock.Mock
}

func (m *MockTransitioner) ApplyPaymentOutcome(ctx context.Context, tenantID uuid.UUID, payment *model.Payment, previousStatus string) error {
	args := m.Called(ctx, tenantID, payment, previousStatus)
	return args.Error(0)
}

// passthroughTx runs the function without a real transaction.
type passthroughTx struct{}

func (passthroughTx) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func newTestSyncService(prov *MockPaymentProvider, ledger *MockPaymentLedger, subs *MockSubscriptionRepository, trans *MockTransitioner, retry RetryConfig) *PaymentSyncService {
	svc := NewPaymentSyncService(prov, ledger, subs, trans, passthroughTx{}, retry, zap.NewNop())
	svc.sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return svc
}

func TestPaymentSyncService_Sync(t *testing.T) {
	ctx := context.Background()
	tenantID := uuid.New()
	providerID := "12345"
	amount := decimal.NewFromFloat(49.90)
	lastUpdated := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)

	canonical := &provider.CanonicalPayment{
		ProviderPaymentID: providerID,
		Status:            model.PaymentStatusApproved,
		TransactionAmount: amount,
		DateLastUpdated:   lastUpdated,
	}

	t.Run("upsert and transition run in one pass", func(t *testing.T) {
		prov := new(MockPaymentProvider)
		ledger := new(MockPaymentLedger)
		subs := new(MockSubscriptionRepository)
		trans := new(MockTransitioner)
		svc := newTestSyncService(prov, ledger, subs, trans, RetryConfig{MaxAttempts: 1})

		prov.On("FetchPayment", ctx, providerID).Return(canonical, nil)

		existing := &model.Payment{ID: uuid.New(), TenantID: tenantID, ProviderPaymentID: &providerID}
		ledger.On("GetByProviderPaymentID", ctx, providerID).Return(existing, nil)

		updated := &model.Payment{ID: existing.ID, TenantID: tenantID, Status: model.PaymentStatusApproved, Amount: amount}
		ledger.On("Upsert", ctx, tenantID, canonical, model.JSONB(nil)).
			Return(updated, model.PaymentStatusPending, nil)
		trans.On("ApplyPaymentOutcome", ctx, tenantID, updated, model.PaymentStatusPending).Return(nil)

		result, err := svc.Sync(ctx, providerID, nil)

		assert.NoError(t, err)
		assert.True(t, result.StatusChanged)
		assert.Equal(t, model.PaymentStatusPending, result.PreviousStatus)
		assert.Equal(t, model.PaymentStatusApproved, result.Payment.Status)
		trans.AssertExpectations(t)
	})

	t.Run("transient provider errors are retried", func(t *testing.T) {
		prov := new(MockPaymentProvider)
		ledger := new(MockPaymentLedger)
		subs := new(MockSubscriptionRepository)
		trans := new(MockTransitioner)
		svc := newTestSyncService(prov, ledger, subs, trans, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})

		transient := &provider.ProviderError{Code: provider.ErrCodeAPIError, Message: "upstream 502", Transient: true}
		prov.On("FetchPayment", ctx, providerID).Return(nil, transient).Twice()
		prov.On("FetchPayment", ctx, providerID).Return(canonical, nil).Once()

		existing := &model.Payment{ID: uuid.New(), TenantID: tenantID}
		ledger.On("GetByProviderPaymentID", ctx, providerID).Return(existing, nil)
		ledger.On("Upsert", ctx, tenantID, canonical, model.JSONB(nil)).
			Return(&model.Payment{Status: model.PaymentStatusApproved}, model.PaymentStatusPending, nil)
		trans.On("ApplyPaymentOutcome", mock.Anything, tenantID, mock.Anything, model.PaymentStatusPending).Return(nil)

		_, err := svc.Sync(ctx, providerID, nil)

		assert.NoError(t, err)
		prov.AssertNumberOfCalls(t, "FetchPayment", 3)
	})

	t.Run("not found is never retried", func(t *testing.T) {
		prov := new(MockPaymentProvider)
		ledger := new(MockPaymentLedger)
		subs := new(MockSubscriptionRepository)
		trans := new(MockTransitioner)
		svc := newTestSyncService(prov, ledger, subs, trans, RetryConfig{MaxAttempts: 3, BaseDelay: time.Millisecond})

		notFound := &provider.ProviderError{Code: provider.ErrCodeNotFound, Message: "payment not found"}
		prov.On("FetchPayment", ctx, providerID).Return(nil, notFound)

		_, err := svc.Sync(ctx, providerID, nil)

		assert.Error(t, err)
		prov.AssertNumberOfCalls(t, "FetchPayment", 1)
		ledger.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("tenant resolved from subscription external reference", func(t *testing.T) {
		prov := new(MockPaymentProvider)
		ledger := new(MockPaymentLedger)
		subs := new(MockSubscriptionRepository)
		trans := new(MockTransitioner)
		svc := newTestSyncService(prov, ledger, subs, trans, RetryConfig{MaxAttempts: 1})

		subID := uuid.New()
		withRef := &provider.CanonicalPayment{
			ProviderPaymentID: providerID,
			Status:            model.PaymentStatusApproved,
			ExternalReference: "subscription_" + subID.String(),
			TransactionAmount: amount,
			DateLastUpdated:   lastUpdated,
		}
		prov.On("FetchPayment", ctx, providerID).Return(withRef, nil)
		ledger.On("GetByProviderPaymentID", ctx, providerID).Return(nil, nil)
		subs.On("GetByID", ctx, subID).Return(&model.Subscription{ID: subID, TenantID: tenantID}, nil)

		ledger.On("Upsert", ctx, tenantID, withRef, model.JSONB(nil)).
			Return(&model.Payment{TenantID: tenantID, Status: model.PaymentStatusApproved}, "", nil)
		trans.On("ApplyPaymentOutcome", mock.Anything, tenantID, mock.Anything, "").Return(nil)

		_, err := svc.Sync(ctx, providerID, nil)

		assert.NoError(t, err)
		subs.AssertExpectations(t)
	})

	t.Run("unresolvable tenant changes nothing", func(t *testing.T) {
		prov := new(MockPaymentProvider)
		ledger := new(MockPaymentLedger)
		subs := new(MockSubscriptionRepository)
		trans := new(MockTransitioner)
		svc := newTestSyncService(prov, ledger, subs, trans, RetryConfig{MaxAttempts: 1})

		orphan := &provider.CanonicalPayment{
			ProviderPaymentID: providerID,
			Status:            model.PaymentStatusApproved,
			ExternalReference: "order_999",
			TransactionAmount: amount,
			DateLastUpdated:   lastUpdated,
		}
		prov.On("FetchPayment", ctx, providerID).Return(orphan, nil)
		ledger.On("GetByProviderPaymentID", ctx, providerID).Return(nil, nil)
		ledger.On("GetByExternalReference", ctx, "order_999").Return(nil, nil)

		_, err := svc.Sync(ctx, providerID, nil)

		assert.Error(t, err)
		ledger.AssertNotCalled(t, "Upsert", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		trans.AssertNotCalled(t, "ApplyPaymentOutcome", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})
}
