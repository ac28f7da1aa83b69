package mercadopago

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"

	apperrors "github.com/gestorhub/billing/internal/platform/errors"

	"github.com/gestorhub/billing/internal/domain/provider"
)

func TestClient_FetchPayment(t *testing.T) {
	ctx := context.Background()

	t.Run("maps provider response to canonical payment", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/v1/payments/12345", r.URL.Path)
			assert.Equal(t, "Bearer test-token", r.Header.Get("Authorization"))
			w.Header().Set("Content-Type", "application/json")
			w.Write([]byte(`{
				"id": 12345,
				"status": "approved",
				"status_detail": "accredited",
				"external_reference": "subscription_8b1f3a2e-0000-0000-0000-000000000001",
				"transaction_amount": 49.90,
				"date_created": "2025-06-01T10:00:00.000-03:00",
				"date_approved": "2025-06-01T10:01:30.000-03:00",
				"date_last_updated": "2025-06-01T10:01:30.000-03:00"
			}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token", time.Second, zap.NewNop())
		canonical, err := client.FetchPayment(ctx, "12345")

		assert.NoError(t, err)
		assert.Equal(t, "12345", canonical.ProviderPaymentID)
		assert.Equal(t, "approved", canonical.Status)
		assert.Equal(t, "accredited", canonical.StatusDetail)
		assert.Equal(t, "subscription_8b1f3a2e-0000-0000-0000-000000000001", canonical.ExternalReference)
		assert.Equal(t, "49.9", canonical.TransactionAmount.String())
		// Provider timestamps carry a -03:00 offset and are normalized to UTC
		assert.Equal(t, time.Date(2025, 6, 1, 13, 0, 0, 0, time.UTC), canonical.DateCreated)
		if assert.NotNil(t, canonical.DateApproved) {
			assert.Equal(t, time.Date(2025, 6, 1, 13, 1, 30, 0, time.UTC), *canonical.DateApproved)
		}
	})

	t.Run("404 is a non-retryable not found", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
			w.Write([]byte(`{"message":"Payment not found"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token", time.Second, zap.NewNop())
		_, err := client.FetchPayment(ctx, "999")

		var provErr *provider.ProviderError
		if assert.True(t, apperrors.As(err, &provErr)) {
			assert.Equal(t, provider.ErrCodeNotFound, provErr.Code)
			assert.False(t, provErr.Retryable())
		}
	})

	t.Run("5xx is retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token", time.Second, zap.NewNop())
		_, err := client.FetchPayment(ctx, "12345")

		var provErr *provider.ProviderError
		if assert.True(t, apperrors.As(err, &provErr)) {
			assert.Equal(t, provider.ErrCodeAPIError, provErr.Code)
			assert.True(t, provErr.Retryable())
		}
	})

	t.Run("4xx is not retryable", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
			w.Write([]byte(`{"message":"invalid access token"}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token", time.Second, zap.NewNop())
		_, err := client.FetchPayment(ctx, "12345")

		var provErr *provider.ProviderError
		if assert.True(t, apperrors.As(err, &provErr)) {
			assert.False(t, provErr.Retryable())
			assert.Equal(t, "invalid access token", provErr.Message)
		}
	})

	t.Run("response without status is a parse error", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"id": 12345}`))
		}))
		defer server.Close()

		client := NewClient(server.URL, "test-token", time.Second, zap.NewNop())
		_, err := client.FetchPayment(ctx, "12345")

		var provErr *provider.ProviderError
		if assert.True(t, apperrors.As(err, &provErr)) {
			assert.Equal(t, provider.ErrCodeParse, provErr.Code)
			assert.False(t, provErr.Retryable())
		}
	})

	t.Run("unreachable provider is retryable", func(t *testing.T) {
		client := NewClient("http://127.0.0.1:1", "test-token", 200*time.Millisecond, zap.NewNop())
		_, err := client.FetchPayment(ctx, "12345")

		var provErr *provider.ProviderError
		if assert.True(t, apperrors.As(err, &provErr)) {
			assert.True(t, provErr.Retryable())
		}
	})
}
