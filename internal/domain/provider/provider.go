package provider

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// PaymentProvider is the outbound boundary to the external payment
// processor. It is a pure I/O wrapper: no retries, no interpretation of
// failures. Retry policy belongs to callers.
type PaymentProvider interface {
	// FetchPayment retrieves the provider's authoritative view of a
	// payment. This is the only source of truth ever used to decide a
	// financial state transition.
	FetchPayment(ctx context.Context, providerPaymentID string) (*CanonicalPayment, error)

	// GetProviderName returns the provider name
	GetProviderName() string
}

// CanonicalPayment is the provider's authoritative payment snapshot,
// obtained only via a direct fetch-by-id call, never from an inbound
// webhook body.
type CanonicalPayment struct {
	ProviderPaymentID string          `json:"provider_payment_id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail,omitempty"`
	ExternalReference string          `json:"external_reference,omitempty"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	DateCreated       time.Time       `json:"date_created"`
	DateApproved      *time.Time      `json:"date_approved,omitempty"`
	DateLastUpdated   time.Time       `json:"date_last_updated"`
}

// Error codes reported by provider implementations.
const (
	ErrCodeNotFound = "NOT_FOUND"
	ErrCodeAPIError = "API_ERROR"
	ErrCodeParse    = "PARSE_ERROR"
	ErrCodeRequest  = "REQUEST_ERROR"
)

// ProviderError carries the provider-level failure detail. Transient
// errors (network, timeout, provider 5xx) are retryable; a not-found or a
// malformed response is not.
type ProviderError struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	Details   string `json:"details,omitempty"`
	Transient bool   `json:"-"`
}

func (e *ProviderError) Error() string {
	if e.Details != "" {
		return e.Message + ": " + e.Details
	}
	return e.Message
}

// Retryable reports whether the call may succeed if repeated.
func (e *ProviderError) Retryable() bool {
	return e.Transient
}
