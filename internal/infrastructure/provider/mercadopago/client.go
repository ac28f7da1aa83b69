// Package mercadopago implements the payment provider boundary against the
// Mercado Pago REST API.
package mercadopago

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/gestorhub/billing/internal/domain/provider"
)

const (
	defaultBaseURL = "https://api.mercadopago.com"
	apiVersion     = "v1"
)

// Client fetches canonical payment state from Mercado Pago. It performs no
// retries; callers own the retry policy.
type Client struct {
	baseURL     string
	accessToken string
	httpClient  *http.Client
	logger      *zap.Logger
}

// NewClient creates a new Mercado Pago client. baseURL may be empty to use
// the production API.
func NewClient(baseURL, accessToken string, timeout time.Duration, logger *zap.Logger) *Client {
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:     baseURL,
		accessToken: accessToken,
		httpClient:  &http.Client{Timeout: timeout},
		logger:      logger,
	}
}

// GetProviderName returns the provider name
func (c *Client) GetProviderName() string {
	return "mercadopago"
}

// paymentResponse mirrors the fields of GET /v1/payments/{id} this service
// consumes.
type paymentResponse struct {
	ID                json.Number     `json:"id"`
	Status            string          `json:"status"`
	StatusDetail      string          `json:"status_detail"`
	ExternalReference string          `json:"external_reference"`
	TransactionAmount decimal.Decimal `json:"transaction_amount"`
	DateCreated       string          `json:"date_created"`
	DateApproved      string          `json:"date_approved"`
	DateLastUpdated   string          `json:"date_last_updated"`
}

// FetchPayment retrieves the provider's authoritative view of a payment.
func (c *Client) FetchPayment(ctx context.Context, providerPaymentID string) (*provider.CanonicalPayment, error) {
	url := fmt.Sprintf("%s/%s/payments/%s", c.baseURL, apiVersion, providerPaymentID)

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeRequest,
			Message: "Failed to create request",
			Details: err.Error(),
		}
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.accessToken)
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		c.logger.Error("MercadoPago: payment fetch request failed",
			zap.String("payment_id", providerPaymentID),
			zap.Error(err))
		return nil, &provider.ProviderError{
			Code:      provider.ErrCodeAPIError,
			Message:   "Mercado Pago API request failed",
			Details:   err.Error(),
			Transient: true,
		}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &provider.ProviderError{
			Code:      provider.ErrCodeAPIError,
			Message:   "Failed to read response",
			Details:   err.Error(),
			Transient: true,
		}
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeNotFound,
			Message: "Payment not found at provider",
			Details: providerPaymentID,
		}
	}

	if resp.StatusCode != http.StatusOK {
		var errResp map[string]interface{}
		json.Unmarshal(respBody, &errResp)
		message, _ := errResp["message"].(string)
		if message == "" {
			message = "Mercado Pago API returned an error"
		}

		c.logger.Error("MercadoPago: payment fetch failed",
			zap.String("payment_id", providerPaymentID),
			zap.Int("status_code", resp.StatusCode),
			zap.String("response", string(respBody)))

		return nil, &provider.ProviderError{
			Code:      provider.ErrCodeAPIError,
			Message:   message,
			Details:   string(respBody),
			Transient: resp.StatusCode >= http.StatusInternalServerError,
		}
	}

	var result paymentResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeParse,
			Message: "Failed to parse response",
			Details: err.Error(),
		}
	}
	if result.Status == "" {
		return nil, &provider.ProviderError{
			Code:    provider.ErrCodeParse,
			Message: "Provider response carries no status",
			Details: string(respBody),
		}
	}

	canonical := &provider.CanonicalPayment{
		ProviderPaymentID: providerPaymentID,
		Status:            result.Status,
		StatusDetail:      result.StatusDetail,
		ExternalReference: result.ExternalReference,
		TransactionAmount: result.TransactionAmount,
		DateCreated:       parseProviderTime(result.DateCreated),
		DateLastUpdated:   parseProviderTime(result.DateLastUpdated),
	}
	if approved := parseProviderTime(result.DateApproved); !approved.IsZero() {
		canonical.DateApproved = &approved
	}

	c.logger.Debug("MercadoPago: payment fetched",
		zap.String("payment_id", providerPaymentID),
		zap.String("status", canonical.Status),
		zap.String("status_detail", canonical.StatusDetail))

	return canonical, nil
}

func parseProviderTime(value string) time.Time {
	if value == "" {
		return time.Time{}
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05.000-07:00"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
