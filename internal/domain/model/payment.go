package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Recognized payment statuses. The provider may report other intermediate
// values; they are stored as-is and treated as non-terminal.
const (
	PaymentStatusPending   = "pending"
	PaymentStatusApproved  = "approved"
	PaymentStatusRejected  = "rejected"
	PaymentStatusCancelled = "cancelled"
)

// IsTerminalPaymentStatus reports whether no further provider-side change
// is expected for the given status.
func IsTerminalPaymentStatus(status string) bool {
	switch status {
	case PaymentStatusApproved, PaymentStatusRejected, PaymentStatusCancelled:
		return true
	}
	return false
}

// Payment represents a charge attempt against a tenant.
//
// provider_payment_id is the natural key for idempotent upserts: two
// ingestion events referencing the same provider id must converge to one
// row. It is nullable until the provider assigns one, then immutable.
type Payment struct {
	ID                uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID          uuid.UUID       `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PlanID            *uuid.UUID      `gorm:"type:uuid" json:"plan_id,omitempty"`
	ProviderPaymentID *string         `gorm:"uniqueIndex;size:100" json:"provider_payment_id,omitempty"`
	ExternalReference *string         `gorm:"index;size:100" json:"external_reference,omitempty"`
	Status            string          `gorm:"size:50;not null;default:'pending'" json:"status"`
	StatusDetail      *string         `gorm:"size:100" json:"status_detail,omitempty"`
	Amount            decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"amount"`
	WebhookReceived   bool            `gorm:"not null;default:false" json:"webhook_received"`
	RawWebhookPayload JSONB           `gorm:"type:jsonb" json:"raw_webhook_payload,omitempty"`
	PaidAt            *time.Time      `json:"paid_at,omitempty"`
	CreatedAt         time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt         time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Payment) TableName() string {
	return "payments"
}
