package model

import (
	"time"

	"github.com/google/uuid"
)

// WebhookEventStatus represents the processing state of a received webhook
type WebhookEventStatus string

const (
	WebhookEventStatusReceived  WebhookEventStatus = "received"
	WebhookEventStatusProcessed WebhookEventStatus = "processed"
	WebhookEventStatusIgnored   WebhookEventStatus = "ignored"
	WebhookEventStatusFailed    WebhookEventStatus = "failed"
)

// WebhookEvent is an audit record of every inbound provider notification,
// stored before any interpretation. The payload is never used for
// financial decisions; the canonical state always comes from a provider
// fetch.
type WebhookEvent struct {
	ID                uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	EventKind         string             `gorm:"size:50" json:"event_kind"`
	ProviderPaymentID *string            `gorm:"size:100;index" json:"provider_payment_id,omitempty"`
	Status            WebhookEventStatus `gorm:"size:20;not null;default:'received'" json:"status"`
	LastError         *string            `json:"last_error,omitempty"`
	Payload           JSONB              `gorm:"type:jsonb" json:"payload,omitempty"`
	CreatedAt         time.Time          `gorm:"default:now();index" json:"created_at"`
	UpdatedAt         time.Time          `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (WebhookEvent) TableName() string {
	return "webhook_events"
}
