package model

import (
	"database/sql/driver"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// SubscriptionStatus represents the status of a subscription
type SubscriptionStatus string

const (
	SubscriptionStatusTrial          SubscriptionStatus = "trial"
	SubscriptionStatusPendingPayment SubscriptionStatus = "pending_payment"
	SubscriptionStatusActive         SubscriptionStatus = "active"
	SubscriptionStatusSuspended      SubscriptionStatus = "suspended"
	SubscriptionStatusCancelled      SubscriptionStatus = "cancelled"
)

// Scan implements sql.Scanner interface
func (s *SubscriptionStatus) Scan(src interface{}) error {
	switch v := src.(type) {
	case string:
		*s = SubscriptionStatus(v)
	case []byte:
		*s = SubscriptionStatus(v)
	default:
		*s = SubscriptionStatusCancelled
	}
	return nil
}

// Value implements driver.Valuer interface
func (s SubscriptionStatus) Value() (driver.Value, error) {
	return string(s), nil
}

// Subscription represents a tenant's subscription.
//
// At most one non-cancelled subscription exists per tenant (partial unique
// index); trial_ends_at is only meaningful while on trial; next_charge_at
// is set only while active.
type Subscription struct {
	ID           uuid.UUID          `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	TenantID     uuid.UUID          `gorm:"type:uuid;not null;index" json:"tenant_id"`
	PlanID       *uuid.UUID         `gorm:"type:uuid;index" json:"plan_id,omitempty"`
	Status       SubscriptionStatus `gorm:"type:subscription_status;not null;default:'trial'" json:"status"`
	Amount       decimal.Decimal    `gorm:"type:decimal(12,2);not null;default:0" json:"amount"`
	StartedAt    *time.Time         `json:"started_at,omitempty"`
	TrialEndsAt  *time.Time         `json:"trial_ends_at,omitempty"`
	NextChargeAt *time.Time         `json:"next_charge_at,omitempty"`
	EndedAt      *time.Time         `json:"ended_at,omitempty"`
	CreatedAt    time.Time          `gorm:"default:now()" json:"created_at"`
	UpdatedAt    time.Time          `gorm:"default:now()" json:"updated_at"`

	// Relations
	Plan *Plan `gorm:"foreignKey:PlanID" json:"plan,omitempty"`
}

// JSONB represents a JSONB database type
type JSONB map[string]interface{}

// Value implements driver.Valuer interface
func (j JSONB) Value() (driver.Value, error) {
	if j == nil {
		return nil, nil
	}
	return json.Marshal(j)
}

// Scan implements sql.Scanner interface
func (j *JSONB) Scan(src interface{}) error {
	if src == nil {
		*j = nil
		return nil
	}

	switch v := src.(type) {
	case []byte:
		return json.Unmarshal(v, j)
	case string:
		return json.Unmarshal([]byte(v), j)
	default:
		*j = make(JSONB)
		return nil
	}
}

// TableName specifies the table name for GORM
func (Subscription) TableName() string {
	return "subscriptions"
}
