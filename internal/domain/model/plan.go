package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Plan is a catalog entry. Read-only from this service's perspective;
// plan CRUD lives elsewhere.
type Plan struct {
	ID        uuid.UUID       `gorm:"type:uuid;primaryKey;default:gen_random_uuid()" json:"id"`
	Name      string          `gorm:"size:100;not null" json:"name"`
	Price     decimal.Decimal `gorm:"type:decimal(12,2);not null" json:"price"`
	Active    bool            `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time       `gorm:"default:now()" json:"created_at"`
	UpdatedAt time.Time       `gorm:"default:now()" json:"updated_at"`
}

// TableName specifies the table name for GORM
func (Plan) TableName() string {
	return "plans"
}
