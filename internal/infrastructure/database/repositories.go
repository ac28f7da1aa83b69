package database

import (
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/gestorhub/billing/internal/adapter/repository"
	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

// Repositories holds all repository instances
type Repositories struct {
	Tx           domainRepo.TxManager
	Ledger       domainRepo.PaymentLedger
	Subscription domainRepo.SubscriptionRepository
	Plan         domainRepo.PlanRepository
	WebhookEvent domainRepo.WebhookEventRepository
}

// NewRepositories creates new repository instances with database connection
func NewRepositories(db *gorm.DB, logger *zap.Logger) *Repositories {
	return &Repositories{
		Tx:           repository.NewTxManager(db),
		Ledger:       repository.NewPaymentLedger(db, logger),
		Subscription: repository.NewSubscriptionRepository(db, logger),
		Plan:         repository.NewPlanRepository(db, logger),
		WebhookEvent: repository.NewWebhookEventRepository(db, logger),
	}
}
