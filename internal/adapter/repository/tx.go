package repository

import (
	"context"

	"gorm.io/gorm"

	domainRepo "github.com/gestorhub/billing/internal/domain/repository"
)

type txKey struct{}

type txManager struct {
	db *gorm.DB
}

// NewTxManager creates a transaction manager that lets use cases run
// several repository calls in one database transaction.
func NewTxManager(db *gorm.DB) domainRepo.TxManager {
	return &txManager{db: db}
}

// Do runs fn inside a transaction. Repository methods called with the
// context passed to fn join that transaction.
func (m *txManager) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	return m.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(context.WithValue(ctx, txKey{}, tx))
	})
}

// conn returns the transaction bound to ctx, or the fallback connection.
func conn(ctx context.Context, fallback *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey{}).(*gorm.DB); ok {
		return tx
	}
	return fallback.WithContext(ctx)
}
