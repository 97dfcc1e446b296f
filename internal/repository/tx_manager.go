package repository

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type contextKey string

const txKey contextKey = "gorm_tx"

// TransactionManager manages database transactions via context injection.
// Every engine mutation (job creation, propagation, completion, approval)
// runs inside one of these so state transition + audit row commit together.
type TransactionManager interface {
	RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error
}

type transactionManager struct {
	db *gorm.DB
}

func NewTransactionManager(db *gorm.DB) TransactionManager {
	return &transactionManager{db: db}
}

func (t *transactionManager) RunInTx(ctx context.Context, fn func(txCtx context.Context) error) error {
	return t.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		txCtx := context.WithValue(ctx, txKey, tx)
		return fn(txCtx)
	})
}

// GetDB extracts the transaction DB from context if present, otherwise returns root DB.
func GetDB(ctx context.Context, rootDB *gorm.DB) *gorm.DB {
	if tx, ok := ctx.Value(txKey).(*gorm.DB); ok {
		return tx.WithContext(ctx)
	}
	return rootDB.WithContext(ctx)
}

// withLock adds SELECT ... FOR UPDATE on postgres. The sqlite test driver
// rejects the clause and serializes writes anyway, so it is skipped there.
func withLock(db *gorm.DB) *gorm.DB {
	if db.Dialector.Name() == "postgres" {
		return db.Clauses(clause.Locking{Strength: "UPDATE"})
	}
	return db
}

// AcquireAdvisoryLock takes a transaction-scoped advisory lock keyed by an
// arbitrary string. No-op outside postgres.
func AcquireAdvisoryLock(ctx context.Context, db *gorm.DB, key string) error {
	d := GetDB(ctx, db)
	if d.Dialector.Name() != "postgres" {
		return nil
	}
	return d.Exec("SELECT pg_advisory_xact_lock(hashtext(?))", key).Error
}
