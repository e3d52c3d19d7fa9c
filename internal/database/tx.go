package database

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// TransactionFunc runs inside a transaction.
type TransactionFunc func(tx *gorm.DB) error

// DefaultTxAttempts is how often Transact tries a write before giving up.
const DefaultTxAttempts = 3

// ErrRetriesExhausted wraps the last error once every attempt failed.
var ErrRetriesExhausted = errors.New("transaction retries exhausted")

// Transact runs fn in a transaction on db, retrying up to attempts times
// when the failure is a lock or connection problem: SQLite's "database is
// locked" while ingestion and a chat write at once, a Postgres
// serialization failure or a dropped connection. Other errors return
// immediately. Backoff doubles from 100ms.
func Transact(ctx context.Context, db *gorm.DB, attempts int, fn TransactionFunc) error {
	attempts = max(attempts, 1)
	var err error
	for i := range attempts {
		if err = db.WithContext(ctx).Transaction(fn); err == nil {
			return nil
		}
		if !isRetryableError(err) {
			return err
		}
		if i == attempts-1 {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(100 * time.Millisecond << i):
		}
	}
	return fmt.Errorf("%w after %d attempts: %w", ErrRetriesExhausted, attempts, err)
}

// WithTransaction commits when fn returns nil and rolls back otherwise.
func (pm *PoolManager) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	db, err := pm.open()
	if err != nil {
		return err
	}
	return db.WithContext(ctx).Transaction(fn)
}

// WithTransactionRetry is Transact on the pool's handle.
func (pm *PoolManager) WithTransactionRetry(ctx context.Context, attempts int, fn TransactionFunc) error {
	db, err := pm.open()
	if err != nil {
		return err
	}
	err = Transact(ctx, db, attempts, fn)
	if errors.Is(err, ErrRetriesExhausted) {
		pm.logger.Warn("giving up on transaction", zap.Int("attempts", attempts), zap.Error(err))
	}
	return err
}

func (pm *PoolManager) open() (*gorm.DB, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()
	if pm.closed {
		return nil, ErrPoolClosed
	}
	return pm.db, nil
}

var retryableFragments = []string{
	"deadlock",
	"serialization failure",
	"could not serialize",
	"40001",
	"database is locked",
	"sqlite_busy",
	"connection reset",
	"connection refused",
	"broken pipe",
	"lock wait timeout",
	"bad connection",
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, frag := range retryableFragments {
		if strings.Contains(msg, frag) {
			return true
		}
	}
	return false
}
