package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"sync"

	"gorm.io/gorm"
)

// SweepLockKey is the advisory lock key guarding the worker sweeps.
const SweepLockKey int64 = 42_001

// AdvisoryLock elects a single sweeper across worker processes using a
// session-level pg_try_advisory_lock held on a pinned connection.
type AdvisoryLock struct {
	db  *gorm.DB
	key int64

	mu   sync.Mutex
	conn *sql.Conn
}

func NewAdvisoryLock(db *gorm.DB, key int64) *AdvisoryLock {
	return &AdvisoryLock{db: db, key: key}
}

// TryLead reports whether this process holds the lock, acquiring it if free.
// Dialects without advisory locks (sqlite in tests) always lead.
func (l *AdvisoryLock) TryLead(ctx context.Context) (bool, error) {
	if l.db.Dialector.Name() != "postgres" {
		return true, nil
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn != nil {
		if err := l.conn.PingContext(ctx); err == nil {
			return true, nil
		}
		// The session died and took the lock with it.
		l.conn.Close()
		l.conn = nil
	}

	sqlDB, err := l.db.DB()
	if err != nil {
		return false, fmt.Errorf("advisory lock: %w", err)
	}

	conn, err := sqlDB.Conn(ctx)
	if err != nil {
		return false, fmt.Errorf("advisory lock conn: %w", err)
	}

	var ok bool
	if err := conn.QueryRowContext(ctx, "SELECT pg_try_advisory_lock($1)", l.key).Scan(&ok); err != nil {
		conn.Close()
		return false, fmt.Errorf("advisory lock: %w", err)
	}
	if !ok {
		conn.Close()
		return false, nil
	}

	l.conn = conn
	return true, nil
}

// Release gives up leadership.
func (l *AdvisoryLock) Release(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.conn == nil {
		return nil
	}
	_, err := l.conn.ExecContext(ctx, "SELECT pg_advisory_unlock($1)", l.key)
	l.conn.Close()
	l.conn = nil
	if err != nil {
		return fmt.Errorf("advisory unlock: %w", err)
	}
	return nil
}
