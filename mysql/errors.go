package mysql

import (
	"context"
	"errors"
	"fmt"

	driver "github.com/go-sql-driver/mysql"

	smsqueue "github.com/velmie/smsqueue"
)

const (
	errLockWaitTimeout = 1205
	errDeadlock        = 1213
)

var (
	// ErrDBRequired is returned when a nil *sql.DB is provided.
	ErrDBRequired = errors.New("smsqueue mysql: db is required")
	// ErrExecutorRequired is returned when enqueue is called with a nil executor.
	ErrExecutorRequired = errors.New("smsqueue mysql: executor is required")
	// ErrTableNameRequired is returned when the table name is empty.
	ErrTableNameRequired = errors.New("smsqueue mysql: table name is required")
	// ErrInvalidTableName is returned when the table name has disallowed characters.
	ErrInvalidTableName = errors.New("smsqueue mysql: invalid table name")
	// ErrCleanupBeforeRequired is returned when cleanup cutoff is missing.
	ErrCleanupBeforeRequired = errors.New("smsqueue mysql: cleanup before time is required")
	// ErrCleanupLimitInvalid is returned when cleanup limit is negative.
	ErrCleanupLimitInvalid = errors.New("smsqueue mysql: cleanup limit must be non-negative")
	// ErrCleanupRetentionInvalid is returned when cleanup retention is not positive.
	ErrCleanupRetentionInvalid = errors.New("smsqueue mysql: cleanup retention must be positive")
)

// isContention reports whether err is a lock wait timeout or a deadlock.
func isContention(err error) bool {
	var myErr *driver.MySQLError
	if !errors.As(err, &myErr) {
		return false
	}

	return myErr.Number == errLockWaitTimeout || myErr.Number == errDeadlock
}

func (s *Store) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isContention(err) {
		s.cfg.Logger.Warn("smsqueue mysql lock contention", "op", op, "err", err)
	}

	return fmt.Errorf("%w: mysql %s failed: %w", smsqueue.ErrStorage, op, err)
}
