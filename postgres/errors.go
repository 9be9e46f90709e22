package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5/pgconn"

	smsqueue "github.com/velmie/smsqueue"
)

const (
	codeSerializationFailure = "40001"
	codeDeadlockDetected     = "40P01"
	codeLockNotAvailable     = "55P03"
)

var (
	// ErrPoolRequired is returned when a nil pool is provided.
	ErrPoolRequired = errors.New("smsqueue postgres: pool is required")
	// ErrExecutorRequired is returned when enqueue is called with a nil executor.
	ErrExecutorRequired = errors.New("smsqueue postgres: executor is required")
	// ErrTableNameRequired is returned when the table name is empty.
	ErrTableNameRequired = errors.New("smsqueue postgres: table name is required")
	// ErrInvalidTableName is returned when the table name has disallowed characters.
	ErrInvalidTableName = errors.New("smsqueue postgres: invalid table name")
	// ErrDSNRequired is returned when NewPool is called without a connection string.
	ErrDSNRequired = errors.New("smsqueue postgres: dsn is required")
)

func isContention(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}

	switch pgErr.Code {
	case codeSerializationFailure, codeDeadlockDetected, codeLockNotAvailable:
		return true
	default:
		return false
	}
}

func (s *Store) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	if isContention(err) {
		s.cfg.Logger.Warn("smsqueue postgres lock contention", "op", op, "err", err)
	}

	return fmt.Errorf("%w: postgres %s failed: %w", smsqueue.ErrStorage, op, err)
}
