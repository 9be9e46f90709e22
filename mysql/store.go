package mysql

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	smsqueue "github.com/velmie/smsqueue"
)

// Executor allows enqueuing within an existing transaction.
type Executor interface {
	// ExecContext executes a statement with the provided context.
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// Store implements a MySQL-backed smsqueue.Store using SKIP LOCKED claims.
type Store struct {
	db        *sql.DB
	cfg       Config
	queries   queries
	table     string
	authTable string
}

var _ smsqueue.Store = (*Store)(nil)

// NewStore constructs a MySQL store with validated configuration.
func NewStore(db *sql.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}
	cfg = cfg.withDefaults()

	table, err := sanitizeTableName(cfg.Table)
	if err != nil {
		return nil, err
	}
	authTable, err := sanitizeTableName(cfg.AuthTable)
	if err != nil {
		return nil, err
	}

	return &Store{
		db:        db,
		cfg:       cfg,
		queries:   newQueries(table, authTable),
		table:     table,
		authTable: authTable,
	}, nil
}

// MustNewStore constructs a MySQL store or panics on error.
func MustNewStore(db *sql.DB, opts ...Option) *Store {
	store, err := NewStore(db, opts...)
	if err != nil {
		panic(err)
	}

	return store
}

// Migrate creates the message and authorization tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	schema, err := Schema(s.table)
	if err != nil {
		return err
	}
	authSchema, err := AuthorizationSchema(s.authTable)
	if err != nil {
		return err
	}

	for _, stmt := range []string{schema, authSchema} {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return s.storageError("migrate", err)
		}
	}

	return nil
}

// Enqueue inserts a queued message.
func (s *Store) Enqueue(ctx context.Context, receiver, payload string) (int64, error) {
	return s.EnqueueWith(ctx, s.db, receiver, payload)
}

// EnqueueWith inserts a queued message using the provided executor, typically a transaction.
func (s *Store) EnqueueWith(ctx context.Context, exec Executor, receiver, payload string) (int64, error) {
	if exec == nil {
		return 0, ErrExecutorRequired
	}

	res, err := exec.ExecContext(ctx, s.queries.insert, receiver, payload, smsqueue.StatusQueued, s.cfg.Clock.Now())
	if err != nil {
		return 0, s.storageError("insert", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, s.storageError("insert id", err)
	}

	return id, nil
}

// ClaimNext locks the oldest queued message with SKIP LOCKED and marks it processing.
func (s *Store) ClaimNext(ctx context.Context) (smsqueue.Message, bool, error) {
	var (
		msg smsqueue.Message
		ok  bool
	)

	err := s.withTx(ctx, "claim", func(tx *sql.Tx) error {
		row := tx.QueryRowContext(ctx, s.queries.selectQueued, smsqueue.StatusQueued)
		var err error
		msg, err = scanMessage(row)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return err
		}

		msg.Status = smsqueue.StatusProcessing
		msg.ClaimToken = s.cfg.TokenFunc()
		msg.ClaimedAt = s.cfg.Clock.Now()
		if _, err := tx.ExecContext(ctx, s.queries.markProcessing, msg.Status, msg.ClaimToken, msg.ClaimedAt, msg.ID); err != nil {
			return err
		}
		ok = true

		return nil
	})
	if err != nil {
		return smsqueue.Message{}, false, err
	}

	return msg, ok, nil
}

// MarkSent confirms delivery of a processing message.
func (s *Store) MarkSent(ctx context.Context, id int64, claimToken string) (smsqueue.Status, error) {
	return s.report(ctx, "mark sent", id, claimToken, func(tx *sql.Tx, _ int) (smsqueue.Status, error) {
		_, err := tx.ExecContext(ctx, s.queries.markSent, smsqueue.StatusSent, s.cfg.Clock.Now(), id)

		return smsqueue.StatusSent, err
	})
}

// Requeue returns a processing message to the queue, or marks it dead once MaxAttempts is reached.
func (s *Store) Requeue(ctx context.Context, id int64, claimToken string) (smsqueue.Status, error) {
	return s.report(ctx, "requeue", id, claimToken, func(tx *sql.Tx, attempts int) (smsqueue.Status, error) {
		_, err := tx.ExecContext(ctx, s.queries.release, s.releaseArgs(id)...)

		return s.nextStatus(attempts + 1), err
	})
}

// RequeueExpired releases up to limit processing messages claimed before the cutoff.
func (s *Store) RequeueExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	var (
		res sql.Result
		err error
	)
	if limit > 0 {
		args := append(s.releaseArgs(), smsqueue.StatusProcessing, before, limit)
		res, err = s.db.ExecContext(ctx, s.queries.requeueExpired, args...)
	} else {
		args := append(s.releaseArgs(), smsqueue.StatusProcessing, before)
		res, err = s.db.ExecContext(ctx, s.queries.requeueExpiredAll, args...)
	}
	if err != nil {
		return 0, s.storageError("requeue expired", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return 0, s.storageError("requeue expired rows", err)
	}

	return int(affected), nil
}

// QueuedCount returns the number of queued messages.
func (s *Store) QueuedCount(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, s.queries.countQueued, smsqueue.StatusQueued).Scan(&count); err != nil {
		return 0, s.storageError("queued count", err)
	}

	return count, nil
}

// Get returns a single message.
func (s *Store) Get(ctx context.Context, id int64) (smsqueue.Message, error) {
	msg, err := scanMessage(s.db.QueryRowContext(ctx, s.queries.get, id))
	if errors.Is(err, sql.ErrNoRows) {
		return smsqueue.Message{}, smsqueue.ErrNotFound
	}
	if err != nil {
		return smsqueue.Message{}, s.storageError("get", err)
	}

	return msg, nil
}

type applyFunc func(tx *sql.Tx, attempts int) (smsqueue.Status, error)

// report locks the message row, checks that it is processing under the given claim and applies fn.
func (s *Store) report(ctx context.Context, op string, id int64, claimToken string, fn applyFunc) (smsqueue.Status, error) {
	var (
		result   smsqueue.Status
		stateErr error
	)

	err := s.withTx(ctx, op, func(tx *sql.Tx) error {
		var (
			status   smsqueue.Status
			token    sql.NullString
			attempts int
		)
		err := tx.QueryRowContext(ctx, s.queries.selectForReport, id).Scan(&status, &token, &attempts)
		if errors.Is(err, sql.ErrNoRows) {
			stateErr = smsqueue.ErrNotFound

			return nil
		}
		if err != nil {
			return err
		}

		if status != smsqueue.StatusProcessing || (claimToken != "" && claimToken != token.String) {
			result = status
			stateErr = smsqueue.ErrInvalidState

			return nil
		}

		result, err = fn(tx, attempts)

		return err
	})
	if err != nil {
		return 0, err
	}

	return result, stateErr
}

func (s *Store) withTx(ctx context.Context, op string, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelReadCommitted})
	if err != nil {
		return s.storageError(op+" begin tx", err)
	}

	if err := fn(tx); err != nil {
		rollbackErr := tx.Rollback()
		if errors.Is(rollbackErr, sql.ErrTxDone) {
			rollbackErr = nil
		}

		return s.storageError(op, errors.Join(err, rollbackErr))
	}

	if err := tx.Commit(); err != nil {
		return s.storageError(op+" commit", err)
	}

	return nil
}

func (s *Store) releaseArgs(tail ...any) []any {
	args := []any{s.cfg.MaxAttempts, s.cfg.MaxAttempts, smsqueue.StatusDead, smsqueue.StatusQueued}

	return append(args, tail...)
}

func (s *Store) nextStatus(attempts int) smsqueue.Status {
	if s.cfg.MaxAttempts > 0 && attempts >= s.cfg.MaxAttempts {
		return smsqueue.StatusDead
	}

	return smsqueue.StatusQueued
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanMessage(row rowScanner) (smsqueue.Message, error) {
	var (
		msg       smsqueue.Message
		token     sql.NullString
		claimedAt sql.NullTime
	)
	if err := row.Scan(
		&msg.ID,
		&msg.Receiver,
		&msg.Payload,
		&msg.Status,
		&msg.Attempts,
		&token,
		&claimedAt,
		&msg.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return smsqueue.Message{}, err
		}

		return smsqueue.Message{}, fmt.Errorf("scan message: %w", err)
	}
	msg.ClaimToken = token.String
	if claimedAt.Valid {
		msg.ClaimedAt = claimedAt.Time
	}

	return msg, nil
}
