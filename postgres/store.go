package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	smsqueue "github.com/velmie/smsqueue"
)

// Executor allows enqueuing within an existing transaction. Both *pgxpool.Pool and pgx.Tx satisfy it.
type Executor interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store implements a PostgreSQL-backed smsqueue.Store.
type Store struct {
	pool      *pgxpool.Pool
	cfg       Config
	queries   queries
	table     string
	authTable string
}

var _ smsqueue.Store = (*Store)(nil)

// NewStore constructs a PostgreSQL store with validated configuration.
func NewStore(pool *pgxpool.Pool, opts ...Option) (*Store, error) {
	if pool == nil {
		return nil, ErrPoolRequired
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
		pool:      pool,
		cfg:       cfg,
		queries:   newQueries(table, authTable),
		table:     table,
		authTable: authTable,
	}, nil
}

// Migrate creates the message and authorization tables when they do not exist.
func (s *Store) Migrate(ctx context.Context) error {
	stmts, err := Schema(s.table)
	if err != nil {
		return err
	}
	authSchema, err := AuthorizationSchema(s.authTable)
	if err != nil {
		return err
	}
	stmts = append(stmts, authSchema)

	return s.withTx(ctx, "migrate", func(tx pgx.Tx) error {
		for _, stmt := range stmts {
			if _, err := tx.Exec(ctx, stmt); err != nil {
				return err
			}
		}

		return nil
	})
}

// Enqueue inserts a queued message.
func (s *Store) Enqueue(ctx context.Context, receiver, payload string) (int64, error) {
	return s.EnqueueWith(ctx, s.pool, receiver, payload)
}

// EnqueueWith inserts a queued message using the provided executor, typically a transaction.
func (s *Store) EnqueueWith(ctx context.Context, exec Executor, receiver, payload string) (int64, error) {
	if exec == nil {
		return 0, ErrExecutorRequired
	}

	var id int64
	err := exec.QueryRow(ctx, s.queries.insert, receiver, payload, int16(smsqueue.StatusQueued), s.cfg.Clock.Now()).Scan(&id)
	if err != nil {
		return 0, s.storageError("insert", err)
	}

	return id, nil
}

// ClaimNext marks the oldest queued message processing in a single statement.
func (s *Store) ClaimNext(ctx context.Context) (smsqueue.Message, bool, error) {
	row := s.pool.QueryRow(
		ctx,
		s.queries.claim,
		int16(smsqueue.StatusProcessing),
		s.cfg.TokenFunc(),
		s.cfg.Clock.Now(),
		int16(smsqueue.StatusQueued),
	)
	msg, err := scanMessage(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return smsqueue.Message{}, false, nil
	}
	if err != nil {
		return smsqueue.Message{}, false, s.storageError("claim", err)
	}

	return msg, true, nil
}

// MarkSent confirms delivery of a processing message.
func (s *Store) MarkSent(ctx context.Context, id int64, claimToken string) (smsqueue.Status, error) {
	row := s.pool.QueryRow(
		ctx,
		s.queries.markSent,
		int16(smsqueue.StatusSent),
		s.cfg.Clock.Now(),
		id,
		int16(smsqueue.StatusProcessing),
		claimToken,
	)

	return s.applied(ctx, "mark sent", id, row)
}

// Requeue returns a processing message to the queue, or marks it dead once MaxAttempts is reached.
func (s *Store) Requeue(ctx context.Context, id int64, claimToken string) (smsqueue.Status, error) {
	args := append(s.releaseArgs(), id, int16(smsqueue.StatusProcessing), claimToken)

	return s.applied(ctx, "requeue", id, s.pool.QueryRow(ctx, s.queries.release, args...))
}

// RequeueExpired releases up to limit processing messages claimed before the cutoff.
// A non-positive limit releases all of them.
func (s *Store) RequeueExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	// A NULL limit is LIMIT ALL.
	var rows *int64
	if limit > 0 {
		n := int64(limit)
		rows = &n
	}

	args := append(s.releaseArgs(), int16(smsqueue.StatusProcessing), before, rows)
	tag, err := s.pool.Exec(ctx, s.queries.requeueExpired, args...)
	if err != nil {
		return 0, s.storageError("requeue expired", err)
	}

	return int(tag.RowsAffected()), nil
}

// QueuedCount returns the number of queued messages.
func (s *Store) QueuedCount(ctx context.Context) (int, error) {
	var count int
	if err := s.pool.QueryRow(ctx, s.queries.countQueued, int16(smsqueue.StatusQueued)).Scan(&count); err != nil {
		return 0, s.storageError("queued count", err)
	}

	return count, nil
}

// Get returns a single message.
func (s *Store) Get(ctx context.Context, id int64) (smsqueue.Message, error) {
	msg, err := scanMessage(s.pool.QueryRow(ctx, s.queries.get, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return smsqueue.Message{}, smsqueue.ErrNotFound
	}
	if err != nil {
		return smsqueue.Message{}, s.storageError("get", err)
	}

	return msg, nil
}

// IsAuthorized looks up the token in the authorization table. Unknown tokens are not authorized.
func (s *Store) IsAuthorized(ctx context.Context, token string) (bool, error) {
	var authorized bool
	err := s.pool.QueryRow(ctx, s.queries.isAuthorized, token).Scan(&authorized)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, s.storageError("authorize", err)
	}

	return authorized, nil
}

// applied reads the status returned by a conditional report UPDATE. When no row matched
// it reports the current status with ErrInvalidState, or ErrNotFound.
func (s *Store) applied(ctx context.Context, op string, id int64, row pgx.Row) (smsqueue.Status, error) {
	var status int16
	err := row.Scan(&status)
	if err == nil {
		return smsqueue.Status(status), nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return 0, s.storageError(op, err)
	}

	err = s.pool.QueryRow(ctx, s.queries.status, id).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, smsqueue.ErrNotFound
	}
	if err != nil {
		return 0, s.storageError(op+" status", err)
	}

	return smsqueue.Status(status), smsqueue.ErrInvalidState
}

func (s *Store) withTx(ctx context.Context, op string, fn func(tx pgx.Tx) error) (err error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return s.storageError(op+" begin tx", err)
	}

	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback(ctx)
			panic(p)
		}
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				err = errors.Join(err, rbErr)
			}
			err = s.storageError(op, err)

			return
		}
		if commitErr := tx.Commit(ctx); commitErr != nil {
			err = s.storageError(op+" commit", commitErr)
		}
	}()

	return fn(tx)
}

func (s *Store) releaseArgs() []any {
	return []any{int32(s.cfg.MaxAttempts), int16(smsqueue.StatusDead), int16(smsqueue.StatusQueued)}
}

func scanMessage(row pgx.Row) (smsqueue.Message, error) {
	var (
		msg       smsqueue.Message
		status    int16
		attempts  int32
		token     *string
		claimedAt *time.Time
	)
	if err := row.Scan(
		&msg.ID,
		&msg.Receiver,
		&msg.Payload,
		&status,
		&attempts,
		&token,
		&claimedAt,
		&msg.CreatedAt,
	); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return smsqueue.Message{}, err
		}

		return smsqueue.Message{}, fmt.Errorf("scan message: %w", err)
	}
	msg.Status = smsqueue.Status(status)
	msg.Attempts = int(attempts)
	if token != nil {
		msg.ClaimToken = *token
	}
	if claimedAt != nil {
		msg.ClaimedAt = claimedAt.UTC()
	}
	msg.CreatedAt = msg.CreatedAt.UTC()

	return msg, nil
}
