package gormstore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	smsqueue "github.com/velmie/smsqueue"
)

// ErrDBRequired is returned when a nil *gorm.DB is provided.
var ErrDBRequired = errors.New("smsqueue gorm: db is required")

var skipLocked = clause.Locking{
	Strength: clause.LockingStrengthUpdate,
	Options:  clause.LockingOptionsSkipLocked,
}

// Store implements smsqueue.Store with GORM.
type Store struct {
	db  *gorm.DB
	cfg Config
}

var _ smsqueue.Store = (*Store)(nil)

// NewStore constructs a GORM-backed store.
func NewStore(db *gorm.DB, opts ...Option) (*Store, error) {
	if db == nil {
		return nil, ErrDBRequired
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{db: db, cfg: cfg.withDefaults()}, nil
}

// Migrate creates or updates the message and authorization tables.
func (s *Store) Migrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&messageModel{}, &authorizationModel{}); err != nil {
		return s.storageError("migrate", err)
	}

	return nil
}

// Enqueue inserts a queued message.
func (s *Store) Enqueue(ctx context.Context, receiver, payload string) (int64, error) {
	now := s.cfg.Clock.Now()
	row := messageModel{
		Receiver:  receiver,
		Payload:   payload,
		Status:    int16(smsqueue.StatusQueued),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		return 0, s.storageError("insert", err)
	}

	return row.ID, nil
}

// ClaimNext locks the oldest queued row with SKIP LOCKED and marks it processing.
func (s *Store) ClaimNext(ctx context.Context) (smsqueue.Message, bool, error) {
	var (
		row messageModel
		ok  bool
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Clauses(skipLocked).
			Where("status = ?", int16(smsqueue.StatusQueued)).
			Order("created_at ASC, id ASC").
			Take(&row).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil
		}
		if err != nil {
			return err
		}

		now := s.cfg.Clock.Now()
		token := s.cfg.TokenFunc()
		if err := tx.Model(&row).Updates(map[string]any{
			"status":      int16(smsqueue.StatusProcessing),
			"claim_token": token,
			"claimed_at":  now,
			"updated_at":  now,
		}).Error; err != nil {
			return err
		}
		row.Status = int16(smsqueue.StatusProcessing)
		row.ClaimToken = &token
		row.ClaimedAt = &now
		ok = true

		return nil
	})
	if err != nil {
		return smsqueue.Message{}, false, s.storageError("claim", err)
	}
	if !ok {
		return smsqueue.Message{}, false, nil
	}

	return row.toMessage(), true, nil
}

// MarkSent confirms delivery of a processing message.
func (s *Store) MarkSent(ctx context.Context, id int64, claimToken string) (smsqueue.Status, error) {
	return s.report(ctx, "mark sent", id, claimToken, func(tx *gorm.DB, row *messageModel) (smsqueue.Status, error) {
		now := s.cfg.Clock.Now()
		err := tx.Model(row).Updates(map[string]any{
			"status":     int16(smsqueue.StatusSent),
			"sent_at":    now,
			"updated_at": now,
		}).Error

		return smsqueue.StatusSent, err
	})
}

// Requeue returns a processing message to the queue, or marks it dead once MaxAttempts is reached.
func (s *Store) Requeue(ctx context.Context, id int64, claimToken string) (smsqueue.Status, error) {
	return s.report(ctx, "requeue", id, claimToken, func(tx *gorm.DB, row *messageModel) (smsqueue.Status, error) {
		next := s.nextStatus(row.Attempts + 1)
		err := tx.Model(row).Updates(map[string]any{
			"status":      int16(next),
			"attempts":    row.Attempts + 1,
			"claim_token": nil,
			"claimed_at":  nil,
			"updated_at":  s.cfg.Clock.Now(),
		}).Error

		return next, err
	})
}

// RequeueExpired releases up to limit processing messages claimed before the cutoff.
// A non-positive limit releases all of them.
func (s *Store) RequeueExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	var affected int64

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var ids []int64
		query := tx.Model(&messageModel{}).
			Clauses(skipLocked).
			Where("status = ? AND claimed_at < ?", int16(smsqueue.StatusProcessing), before).
			Order("claimed_at ASC, id ASC")
		if limit > 0 {
			query = query.Limit(limit)
		}
		if err := query.Pluck("id", &ids).Error; err != nil {
			return err
		}
		if len(ids) == 0 {
			return nil
		}

		maxAttempts := s.cfg.MaxAttempts
		res := tx.Model(&messageModel{}).Where("id IN ?", ids).Updates(map[string]any{
			"status": gorm.Expr(
				"CASE WHEN ? > 0 AND attempts + 1 >= ? THEN ?::smallint ELSE ?::smallint END",
				maxAttempts, maxAttempts, int16(smsqueue.StatusDead), int16(smsqueue.StatusQueued),
			),
			"attempts":    gorm.Expr("attempts + 1"),
			"claim_token": nil,
			"claimed_at":  nil,
			"updated_at":  s.cfg.Clock.Now(),
		})
		if res.Error != nil {
			return res.Error
		}
		affected = res.RowsAffected

		return nil
	})
	if err != nil {
		return 0, s.storageError("requeue expired", err)
	}

	return int(affected), nil
}

// QueuedCount returns the number of queued messages.
func (s *Store) QueuedCount(ctx context.Context) (int, error) {
	var count int64
	err := s.db.WithContext(ctx).
		Model(&messageModel{}).
		Where("status = ?", int16(smsqueue.StatusQueued)).
		Count(&count).
		Error
	if err != nil {
		return 0, s.storageError("queued count", err)
	}

	return int(count), nil
}

// Get returns a single message.
func (s *Store) Get(ctx context.Context, id int64) (smsqueue.Message, error) {
	var row messageModel
	err := s.db.WithContext(ctx).Where("id = ?", id).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return smsqueue.Message{}, smsqueue.ErrNotFound
	}
	if err != nil {
		return smsqueue.Message{}, s.storageError("get", err)
	}

	return row.toMessage(), nil
}

// IsAuthorized looks up the token in the authorization table. Unknown tokens are not authorized.
func (s *Store) IsAuthorized(ctx context.Context, token string) (bool, error) {
	var row authorizationModel
	err := s.db.WithContext(ctx).Where("token = ?", token).Take(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	if err != nil {
		return false, s.storageError("authorize", err)
	}

	return row.Authorized, nil
}

type applyFunc func(tx *gorm.DB, row *messageModel) (smsqueue.Status, error)

func (s *Store) report(ctx context.Context, op string, id int64, claimToken string, fn applyFunc) (smsqueue.Status, error) {
	var (
		result   smsqueue.Status
		stateErr error
	)

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var row messageModel
		err := tx.Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
			Where("id = ?", id).
			Take(&row).
			Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			stateErr = smsqueue.ErrNotFound

			return nil
		}
		if err != nil {
			return err
		}

		current := smsqueue.Status(row.Status)
		if current != smsqueue.StatusProcessing || (claimToken != "" && (row.ClaimToken == nil || *row.ClaimToken != claimToken)) {
			result = current
			stateErr = smsqueue.ErrInvalidState

			return nil
		}

		result, err = fn(tx, &row)

		return err
	})
	if err != nil {
		return 0, s.storageError(op, err)
	}

	return result, stateErr
}

func (s *Store) nextStatus(attempts int) smsqueue.Status {
	if s.cfg.MaxAttempts > 0 && attempts >= s.cfg.MaxAttempts {
		return smsqueue.StatusDead
	}

	return smsqueue.StatusQueued
}

func (s *Store) storageError(op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && (pgErr.Code == "40001" || pgErr.Code == "40P01" || pgErr.Code == "55P03") {
		s.cfg.Logger.Warn("smsqueue gorm lock contention", "op", op, "err", err)
	}

	return fmt.Errorf("%w: gorm %s failed: %w", smsqueue.ErrStorage, op, err)
}

func (m messageModel) toMessage() smsqueue.Message {
	msg := smsqueue.Message{
		ID:        m.ID,
		Receiver:  m.Receiver,
		Payload:   m.Payload,
		Status:    smsqueue.Status(m.Status),
		Attempts:  m.Attempts,
		CreatedAt: m.CreatedAt.UTC(),
	}
	if m.ClaimToken != nil {
		msg.ClaimToken = *m.ClaimToken
	}
	if m.ClaimedAt != nil {
		msg.ClaimedAt = m.ClaimedAt.UTC()
	}

	return msg
}
