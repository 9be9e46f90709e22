package gormstore

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"

	smsqueue "github.com/velmie/smsqueue"
)

type captureLogger struct {
	smsqueue.NopLogger
	warnings int
}

func (l *captureLogger) Warn(string, ...any) {
	l.warnings++
}

func TestNewStoreRequiresDB(t *testing.T) {
	if _, err := NewStore(nil); !errors.Is(err, ErrDBRequired) {
		t.Fatalf("expected ErrDBRequired, got %v", err)
	}
}

func TestOpenRequiresDSN(t *testing.T) {
	if _, err := Open(context.Background(), "", 1); !errors.Is(err, ErrDSNRequired) {
		t.Fatalf("expected ErrDSNRequired, got %v", err)
	}
}

func TestTableNames(t *testing.T) {
	if got := (messageModel{}).TableName(); got != "sms_queue" {
		t.Fatalf("unexpected message table %q", got)
	}
	if got := (authorizationModel{}).TableName(); got != "sms_authorization" {
		t.Fatalf("unexpected authorization table %q", got)
	}
}

func TestToMessage(t *testing.T) {
	token := "tok"
	claimed := time.Date(2025, 3, 1, 10, 0, 0, 0, time.FixedZone("EET", 2*60*60))
	row := messageModel{
		ID:         5,
		Receiver:   "+15550001234",
		Payload:    "hi",
		Status:     int16(smsqueue.StatusProcessing),
		Attempts:   2,
		ClaimToken: &token,
		ClaimedAt:  &claimed,
		CreatedAt:  claimed.Add(-time.Minute),
	}

	msg := row.toMessage()
	if msg.ID != 5 || msg.Status != smsqueue.StatusProcessing || msg.Attempts != 2 || msg.ClaimToken != "tok" {
		t.Fatalf("unexpected message %+v", msg)
	}
	if msg.ClaimedAt.Location() != time.UTC || !msg.ClaimedAt.Equal(claimed) {
		t.Fatalf("expected claimed_at in UTC, got %v", msg.ClaimedAt)
	}

	empty := messageModel{ID: 6}.toMessage()
	if empty.ClaimToken != "" || !empty.ClaimedAt.IsZero() {
		t.Fatalf("expected empty claim fields, got %+v", empty)
	}
}

func TestNextStatus(t *testing.T) {
	store := &Store{cfg: Config{MaxAttempts: 3}.withDefaults()}
	if got := store.nextStatus(2); got != smsqueue.StatusQueued {
		t.Fatalf("expected queued, got %s", got)
	}
	if got := store.nextStatus(3); got != smsqueue.StatusDead {
		t.Fatalf("expected dead, got %s", got)
	}

	unbounded := &Store{cfg: Config{}.withDefaults()}
	if got := unbounded.nextStatus(1000); got != smsqueue.StatusQueued {
		t.Fatalf("expected queued when unbounded, got %s", got)
	}
}

func TestStorageError(t *testing.T) {
	logger := &captureLogger{}
	store := &Store{cfg: Config{Logger: logger}.withDefaults()}

	err := store.storageError("claim", &pgconn.PgError{Code: "40P01"})
	if !smsqueue.IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
	if logger.warnings != 1 {
		t.Fatalf("expected contention warning, got %d", logger.warnings)
	}

	if err := store.storageError("claim", context.Canceled); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
