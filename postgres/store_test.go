package postgres

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"

	smsqueue "github.com/velmie/smsqueue"
)

type captureLogger struct {
	smsqueue.NopLogger
	warnings []string
}

func (l *captureLogger) Warn(msg string, _ ...any) {
	l.warnings = append(l.warnings, msg)
}

func TestNewStoreValidation(t *testing.T) {
	if _, err := NewStore(nil); !errors.Is(err, ErrPoolRequired) {
		t.Fatalf("expected ErrPoolRequired, got %v", err)
	}
}

func TestStorageErrorClassifiesContention(t *testing.T) {
	cases := []struct {
		code string
		warn bool
	}{
		{code: codeSerializationFailure, warn: true},
		{code: codeDeadlockDetected, warn: true},
		{code: codeLockNotAvailable, warn: true},
		{code: "23505", warn: false},
	}

	for _, tc := range cases {
		t.Run(tc.code, func(t *testing.T) {
			logger := &captureLogger{}
			store := &Store{cfg: Config{Logger: logger}.withDefaults()}

			err := store.storageError("claim", &pgconn.PgError{Code: tc.code})
			if !smsqueue.IsRetryable(err) {
				t.Fatalf("expected retryable error, got %v", err)
			}
			if got := len(logger.warnings) == 1; got != tc.warn {
				t.Fatalf("expected warning=%v, got %v", tc.warn, logger.warnings)
			}
		})
	}
}

func TestStorageErrorKeepsContextErrors(t *testing.T) {
	store := &Store{cfg: Config{}.withDefaults()}
	if err := store.storageError("claim", context.DeadlineExceeded); err != context.DeadlineExceeded {
		t.Fatalf("expected deadline exceeded, got %v", err)
	}
}

func TestSanitizeTableName(t *testing.T) {
	valid := []string{"sms_queue", "public.sms_queue", "sms_queue_2"}
	for _, name := range valid {
		if _, err := sanitizeTableName(name); err != nil {
			t.Fatalf("expected valid name %q: %v", name, err)
		}
	}

	invalid := []string{"", "SMS", "sms;drop", "sms-queue", "public..sms", "2sms"}
	for _, name := range invalid {
		if _, err := sanitizeTableName(name); err == nil {
			t.Fatalf("expected invalid name %q", name)
		}
	}
}

func TestSchema(t *testing.T) {
	stmts, err := Schema("public.sms_queue")
	if err != nil {
		t.Fatalf("schema: %v", err)
	}
	if len(stmts) != 3 {
		t.Fatalf("expected 3 statements, got %d", len(stmts))
	}
	if !strings.Contains(stmts[0], "CREATE TABLE IF NOT EXISTS public.sms_queue") {
		t.Fatalf("unexpected table statement: %s", stmts[0])
	}
	if !strings.Contains(stmts[1], "sms_queue_status_created_idx ON public.sms_queue (status, created_at, id)") {
		t.Fatalf("unexpected index statement: %s", stmts[1])
	}
}

func TestAuthorizationSchema(t *testing.T) {
	stmt, err := AuthorizationSchema("sms_authorization")
	if err != nil {
		t.Fatalf("authorization schema: %v", err)
	}
	if !strings.Contains(stmt, "token TEXT PRIMARY KEY") {
		t.Fatalf("unexpected statement: %s", stmt)
	}
}

func TestClaimQueryIsSingleStatement(t *testing.T) {
	q := newQueries("sms_queue", "sms_authorization")
	if !strings.HasPrefix(q.claim, "UPDATE sms_queue SET") {
		t.Fatalf("unexpected claim query: %s", q.claim)
	}
	if !strings.Contains(q.claim, "ORDER BY created_at ASC, id ASC LIMIT 1 FOR UPDATE SKIP LOCKED") {
		t.Fatalf("expected SKIP LOCKED subquery: %s", q.claim)
	}
	if !strings.HasSuffix(q.claim, "RETURNING "+messageColumns) {
		t.Fatalf("expected RETURNING clause: %s", q.claim)
	}
}

func TestNewPoolRequiresDSN(t *testing.T) {
	if _, err := NewPool(context.Background(), "", 4); !errors.Is(err, ErrDSNRequired) {
		t.Fatalf("expected ErrDSNRequired, got %v", err)
	}
}
