//go:build integration

package postgres_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/jackc/pgx/v5/pgxpool"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	smsqueue "github.com/velmie/smsqueue"
	"github.com/velmie/smsqueue/postgres"
)

func TestStoreScenarioIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	pool := startPostgresContainer(t, ctx)
	store := newMigratedStore(t, ctx, pool)

	_, err := pool.Exec(ctx, "INSERT INTO sms_authorization (token, authorized) VALUES ($1, $2), ($3, $4)", "T1", true, "T2", false)
	require.NoError(t, err)

	svc := smsqueue.NewService(store, store)

	id, err := svc.Submit(ctx, smsqueue.Submission{Token: "T1", Receiver: "+15550001234", Payload: "hi"})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, smsqueue.Submission{Token: "T2", Receiver: "+15550001234", Payload: "hi"})
	require.ErrorIs(t, err, smsqueue.ErrUnauthorized)

	msg, ok, err := svc.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, msg.ID)
	require.Equal(t, "+15550001234", msg.Receiver)

	_, ok, err = svc.Claim(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	ack, err := svc.Report(ctx, smsqueue.Report{ID: id, Outcome: smsqueue.OutcomeFailed, ClaimToken: msg.ClaimToken})
	require.NoError(t, err)
	require.True(t, ack.Applied)
	require.Equal(t, smsqueue.StatusQueued, ack.Status)

	msg, ok, err = svc.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, msg.ID)
	require.Equal(t, 1, msg.Attempts)

	ack, err = svc.Report(ctx, smsqueue.Report{ID: id, Outcome: smsqueue.OutcomeSent, ClaimToken: msg.ClaimToken})
	require.NoError(t, err)
	require.True(t, ack.Applied)
	require.Equal(t, smsqueue.StatusSent, ack.Status)

	ack, err = svc.Report(ctx, smsqueue.Report{ID: id, Outcome: smsqueue.OutcomeSent})
	require.NoError(t, err)
	require.False(t, ack.Applied)
	require.Equal(t, smsqueue.StatusSent, ack.Status)

	_, err = svc.Report(ctx, smsqueue.Report{ID: id + 1000, Outcome: smsqueue.OutcomeSent})
	require.ErrorIs(t, err, smsqueue.ErrNotFound)
}

func TestStoreConcurrentClaimsIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	const (
		records  = 50
		claimers = 10
	)

	ctx := context.Background()
	pool := startPostgresContainer(t, ctx)
	store := newMigratedStore(t, ctx, pool)
	for i := 0; i < records; i++ {
		_, err := store.Enqueue(ctx, "r", fmt.Sprintf("msg-%d", i))
		require.NoError(t, err)
	}

	var (
		mu      sync.Mutex
		claimed = make(map[int64]int)
		wg      sync.WaitGroup
		errs    = make(chan error, claimers)
	)
	for i := 0; i < claimers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				msg, ok, err := store.ClaimNext(ctx)
				if err != nil {
					errs <- err
					return
				}
				if !ok {
					return
				}
				mu.Lock()
				claimed[msg.ID]++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}
	require.Len(t, claimed, records)
	for id, n := range claimed {
		require.Equalf(t, 1, n, "message %d claimed %d times", id, n)
	}
}

func TestStoreDeadAndExpiryIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	pool := startPostgresContainer(t, ctx)
	store := newMigratedStore(t, ctx, pool, postgres.WithMaxAttempts(2))

	first, err := store.Enqueue(ctx, "r", "first")
	require.NoError(t, err)
	second, err := store.Enqueue(ctx, "r", "second")
	require.NoError(t, err)

	msg, ok, err := store.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first, msg.ID)

	_, err = pool.Exec(ctx, "UPDATE sms_queue SET claimed_at = now() - interval '1 hour' WHERE id = $1", first)
	require.NoError(t, err)

	count, err := store.RequeueExpired(ctx, time.Now().Add(-10*time.Minute), 0)
	require.NoError(t, err)
	require.Equal(t, 1, count)

	status, err := store.MarkSent(ctx, first, msg.ClaimToken)
	require.ErrorIs(t, err, smsqueue.ErrInvalidState)
	require.Equal(t, smsqueue.StatusQueued, status)

	msg, ok, err = store.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, first, msg.ID)

	status, err = store.Requeue(ctx, msg.ID, msg.ClaimToken)
	require.NoError(t, err)
	require.Equal(t, smsqueue.StatusDead, status)

	got, err := store.Get(ctx, first)
	require.NoError(t, err)
	require.Equal(t, smsqueue.StatusDead, got.Status)
	require.Equal(t, 2, got.Attempts)

	queued, err := store.QueuedCount(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, queued)

	msg, ok, err = store.ClaimNext(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, second, msg.ID)
}

func startPostgresContainer(t *testing.T, ctx context.Context) *pgxpool.Pool {
	t.Helper()
	port := nat.Port("5432/tcp")
	dsnFor := func(host string, port nat.Port) string {
		return fmt.Sprintf("postgres://postgres:secret@%s:%s/smsqueue?sslmode=disable", host, port.Port())
	}
	req := testcontainers.ContainerRequest{
		Image:        "postgres:16-alpine",
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"POSTGRES_PASSWORD": "secret",
			"POSTGRES_DB":       "smsqueue",
		},
		WaitingFor: wait.ForSQL(port, "pgx", dsnFor).WithStartupTimeout(2 * time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Skipf("start postgres container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	host, err := container.Host(ctx)
	if err != nil {
		t.Fatalf("resolve host: %v", err)
	}
	mappedPort, err := container.MappedPort(ctx, port)
	if err != nil {
		t.Fatalf("resolve port: %v", err)
	}

	pool, err := postgres.NewPool(ctx, dsnFor(host, mappedPort), 8)
	if err != nil {
		t.Fatalf("open pool: %v", err)
	}
	t.Cleanup(pool.Close)

	return pool
}

func newMigratedStore(t *testing.T, ctx context.Context, pool *pgxpool.Pool, opts ...postgres.Option) *postgres.Store {
	t.Helper()
	store, err := postgres.NewStore(pool, opts...)
	require.NoError(t, err)
	require.NoError(t, store.Migrate(ctx))
	return store
}
