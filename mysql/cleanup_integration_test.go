//go:build integration

package mysql_test

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	smsqueue "github.com/velmie/smsqueue"
	"github.com/velmie/smsqueue/mysql"
)

func TestStoreCleanupIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	store := newMigratedStore(t, ctx, db)
	ids := enqueueMessages(t, ctx, store, 3)

	now := time.Now().UTC()
	old := now.Add(-2 * time.Hour)
	recent := now.Add(-10 * time.Minute)

	setStatus(t, ctx, db, ids[0], smsqueue.StatusSent, &old, &old)
	setStatus(t, ctx, db, ids[1], smsqueue.StatusSent, &recent, &recent)
	setStatus(t, ctx, db, ids[2], smsqueue.StatusDead, nil, &old)

	res, err := store.Cleanup(ctx, mysql.CleanupOptions{
		Before:      now.Add(-1 * time.Hour),
		Limit:       10,
		IncludeDead: true,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Sent)
	require.EqualValues(t, 1, res.Dead)

	require.Equal(t, 1, countByStatus(t, ctx, db, smsqueue.StatusSent))
	require.Equal(t, 0, countByStatus(t, ctx, db, smsqueue.StatusDead))
}

func TestStoreCleanupLimitIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	store := newMigratedStore(t, ctx, db)
	ids := enqueueMessages(t, ctx, store, 3)

	now := time.Now().UTC()
	old := now.Add(-2 * time.Hour)
	for _, id := range ids {
		setStatus(t, ctx, db, id, smsqueue.StatusSent, &old, &old)
	}

	res, err := store.Cleanup(ctx, mysql.CleanupOptions{
		Before: now.Add(-1 * time.Hour),
		Limit:  1,
	})
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Sent)
	require.Equal(t, 2, countByStatus(t, ctx, db, smsqueue.StatusSent))

	res, err = store.Cleanup(ctx, mysql.CleanupOptions{
		Before: now.Add(-1 * time.Hour),
		Limit:  5,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, res.Sent)
	require.Equal(t, 0, countByStatus(t, ctx, db, smsqueue.StatusSent))
}

func TestCleanupMaintainerEnsureIntegration(t *testing.T) {
	if testing.Short() {
		t.Skip("integration test disabled in short mode")
	}

	ctx := context.Background()
	container, db := startMySQLContainer(t, ctx)
	t.Cleanup(func() {
		_ = db.Close()
		_ = container.Terminate(ctx)
	})

	store := newMigratedStore(t, ctx, db)
	ids := enqueueMessages(t, ctx, store, 2)

	old := time.Now().UTC().Add(-48 * time.Hour)
	setStatus(t, ctx, db, ids[0], smsqueue.StatusSent, &old, &old)

	maintainer, err := mysql.NewCleanupMaintainer(db, mysql.CleanupMaintainerConfig{
		Table:     "sms_queue",
		Retention: 24 * time.Hour,
	})
	require.NoError(t, err)

	res, err := maintainer.Ensure(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, res.Sent)
	require.Equal(t, 1, countByStatus(t, ctx, db, smsqueue.StatusQueued))
}

func setStatus(t *testing.T, ctx context.Context, db *sql.DB, id int64, status smsqueue.Status, sentAt, updatedAt *time.Time) {
	t.Helper()
	var sent any
	if sentAt != nil {
		sent = *sentAt
	}
	var updated any
	if updatedAt != nil {
		updated = *updatedAt
	}
	_, err := db.ExecContext(
		ctx,
		"UPDATE sms_queue SET status = ?, sent_at = ?, updated_at = ? WHERE id = ?",
		status,
		sent,
		updated,
		id,
	)
	require.NoError(t, err)
}
