//go:build integration

package main

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/velmie/smsqueue"
	"github.com/velmie/smsqueue/cmd/internal/testutil"
	"github.com/velmie/smsqueue/httpapi"
)

func TestServerContainerPostgres(t *testing.T) {
	ctx := context.Background()
	env := testutil.StartPostgresContainer(t, ctx)

	bin := testutil.BuildBinary(t, ".")
	baseURL := testutil.StartServerContainer(t, ctx, env.Network.Name, bin, []string{
		"-backend", "postgres",
		"-dsn", env.DSN,
		"-migrate",
		"-addr", ":8080",
		"-max-attempts", "2",
	}, map[string]string{
		"SMSQUEUE_WORKER_KEY": "rotated,current",
	})

	_, err := env.DB.ExecContext(ctx, "INSERT INTO sms_authorization (token, authorized) VALUES ($1, TRUE), ($2, FALSE)", "paid", "unpaid")
	require.NoError(t, err)

	client, err := httpapi.NewClient(baseURL, "current", nil)
	require.NoError(t, err)

	id, err := client.Submit(ctx, smsqueue.Submission{Token: "paid", Receiver: "+15550001234", Payload: "hello"})
	require.NoError(t, err)

	_, err = client.Submit(ctx, smsqueue.Submission{Token: "unpaid", Receiver: "+15550001234", Payload: "hello"})
	require.ErrorIs(t, err, smsqueue.ErrUnauthorized)

	msg, ok, err := client.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, id, msg.ID)

	ack, err := client.Report(ctx, smsqueue.Report{ID: id, Outcome: smsqueue.OutcomeFailed, ClaimToken: msg.ClaimToken})
	require.NoError(t, err)
	require.Equal(t, smsqueue.StatusQueued, ack.Status)

	msg, ok, err = client.Claim(ctx)
	require.NoError(t, err)
	require.True(t, ok)

	ack, err = client.Report(ctx, smsqueue.Report{ID: id, Outcome: smsqueue.OutcomeFailed, ClaimToken: msg.ClaimToken})
	require.NoError(t, err)
	require.Equal(t, smsqueue.StatusDead, ack.Status)

	_, ok, err = client.Claim(ctx)
	require.NoError(t, err)
	require.False(t, ok)

	rotated, err := httpapi.NewClient(baseURL, "rotated", nil)
	require.NoError(t, err)
	_, _, err = rotated.Claim(ctx)
	require.NoError(t, err)

	var status int16
	require.NoError(t, env.DB.QueryRowContext(ctx, "SELECT status FROM sms_queue WHERE id = $1", id).Scan(&status))
	require.Equal(t, int16(smsqueue.StatusDead), status)
}
