//go:build integration

package testutil

import (
	"context"
	"database/sql"
	"fmt"
	"testing"
	"time"

	"github.com/docker/go-connections/nat"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	_ "github.com/jackc/pgx/v5/stdlib"
)

const serverPort = nat.Port("8080/tcp")

// PostgresContainer is a Postgres instance reachable from the host (DB) and from other
// containers on Network (DSN).
type PostgresContainer struct {
	Container testcontainers.Container
	Network   *testcontainers.DockerNetwork
	DB        *sql.DB
	DSN       string
}

// StartPostgresContainer starts Postgres 16 on a fresh network. The test is skipped when
// Docker is unavailable.
func StartPostgresContainer(t *testing.T, ctx context.Context) PostgresContainer {
	t.Helper()

	net := newNetwork(t, ctx)

	port := nat.Port("5432/tcp")
	dsnFor := func(host string, port nat.Port) string {
		return fmt.Sprintf(
			"postgres://%s:%s@%s:%s/%s?sslmode=disable",
			postgresUser,
			postgresPassword,
			host,
			port.Port(),
			postgresDatabase,
		)
	}
	req := testcontainers.ContainerRequest{
		Image:        postgresImage,
		ExposedPorts: []string{string(port)},
		Env: map[string]string{
			"POSTGRES_USER":     postgresUser,
			"POSTGRES_PASSWORD": postgresPassword,
			"POSTGRES_DB":       postgresDatabase,
		},
		Networks: []string{net.Name},
		NetworkAliases: map[string][]string{
			net.Name: {"postgres"},
		},
		WaitingFor: wait.ForSQL(port, "pgx", dsnFor).WithStartupTimeout(dbStartupTimeout),
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

	db, err := sql.Open("pgx", dsnFor(host, mappedPort))
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() {
		_ = db.Close()
	})

	return PostgresContainer{
		Container: container,
		Network:   net,
		DB:        db,
		DSN:       dsnFor("postgres", port),
	}
}

// StartServerContainer runs a long-lived server binary on networkName and returns its
// base URL once GET /healthz answers.
func StartServerContainer(t *testing.T, ctx context.Context, networkName, binaryPath string, args []string, env map[string]string) string {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        cliContainerImage,
		Entrypoint:   []string{cliContainerPath},
		Cmd:          args,
		Env:          env,
		ExposedPorts: []string{string(serverPort)},
		Networks:     []string{networkName},
		Files: []testcontainers.ContainerFile{
			{
				HostFilePath:      binaryPath,
				ContainerFilePath: cliContainerPath,
				FileMode:          0o755,
			},
		},
		WaitingFor: wait.ForHTTP("/healthz").WithPort(serverPort).WithStartupTimeout(time.Minute),
	}

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	if err != nil {
		t.Fatalf("start server container: %v", err)
	}
	t.Cleanup(func() {
		_ = container.Terminate(ctx)
	})

	endpoint, err := container.PortEndpoint(ctx, serverPort, "http")
	if err != nil {
		t.Fatalf("resolve server endpoint: %v", err)
	}

	return endpoint
}
