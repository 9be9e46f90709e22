package config

import (
	"errors"
	"flag"
	"fmt"
	"strings"
	"time"
)

// Supported storage backends.
const (
	BackendMemory   = "memory"
	BackendMySQL    = "mysql"
	BackendPostgres = "postgres"
	BackendGorm     = "gorm"
)

var (
	// ErrDSNRequired is returned when a SQL backend is selected without a DSN.
	ErrDSNRequired = errors.New("config: dsn is required for sql backends")
	// ErrWorkerKeyRequired is returned when no worker key is configured.
	ErrWorkerKeyRequired = errors.New("config: at least one worker key is required")
	// ErrUnknownBackend is returned for an unsupported backend name.
	ErrUnknownBackend = errors.New("config: unknown backend")
)

// Config is the server process configuration.
type Config struct {
	Addr    string
	Backend string
	DSN     string
	// DBMaxConns bounds the backend connection pool.
	DBMaxConns int
	Migrate    bool

	Table     string
	AuthTable string

	// WorkerKeys are accepted in the Phone-Key header. More than one allows rotation.
	WorkerKeys []string
	// APITokens are granted on start when the memory backend is used.
	APITokens []string

	MaxAttempts int
	// Lease is how long a claim may stay processing before the sweeper requeues it. 0 disables.
	Lease      time.Duration
	SweepEvery time.Duration
	SweepLimit int

	LogLevel        string
	ShutdownTimeout time.Duration
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Addr:            ":8080",
		Backend:         BackendMemory,
		DBMaxConns:      10,
		Table:           "sms_queue",
		AuthTable:       "sms_authorization",
		Lease:           5 * time.Minute,
		SweepEvery:      30 * time.Second,
		SweepLimit:      500,
		LogLevel:        "info",
		ShutdownTimeout: 10 * time.Second,
	}
}

// Validate checks that the configuration can start a server.
func (c Config) Validate() error {
	switch c.Backend {
	case BackendMemory:
	case BackendMySQL, BackendPostgres, BackendGorm:
		if strings.TrimSpace(c.DSN) == "" {
			return ErrDSNRequired
		}
	default:
		return fmt.Errorf("%w: %q", ErrUnknownBackend, c.Backend)
	}
	if len(c.WorkerKeys) == 0 {
		return ErrWorkerKeyRequired
	}
	if c.DBMaxConns <= 0 {
		return errors.New("config: db max conns must be positive")
	}
	if c.MaxAttempts < 0 {
		return errors.New("config: max attempts must be >= 0")
	}
	if c.Lease < 0 {
		return errors.New("config: lease must be >= 0")
	}
	if c.Lease > 0 && c.SweepEvery <= 0 {
		return errors.New("config: sweep interval must be positive when a lease is set")
	}

	return nil
}

// RegisterFlags binds flags to cfg using its current values as defaults, so flags
// override the environment.
func RegisterFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.Addr, "addr", cfg.Addr, "HTTP listen address")
	fs.StringVar(&cfg.Backend, "backend", cfg.Backend, "storage backend: memory, mysql, postgres or gorm")
	fs.StringVar(&cfg.DSN, "dsn", cfg.DSN, "database DSN")
	fs.IntVar(&cfg.DBMaxConns, "db-max-conns", cfg.DBMaxConns, "maximum open database connections")
	fs.BoolVar(&cfg.Migrate, "migrate", cfg.Migrate, "create tables before serving")
	fs.StringVar(&cfg.Table, "table", cfg.Table, "queue table name")
	fs.StringVar(&cfg.AuthTable, "auth-table", cfg.AuthTable, "authorization table name")
	fs.Func("worker-key", "comma separated worker keys", func(value string) error {
		cfg.WorkerKeys = splitList(value)
		return nil
	})
	fs.Func("api-tokens", "comma separated tokens granted on the memory backend", func(value string) error {
		cfg.APITokens = splitList(value)
		return nil
	})
	fs.IntVar(&cfg.MaxAttempts, "max-attempts", cfg.MaxAttempts, "failed attempts before a message is dead (0 = unbounded)")
	fs.DurationVar(&cfg.Lease, "lease", cfg.Lease, "claim lease (0 disables the sweeper)")
	fs.DurationVar(&cfg.SweepEvery, "sweep-every", cfg.SweepEvery, "lease sweep interval")
	fs.IntVar(&cfg.SweepLimit, "sweep-limit", cfg.SweepLimit, "maximum claims requeued per sweep")
	fs.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout", cfg.ShutdownTimeout, "graceful shutdown timeout")
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}

	return out
}
