package config

import (
	"os"
	"strconv"
	"time"
)

// FromEnv overlays SMSQUEUE_* environment variables onto cfg.
// Unparseable values are ignored.
func FromEnv(cfg *Config) {
	if v := os.Getenv("SMSQUEUE_ADDR"); v != "" {
		cfg.Addr = v
	}
	if v := os.Getenv("SMSQUEUE_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("SMSQUEUE_DSN"); v != "" {
		cfg.DSN = v
	}
	if v := os.Getenv("SMSQUEUE_DB_MAX_CONNS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.DBMaxConns = n
		}
	}
	if v := os.Getenv("SMSQUEUE_MIGRATE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Migrate = b
		}
	}
	if v := os.Getenv("SMSQUEUE_TABLE"); v != "" {
		cfg.Table = v
	}
	if v := os.Getenv("SMSQUEUE_AUTH_TABLE"); v != "" {
		cfg.AuthTable = v
	}
	if v := os.Getenv("SMSQUEUE_WORKER_KEY"); v != "" {
		cfg.WorkerKeys = splitList(v)
	}
	if v := os.Getenv("SMSQUEUE_API_TOKENS"); v != "" {
		cfg.APITokens = splitList(v)
	}
	if v := os.Getenv("SMSQUEUE_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAttempts = n
		}
	}
	if v := os.Getenv("SMSQUEUE_LEASE"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Lease = d
		}
	}
	if v := os.Getenv("SMSQUEUE_SWEEP_EVERY"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.SweepEvery = d
		}
	}
	if v := os.Getenv("SMSQUEUE_SWEEP_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.SweepLimit = n
		}
	}
	if v := os.Getenv("SMSQUEUE_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("SMSQUEUE_SHUTDOWN_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.ShutdownTimeout = d
		}
	}
}
