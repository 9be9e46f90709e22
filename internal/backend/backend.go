// Package backend opens the configured smsqueue Store for the commands.
package backend

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"

	"github.com/velmie/smsqueue"
	"github.com/velmie/smsqueue/gormstore"
	"github.com/velmie/smsqueue/internal/config"
	"github.com/velmie/smsqueue/memory"
	"github.com/velmie/smsqueue/mysql"
	"github.com/velmie/smsqueue/postgres"
)

type migrator interface {
	Migrate(ctx context.Context) error
}

// Open builds the Store selected by cfg.Backend, creating tables first when cfg.Migrate
// is set. The returned func releases its connections.
func Open(ctx context.Context, cfg config.Config, logger smsqueue.Logger) (smsqueue.Store, func() error, error) {
	noop := func() error { return nil }

	if cfg.Backend != config.BackendMemory && len(cfg.APITokens) > 0 {
		logger.Warn("smsqueue api tokens ignored", "backend", cfg.Backend, "reason", "grants are managed in the authorization table")
	}

	var (
		store   smsqueue.Store
		closeFn = noop
	)

	switch cfg.Backend {
	case config.BackendMemory:
		mem := memory.NewStore(memory.WithMaxAttempts(cfg.MaxAttempts))
		for _, token := range cfg.APITokens {
			mem.Grant(token)
		}
		logger.Warn("smsqueue using in-memory backend", "reason", "messages are lost on restart")

		return mem, noop, nil

	case config.BackendMySQL:
		db, err := sql.Open("mysql", cfg.DSN)
		if err != nil {
			return nil, nil, fmt.Errorf("open mysql: %w", err)
		}
		db.SetMaxOpenConns(cfg.DBMaxConns)
		db.SetMaxIdleConns(cfg.DBMaxConns)
		closeFn = db.Close

		store, err = mysql.NewStore(db,
			mysql.WithTable(cfg.Table),
			mysql.WithAuthTable(cfg.AuthTable),
			mysql.WithMaxAttempts(cfg.MaxAttempts),
			mysql.WithLogger(logger),
		)
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("init mysql store: %w", err)
		}

	case config.BackendPostgres:
		pool, err := postgres.NewPool(ctx, cfg.DSN, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() error {
			pool.Close()
			return nil
		}

		store, err = postgres.NewStore(pool,
			postgres.WithTable(cfg.Table),
			postgres.WithAuthTable(cfg.AuthTable),
			postgres.WithMaxAttempts(cfg.MaxAttempts),
			postgres.WithLogger(logger),
		)
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("init postgres store: %w", err)
		}

	case config.BackendGorm:
		db, err := gormstore.Open(ctx, cfg.DSN, cfg.DBMaxConns)
		if err != nil {
			return nil, nil, err
		}
		closeFn = func() error { return gormstore.Close(db) }

		store, err = gormstore.NewStore(db,
			gormstore.WithMaxAttempts(cfg.MaxAttempts),
			gormstore.WithLogger(logger),
		)
		if err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("init gorm store: %w", err)
		}

	default:
		return nil, nil, fmt.Errorf("%w: %q", config.ErrUnknownBackend, cfg.Backend)
	}

	if cfg.Migrate {
		if err := store.(migrator).Migrate(ctx); err != nil {
			_ = closeFn()
			return nil, nil, fmt.Errorf("migrate %s: %w", cfg.Backend, err)
		}
		logger.Info("smsqueue schema ready", "backend", cfg.Backend)
	}

	return store, closeFn, nil
}
