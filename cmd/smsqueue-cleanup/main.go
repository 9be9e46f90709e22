// Command smsqueue-cleanup removes old sent (and optionally dead) messages from a MySQL
// smsqueue table.
//
// It wraps mysql.CleanupMaintainer for use in cron/CronJobs when the
// server itself should not run DELETE statements.
package main

import (
	"context"
	"database/sql"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "github.com/go-sql-driver/mysql"

	"github.com/velmie/smsqueue"
	"github.com/velmie/smsqueue/mysql"
)

const exitUsage = 2

type options struct {
	dsn         string
	table       string
	retention   time.Duration
	checkEvery  time.Duration
	limit       int
	lockName    string
	includeDead bool
	once        bool
	verbose     bool
}

func main() {
	var opts options

	flag.StringVar(&opts.dsn, "dsn", os.Getenv("SMSQUEUE_DSN"), "MySQL DSN, e.g. user:pass@tcp(host:3306)/db?parseTime=true")
	flag.StringVar(&opts.table, "table", "sms_queue", "Queue table name")
	flag.DurationVar(&opts.retention, "retention", 0, "Delete rows older than this duration")
	flag.DurationVar(&opts.checkEvery, "check-every", time.Hour, "How often to run cleanup")
	flag.IntVar(&opts.limit, "limit", 0, "Max rows deleted per run (0 uses default)")
	flag.StringVar(&opts.lockName, "lock-name", "", "Advisory lock name (optional)")
	flag.BoolVar(&opts.includeDead, "include-dead", false, "Delete dead rows as well")
	flag.BoolVar(&opts.once, "once", false, "Run once and exit")
	flag.BoolVar(&opts.verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	if opts.dsn == "" {
		fmt.Fprintln(os.Stderr, "dsn is required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	level := slog.LevelInfo
	if opts.verbose {
		level = slog.LevelDebug
	}
	logger := smsqueue.NewSlogLogger(slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level})))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, opts, logger); err != nil {
		logger.Error("smsqueue cleanup failed", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, opts options, logger smsqueue.Logger) error {
	db, err := sql.Open("mysql", opts.dsn)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	defer db.Close()

	cfg := mysql.CleanupMaintainerConfig{
		Table:       opts.table,
		Retention:   opts.retention,
		CheckEvery:  opts.checkEvery,
		Limit:       opts.limit,
		IncludeDead: opts.includeDead,
		LockName:    opts.lockName,
		Clock:       smsqueue.SystemClock{},
		Logger:      logger,
	}
	maintainer, err := mysql.NewCleanupMaintainer(db, cfg)
	if err != nil {
		return fmt.Errorf("init maintainer: %w", err)
	}

	if opts.once {
		result, err := maintainer.Ensure(ctx)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}
		logger.Info("smsqueue cleanup done", "sent", result.Sent, "dead", result.Dead)

		return nil
	}

	if err := maintainer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("run maintainer: %w", err)
	}

	return nil
}
