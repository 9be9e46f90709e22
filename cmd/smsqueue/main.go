// Command smsqueue serves the SMS relay HTTP API on top of a selected storage backend.
//
// Configuration comes from defaults, then SMSQUEUE_* environment variables, then flags.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/velmie/smsqueue"
	"github.com/velmie/smsqueue/httpapi"
	"github.com/velmie/smsqueue/internal/backend"
	"github.com/velmie/smsqueue/internal/config"
)

const exitUsage = 2

func main() {
	cfg := config.Default()
	config.FromEnv(&cfg)
	config.RegisterFlags(flag.CommandLine, &cfg)
	flag.Parse()

	if err := cfg.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		flag.Usage()
		os.Exit(exitUsage)
	}

	logger := newLogger(os.Stdout, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("smsqueue exited", "err", err)
		stop()
		os.Exit(1)
	}
}

func newLogger(w io.Writer, level string) *slog.Logger {
	var lvl slog.Level
	switch strings.ToLower(level) {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	default:
		lvl = slog.LevelInfo
	}

	return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl}))
}

func run(ctx context.Context, cfg config.Config, slogger *slog.Logger) error {
	logger := smsqueue.NewSlogLogger(slogger)

	store, closeStore, err := backend.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := closeStore(); err != nil {
			logger.Warn("smsqueue backend close failed", "err", err)
		}
	}()

	svc := smsqueue.NewService(store, store,
		smsqueue.WithLogger(logger),
		smsqueue.WithQueuedInterval(time.Minute),
	)

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           httpapi.New(svc, cfg.WorkerKeys, slogger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, 2)

	if cfg.Lease > 0 {
		sweeper, err := smsqueue.NewLeaseSweeper(store, cfg.Lease,
			smsqueue.WithSweepEvery(cfg.SweepEvery),
			smsqueue.WithSweepLimit(cfg.SweepLimit),
			smsqueue.WithLogger(logger),
		)
		if err != nil {
			return fmt.Errorf("init sweeper: %w", err)
		}
		go func() {
			if err := sweeper.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				errCh <- fmt.Errorf("lease sweeper: %w", err)
			}
		}()
	}

	go func() {
		logger.Info("smsqueue listening", "addr", cfg.Addr, "backend", cfg.Backend)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
	case runErr = <-errCh:
	}
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("smsqueue shutdown incomplete", "err", err)
	}
	logger.Info("smsqueue stopped")

	return runErr
}
