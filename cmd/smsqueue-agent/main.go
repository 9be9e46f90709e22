// Command smsqueue-agent is a loopback worker: it claims messages from a smsqueue server,
// logs them instead of sending, and confirms each one. Use it to smoke test a deployment.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/velmie/smsqueue"
	"github.com/velmie/smsqueue/httpapi"
)

const exitUsage = 2

func main() {
	var (
		server       string
		workerKey    string
		workers      int
		pollInterval time.Duration
		failEvery    int
		once         bool
		verbose      bool
	)

	flag.StringVar(&server, "server", os.Getenv("SMSQUEUE_SERVER"), "smsqueue base URL, e.g. http://localhost:8080")
	flag.StringVar(&workerKey, "worker-key", os.Getenv("SMSQUEUE_WORKER_KEY"), "Phone-Key sent with every request")
	flag.IntVar(&workers, "workers", 1, "Number of concurrent workers")
	flag.DurationVar(&pollInterval, "poll-interval", time.Second, "Sleep between empty claims")
	flag.IntVar(&failEvery, "fail-every", 0, "Report every n-th delivery as failed (0 never)")
	flag.BoolVar(&once, "once", false, "Drain the queue once and exit")
	flag.BoolVar(&verbose, "verbose", false, "Enable debug logging")
	flag.Parse()

	if server == "" || workerKey == "" {
		fmt.Fprintln(os.Stderr, "server and worker-key are required")
		flag.Usage()
		os.Exit(exitUsage)
	}

	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client, err := httpapi.NewClient(server, workerKey, nil)
	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(exitUsage)
	}

	worker := smsqueue.NewWorker(client, client, logDeliverer(logger, failEvery),
		smsqueue.WithWorkers(workers),
		smsqueue.WithPollInterval(pollInterval),
		smsqueue.WithLogger(smsqueue.NewSlogLogger(logger)),
	)

	if err := run(ctx, worker, once); err != nil {
		logger.Error("smsqueue agent exited", "err", err)
		stop()
		os.Exit(1)
	}
}

func run(ctx context.Context, worker *smsqueue.Worker, once bool) error {
	if !once {
		if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}

		return nil
	}

	for {
		processed, err := worker.RunOnce(ctx)
		if err != nil {
			return err
		}
		if !processed {
			return nil
		}
	}
}

// logDeliverer logs each message and fails every n-th one when failEvery > 0.
func logDeliverer(logger *slog.Logger, failEvery int) smsqueue.Deliverer {
	var count atomic.Int64
	return smsqueue.DelivererFunc(func(ctx context.Context, msg smsqueue.Message) error {
		n := count.Add(1)
		if failEvery > 0 && n%int64(failEvery) == 0 {
			logger.WarnContext(ctx, "smsqueue agent simulated failure", "id", msg.ID, "attempts", msg.Attempts)
			return errors.New("simulated delivery failure")
		}
		logger.InfoContext(ctx, "smsqueue agent delivered", "id", msg.ID, "to", msg.Receiver, "bytes", len(msg.Payload))

		return nil
	})
}
