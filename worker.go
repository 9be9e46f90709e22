package smsqueue

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"
)

// Worker is the agent side of the protocol: it claims messages, attempts delivery and
// reports the outcome.
type Worker struct {
	claimer   Claimer
	reporter  Reporter
	deliverer Deliverer
	cfg       Config
}

// NewWorker constructs a Worker with defaults and optional settings.
func NewWorker(claimer Claimer, reporter Reporter, deliverer Deliverer, opts ...Option) *Worker {
	if claimer == nil {
		panic("smsqueue: nil Claimer")
	}
	if reporter == nil {
		panic("smsqueue: nil Reporter")
	}
	if deliverer == nil {
		panic("smsqueue: nil Deliverer")
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Worker{
		claimer:   claimer,
		reporter:  reporter,
		deliverer: deliverer,
		cfg:       cfg.withDefaults(),
	}
}

// Run starts the polling loop with the configured number of goroutines.
func (w *Worker) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errCh := make(chan error, w.cfg.Workers)
	var wg sync.WaitGroup

	for i := 0; i < w.cfg.Workers; i++ {
		wg.Add(1)
		workerID := i
		go func() {
			defer wg.Done()
			defer func() {
				if rec := recover(); rec != nil {
					err := fmt.Errorf("%w: %v", ErrWorkerPanic, rec)
					w.cfg.Logger.Error("smsqueue worker panic", "worker", workerID, "panic", rec)
					errCh <- err
					cancel()
				}
			}()

			if err := w.runLoop(ctx); err != nil && !errors.Is(err, context.Canceled) {
				w.cfg.Logger.Error("smsqueue worker error", "worker", workerID, "err", err)
				errCh <- err
				cancel()
			}
		}()
	}

	wg.Wait()
	close(errCh)

	if err := <-errCh; err != nil {
		return err
	}
	if err := ctx.Err(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}

	return nil
}

// RunOnce claims and processes a single message. It reports false when nothing was queued.
func (w *Worker) RunOnce(ctx context.Context) (bool, error) {
	msg, ok, err := w.claimer.Claim(ctx)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}

	if err := w.process(ctx, msg); err != nil {
		return false, err
	}

	return true, nil
}

func (w *Worker) runLoop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		processed, err := w.RunOnce(ctx)
		if err != nil {
			if !IsRetryable(err) {
				return err
			}
			w.cfg.Logger.Warn("smsqueue worker transient failure", "err", err)
		}
		if processed {
			continue
		}
		if sleepErr := w.sleep(ctx); sleepErr != nil {
			return sleepErr
		}
	}
}

func (w *Worker) process(ctx context.Context, msg Message) error {
	deliverCtx := ctx
	cancel := func() {}
	if w.cfg.DeliveryTimeout > 0 {
		deliverCtx, cancel = context.WithTimeout(ctx, w.cfg.DeliveryTimeout)
	}
	err := w.deliverer.Deliver(deliverCtx, msg)
	cancel()

	outcome := OutcomeSent
	if err != nil {
		if ctx.Err() != nil {
			// Shutting down: the claim is left for the lease sweeper.
			return ctx.Err()
		}
		if w.cfg.ErrorHandler != nil {
			w.cfg.ErrorHandler(ctx, msg, err)
		}
		w.cfg.Logger.Warn("smsqueue delivery failed", "id", msg.ID, "attempts", msg.Attempts, "err", err)
		outcome = OutcomeFailed
	}

	ack, err := w.reporter.Report(ctx, Report{ID: msg.ID, Outcome: outcome, ClaimToken: msg.ClaimToken})
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			w.cfg.Logger.Warn("smsqueue reported message no longer exists", "id", msg.ID)

			return nil
		}

		return fmt.Errorf("smsqueue: report %s for %d failed: %w", outcome, msg.ID, err)
	}
	if !ack.Applied {
		w.cfg.Logger.Warn("smsqueue report not applied", "id", msg.ID, "outcome", outcome, "status", ack.Status)
	}

	return nil
}

func (w *Worker) sleep(ctx context.Context) error {
	d := w.cfg.PollInterval
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
