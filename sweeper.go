package smsqueue

import (
	"context"
	"errors"
	"time"
)

// ErrLeaseInvalid is returned when the lease duration is not positive.
var ErrLeaseInvalid = errors.New("smsqueue: lease must be positive")

// LeaseSweeper periodically returns claims that were held longer than the lease to the queue.
type LeaseSweeper struct {
	expirer LeaseExpirer
	lease   time.Duration
	cfg     Config
}

// NewLeaseSweeper creates a sweeper with defaults applied.
func NewLeaseSweeper(expirer LeaseExpirer, lease time.Duration, opts ...Option) (*LeaseSweeper, error) {
	if expirer == nil {
		panic("smsqueue: nil LeaseExpirer")
	}
	if lease <= 0 {
		return nil, ErrLeaseInvalid
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &LeaseSweeper{expirer: expirer, lease: lease, cfg: cfg.withDefaults()}, nil
}

// Run sweeps once immediately and then on every tick until the context is canceled.
func (s *LeaseSweeper) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.SweepEvery)
	defer ticker.Stop()

	if _, err := s.Sweep(ctx); err != nil {
		s.cfg.Logger.Warn("smsqueue lease sweep failed", "err", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := s.Sweep(ctx); err != nil {
				s.cfg.Logger.Warn("smsqueue lease sweep failed", "err", err)
			}
		}
	}
}

// Sweep executes a single pass and returns how many claims were reclaimed.
func (s *LeaseSweeper) Sweep(ctx context.Context) (int, error) {
	before := s.cfg.Clock.Now().Add(-s.lease)

	count, err := s.expirer.RequeueExpired(ctx, before, s.cfg.SweepLimit)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.cfg.Metrics.AddExpired(count)
		s.cfg.Logger.Info("smsqueue expired claims requeued", "count", count, "claimed_before", before)
	}

	if counter, ok := s.expirer.(QueuedCounter); ok {
		queued, err := counter.QueuedCount(ctx)
		if err != nil {
			s.cfg.Logger.Warn("smsqueue queued count failed", "err", err)

			return count, nil
		}
		s.cfg.Metrics.SetQueued(queued)
	}

	return count, nil
}
