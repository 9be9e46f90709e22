package smsqueue

import (
	"context"
	"errors"
	"sync"
	"time"
)

// Service is the boundary the transport layer calls: it gates submissions on the
// Authorizer and applies reported outcomes to the Queue.
type Service struct {
	queue Queue
	auth  Authorizer
	cfg   Config

	queuedMu sync.Mutex
	queuedAt time.Time
}

var (
	_ Claimer  = (*Service)(nil)
	_ Reporter = (*Service)(nil)
)

// NewService constructs a Service with defaults and optional settings.
func NewService(queue Queue, auth Authorizer, opts ...Option) *Service {
	if queue == nil {
		panic("smsqueue: nil Queue")
	}
	if auth == nil {
		panic("smsqueue: nil Authorizer")
	}

	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Service{
		queue: queue,
		auth:  auth,
		cfg:   cfg.withDefaults(),
	}
}

// Submit authorizes the submission and enqueues it.
// The Authorizer is consulted on every call so that revocation takes effect immediately.
func (s *Service) Submit(ctx context.Context, sub Submission) (int64, error) {
	if err := sub.Validate(); err != nil {
		return 0, err
	}

	authorized, err := s.auth.IsAuthorized(ctx, sub.Token)
	if err != nil {
		s.cfg.Logger.Error("smsqueue authorization lookup failed", "err", err)

		return 0, asStorageError("authorize", err)
	}
	if !authorized {
		s.cfg.Logger.Warn("smsqueue submit rejected", "reason", "unauthorized")

		return 0, ErrUnauthorized
	}

	id, err := s.queue.Enqueue(ctx, sub.Receiver, sub.Payload)
	if err != nil {
		s.cfg.Logger.Error("smsqueue enqueue failed", "err", err)

		return 0, asStorageError("enqueue", err)
	}

	s.cfg.Metrics.AddSubmitted(1)
	s.cfg.Logger.Debug("smsqueue message queued", "id", id)

	return id, nil
}

// Claim hands the oldest queued message to the caller. ok is false when the queue is empty.
func (s *Service) Claim(ctx context.Context) (Message, bool, error) {
	start := time.Now()
	msg, ok, err := s.queue.ClaimNext(ctx)
	s.cfg.Metrics.ObserveClaimDuration(time.Since(start))
	if err != nil {
		s.cfg.Logger.Error("smsqueue claim failed", "err", err)

		return Message{}, false, asStorageError("claim", err)
	}
	if !ok {
		s.maybeRecordQueued(ctx)

		return Message{}, false, nil
	}

	s.cfg.Metrics.AddClaimed(1)
	s.cfg.Logger.Debug("smsqueue message claimed", "id", msg.ID, "attempts", msg.Attempts)

	return msg, true, nil
}

// Report applies a delivery outcome. Reports that no longer apply, such as a duplicate
// confirmation or a report for a reclaimed message, are acknowledged with Applied=false.
func (s *Service) Report(ctx context.Context, report Report) (Ack, error) {
	if err := report.Validate(); err != nil {
		return Ack{}, err
	}

	var (
		status Status
		err    error
	)
	switch report.Outcome {
	case OutcomeSent:
		status, err = s.queue.MarkSent(ctx, report.ID, report.ClaimToken)
	case OutcomeFailed:
		status, err = s.queue.Requeue(ctx, report.ID, report.ClaimToken)
	}

	switch {
	case errors.Is(err, ErrInvalidState):
		s.cfg.Logger.Info("smsqueue report ignored", "id", report.ID, "outcome", report.Outcome, "status", status)

		return Ack{ID: report.ID, Status: status, Applied: false}, nil
	case errors.Is(err, ErrNotFound):
		return Ack{}, err
	case err != nil:
		s.cfg.Logger.Error("smsqueue report failed", "id", report.ID, "outcome", report.Outcome, "err", err)

		return Ack{}, asStorageError("report", err)
	}

	switch status {
	case StatusSent:
		s.cfg.Metrics.AddSent(1)
	case StatusQueued:
		s.cfg.Metrics.AddRequeued(1)
	case StatusDead:
		s.cfg.Metrics.AddDead(1)
		s.cfg.Logger.Warn("smsqueue message dead-lettered", "id", report.ID)
	}

	return Ack{ID: report.ID, Status: status, Applied: true}, nil
}

// Get returns a single message.
func (s *Service) Get(ctx context.Context, id int64) (Message, error) {
	if id <= 0 {
		return Message{}, ErrInvalidID
	}

	msg, err := s.queue.Get(ctx, id)
	if err != nil && !errors.Is(err, ErrNotFound) {
		return Message{}, asStorageError("get", err)
	}

	return msg, err
}

func (s *Service) maybeRecordQueued(ctx context.Context) {
	counter, ok := s.queue.(QueuedCounter)
	if !ok {
		return
	}
	if s.cfg.QueuedInterval <= 0 {
		return
	}
	if ctx.Err() != nil {
		return
	}

	now := s.cfg.Clock.Now()
	s.queuedMu.Lock()
	nextAllowed := s.queuedAt.Add(s.cfg.QueuedInterval)
	if !s.queuedAt.IsZero() && now.Before(nextAllowed) {
		s.queuedMu.Unlock()

		return
	}
	s.queuedAt = now
	s.queuedMu.Unlock()

	count, err := counter.QueuedCount(ctx)
	if err != nil {
		s.cfg.Logger.Warn("smsqueue queued count failed", "err", err)

		return
	}

	s.cfg.Metrics.SetQueued(count)
}

func asStorageError(op string, err error) error {
	if errors.Is(err, ErrStorage) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}

	return StorageError(op, err)
}
