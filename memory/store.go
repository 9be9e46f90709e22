package memory

import (
	"context"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	smsqueue "github.com/velmie/smsqueue"
)

type record struct {
	id        int64
	receiver  string
	payload   string
	createdAt time.Time

	status atomic.Int32

	// mu guards the claim fields and serializes transitions out of processing.
	mu         sync.Mutex
	attempts   int
	claimToken string
	claimedAt  time.Time
}

func (r *record) load() smsqueue.Status {
	return smsqueue.Status(r.status.Load())
}

func (r *record) snapshot() smsqueue.Message {
	r.mu.Lock()
	defer r.mu.Unlock()

	return smsqueue.Message{
		ID:         r.id,
		Receiver:   r.receiver,
		Payload:    r.payload,
		Status:     r.load(),
		Attempts:   r.attempts,
		ClaimToken: r.claimToken,
		ClaimedAt:  r.claimedAt,
		CreatedAt:  r.createdAt,
	}
}

// Store is an in-memory smsqueue.Store.
type Store struct {
	cfg Config

	mu      sync.RWMutex
	nextID  int64
	ordered []*record
	byID    map[int64]*record

	authMu sync.RWMutex
	tokens map[string]bool
}

var _ smsqueue.Store = (*Store)(nil)

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	var cfg Config
	for _, opt := range opts {
		opt(&cfg)
	}

	return &Store{
		cfg:    cfg.withDefaults(),
		byID:   make(map[int64]*record),
		tokens: make(map[string]bool),
	}
}

// Enqueue appends a queued message.
func (s *Store) Enqueue(ctx context.Context, receiver, payload string) (int64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	rec := &record{
		receiver:  receiver,
		payload:   payload,
		createdAt: s.cfg.Clock.Now(),
	}
	rec.status.Store(int32(smsqueue.StatusQueued))

	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	rec.id = s.nextID
	s.byID[rec.id] = rec

	// Ids grow monotonically, so only a clock step backwards moves the insert point.
	idx := sort.Search(len(s.ordered), func(i int) bool {
		return rec.createdAt.Before(s.ordered[i].createdAt)
	})
	s.ordered = append(s.ordered, nil)
	copy(s.ordered[idx+1:], s.ordered[idx:])
	s.ordered[idx] = rec

	return rec.id, nil
}

// ClaimNext claims the oldest queued message.
func (s *Store) ClaimNext(ctx context.Context) (smsqueue.Message, bool, error) {
	if err := ctx.Err(); err != nil {
		return smsqueue.Message{}, false, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, rec := range s.ordered {
		if rec.load() != smsqueue.StatusQueued {
			continue
		}
		if !rec.status.CompareAndSwap(int32(smsqueue.StatusQueued), int32(smsqueue.StatusProcessing)) {
			continue
		}

		rec.mu.Lock()
		rec.claimToken = s.cfg.TokenFunc()
		rec.claimedAt = s.cfg.Clock.Now()
		rec.mu.Unlock()

		return rec.snapshot(), true, nil
	}

	return smsqueue.Message{}, false, nil
}

// MarkSent confirms delivery of a processing message.
func (s *Store) MarkSent(ctx context.Context, id int64, claimToken string) (smsqueue.Status, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	current := rec.load()
	if current != smsqueue.StatusProcessing || !tokenMatches(rec.claimToken, claimToken) {
		return current, smsqueue.ErrInvalidState
	}

	rec.status.Store(int32(smsqueue.StatusSent))

	return smsqueue.StatusSent, nil
}

// Requeue returns a processing message to the queue or dead-letters it.
func (s *Store) Requeue(ctx context.Context, id int64, claimToken string) (smsqueue.Status, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return 0, err
	}

	rec.mu.Lock()
	defer rec.mu.Unlock()

	current := rec.load()
	if current != smsqueue.StatusProcessing || !tokenMatches(rec.claimToken, claimToken) {
		return current, smsqueue.ErrInvalidState
	}

	return s.release(rec), nil
}

// RequeueExpired requeues up to limit messages claimed before the cutoff.
func (s *Store) RequeueExpired(ctx context.Context, before time.Time, limit int) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, rec := range s.ordered {
		if limit > 0 && count >= limit {
			break
		}
		if rec.load() != smsqueue.StatusProcessing {
			continue
		}

		rec.mu.Lock()
		// A zero claimedAt belongs to a claim that is still being recorded.
		if rec.load() == smsqueue.StatusProcessing && !rec.claimedAt.IsZero() && rec.claimedAt.Before(before) {
			s.release(rec)
			count++
		}
		rec.mu.Unlock()
	}

	return count, nil
}

// QueuedCount returns the number of queued messages.
func (s *Store) QueuedCount(ctx context.Context) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	var count int
	for _, rec := range s.ordered {
		if rec.load() == smsqueue.StatusQueued {
			count++
		}
	}

	return count, nil
}

// Get returns a single message.
func (s *Store) Get(ctx context.Context, id int64) (smsqueue.Message, error) {
	rec, err := s.lookup(ctx, id)
	if err != nil {
		return smsqueue.Message{}, err
	}

	return rec.snapshot(), nil
}

// release must be called with rec.mu held and rec in processing.
func (s *Store) release(rec *record) smsqueue.Status {
	rec.attempts++
	rec.claimToken = ""
	rec.claimedAt = time.Time{}

	next := smsqueue.StatusQueued
	if s.cfg.MaxAttempts > 0 && rec.attempts >= s.cfg.MaxAttempts {
		next = smsqueue.StatusDead
	}
	rec.status.Store(int32(next))

	return next
}

func (s *Store) lookup(ctx context.Context, id int64) (*record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	rec, ok := s.byID[id]
	s.mu.RUnlock()
	if !ok {
		return nil, smsqueue.ErrNotFound
	}

	return rec, nil
}

func tokenMatches(current, reported string) bool {
	return reported == "" || reported == current
}
