package smsqueue

import (
	"context"
	"time"
)

// Queue is the durable ordered message collection that owns the claim primitive.
type Queue interface {
	// Enqueue appends a queued message and returns its id.
	Enqueue(ctx context.Context, receiver, payload string) (int64, error)
	// ClaimNext moves the oldest queued message to processing and returns it.
	// ok is false, with a nil error, when nothing is queued.
	ClaimNext(ctx context.Context) (msg Message, ok bool, err error)
	// MarkSent confirms delivery of a processing message.
	// A non-empty claimToken must match the current claim.
	MarkSent(ctx context.Context, id int64, claimToken string) (Status, error)
	// Requeue returns a processing message to the queue, or dead-letters it once
	// the attempt limit is reached. A non-empty claimToken must match the current claim.
	Requeue(ctx context.Context, id int64, claimToken string) (Status, error)
	// Get returns a single message.
	Get(ctx context.Context, id int64) (Message, error)
}

// Authorizer maps a submitter token to an authorization flag.
type Authorizer interface {
	// IsAuthorized reports whether token may submit. Unknown tokens are not authorized.
	IsAuthorized(ctx context.Context, token string) (bool, error)
}

// LeaseExpirer returns abandoned claims to the queue.
type LeaseExpirer interface {
	// RequeueExpired requeues up to limit processing messages claimed before the cutoff.
	RequeueExpired(ctx context.Context, before time.Time, limit int) (int, error)
}

// QueuedCounter provides a total count of queued messages.
type QueuedCounter interface {
	// QueuedCount returns the current number of queued messages.
	QueuedCount(ctx context.Context) (int, error)
}

// Store is implemented by every storage backend.
type Store interface {
	Queue
	Authorizer
	LeaseExpirer
	QueuedCounter
}
