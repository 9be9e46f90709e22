package smsqueue

import "context"

// Deliverer attempts delivery of a single claimed message.
type Deliverer interface {
	// Deliver sends the message and returns an error when the attempt failed.
	Deliver(ctx context.Context, msg Message) error
}

// DelivererFunc adapts a function to Deliverer.
type DelivererFunc func(ctx context.Context, msg Message) error

// Deliver implements Deliverer.
func (fn DelivererFunc) Deliver(ctx context.Context, msg Message) error {
	return fn(ctx, msg)
}

// FailureHandler is called when a delivery attempt returns an error.
type FailureHandler func(ctx context.Context, msg Message, err error)

// Claimer hands out one queued message per call.
type Claimer interface {
	Claim(ctx context.Context) (Message, bool, error)
}

// Reporter accepts delivery outcomes.
type Reporter interface {
	Report(ctx context.Context, report Report) (Ack, error)
}
