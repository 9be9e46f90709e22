package smsqueue

import (
	"errors"
	"fmt"
)

var (
	// ErrValidation marks missing or malformed input. It is permanent.
	ErrValidation = errors.New("smsqueue: invalid request")
	// ErrUnauthorized is returned when the submit token is unknown or not authorized. It is permanent.
	ErrUnauthorized = errors.New("smsqueue: token is not authorized")
	// ErrNotFound is returned when a report references an unknown message.
	ErrNotFound = errors.New("smsqueue: message not found")
	// ErrInvalidState is returned when a transition does not apply to the current status.
	ErrInvalidState = errors.New("smsqueue: message is not in a reportable state")
	// ErrStorage wraps persistence failures. It is transient.
	ErrStorage = errors.New("smsqueue: storage failure")
	// ErrWorkerPanic indicates a worker goroutine panic.
	ErrWorkerPanic = errors.New("smsqueue: worker panic")

	// ErrTokenRequired is returned when Submission.Token is empty.
	ErrTokenRequired = fmt.Errorf("%w: token is required", ErrValidation)
	// ErrReceiverRequired is returned when Submission.Receiver is empty.
	ErrReceiverRequired = fmt.Errorf("%w: receiver is required", ErrValidation)
	// ErrPayloadRequired is returned when Submission.Payload is empty.
	ErrPayloadRequired = fmt.Errorf("%w: payload is required", ErrValidation)
	// ErrInvalidID is returned when a report id is not positive.
	ErrInvalidID = fmt.Errorf("%w: id must be positive", ErrValidation)
	// ErrInvalidOutcome is returned when a report outcome is neither sent nor failed.
	ErrInvalidOutcome = fmt.Errorf("%w: outcome must be sent or failed", ErrValidation)
)

// StorageError wraps err as ErrStorage with a short operation label.
func StorageError(op string, err error) error {
	return fmt.Errorf("%w: %s: %w", ErrStorage, op, err)
}

// IsRetryable reports whether the caller may retry the operation with backoff.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrStorage)
}
