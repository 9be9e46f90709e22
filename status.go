package smsqueue

import "fmt"

// Status represents the lifecycle state of a message.
type Status int16

const (
	// StatusQueued indicates the message is waiting to be claimed.
	StatusQueued Status = 0
	// StatusProcessing indicates the message is held by exactly one worker.
	StatusProcessing Status = 1
	// StatusSent indicates delivery was confirmed. It is terminal.
	StatusSent Status = 2
	// StatusDead indicates the message exceeded the attempt limit. It is terminal.
	StatusDead Status = -1
)

// String returns the wire name of the status.
func (s Status) String() string {
	switch s {
	case StatusQueued:
		return "queued"
	case StatusProcessing:
		return "processing"
	case StatusSent:
		return "sent"
	case StatusDead:
		return "dead"
	default:
		return fmt.Sprintf("status(%d)", int16(s))
	}
}

// ParseStatus maps a wire name back to a Status.
func ParseStatus(value string) (Status, error) {
	switch value {
	case "queued":
		return StatusQueued, nil
	case "processing":
		return StatusProcessing, nil
	case "sent":
		return StatusSent, nil
	case "dead":
		return StatusDead, nil
	default:
		return 0, fmt.Errorf("smsqueue: unknown status %q", value)
	}
}

// Terminal reports whether no further transition leaves s.
func (s Status) Terminal() bool {
	return s == StatusSent || s == StatusDead
}

// CanTransition reports whether s -> to is an edge of the state machine.
func (s Status) CanTransition(to Status) bool {
	switch s {
	case StatusQueued:
		return to == StatusProcessing
	case StatusProcessing:
		return to == StatusSent || to == StatusQueued || to == StatusDead
	default:
		return false
	}
}

// Outcome is the delivery result a worker reports for a claimed message.
type Outcome string

const (
	// OutcomeSent confirms delivery.
	OutcomeSent Outcome = "sent"
	// OutcomeFailed reports a failed attempt; the message is requeued.
	OutcomeFailed Outcome = "failed"
)

// ParseOutcome validates a reported outcome.
func ParseOutcome(value string) (Outcome, error) {
	switch Outcome(value) {
	case OutcomeSent, OutcomeFailed:
		return Outcome(value), nil
	default:
		return "", ErrInvalidOutcome
	}
}
