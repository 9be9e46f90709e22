package smsqueue

import (
	"strings"
	"time"
)

// Message is a stored outbound message.
type Message struct {
	ID         int64
	Receiver   string
	Payload    string
	Status     Status
	Attempts   int
	ClaimToken string
	ClaimedAt  time.Time
	CreatedAt  time.Time
}

// Submission is a request to enqueue a message on behalf of a token holder.
type Submission struct {
	Token    string
	Receiver string
	Payload  string
}

// Validate checks that every field is present.
func (s Submission) Validate() error {
	if strings.TrimSpace(s.Token) == "" {
		return ErrTokenRequired
	}
	if strings.TrimSpace(s.Receiver) == "" {
		return ErrReceiverRequired
	}
	if s.Payload == "" {
		return ErrPayloadRequired
	}

	return nil
}

// Report is a worker's delivery outcome for a claimed message.
type Report struct {
	ID      int64
	Outcome Outcome
	// ClaimToken optionally pins the report to a specific claim; a stale token is a no-op.
	ClaimToken string
}

// Validate checks the id and outcome.
func (r Report) Validate() error {
	if r.ID <= 0 {
		return ErrInvalidID
	}
	if _, err := ParseOutcome(string(r.Outcome)); err != nil {
		return err
	}

	return nil
}

// Ack acknowledges a report.
type Ack struct {
	ID     int64
	Status Status
	// Applied is false when the report did not change the message (late or duplicate report).
	Applied bool
}
