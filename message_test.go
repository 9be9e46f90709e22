package smsqueue

import (
	"errors"
	"testing"
)

func TestSubmissionValidate(t *testing.T) {
	cases := []struct {
		name string
		sub  Submission
		err  error
	}{
		{
			name: "missing token",
			sub:  Submission{Receiver: "+15550001234", Payload: "hi"},
			err:  ErrTokenRequired,
		},
		{
			name: "blank token",
			sub:  Submission{Token: "  ", Receiver: "+15550001234", Payload: "hi"},
			err:  ErrTokenRequired,
		},
		{
			name: "missing receiver",
			sub:  Submission{Token: "T1", Payload: "hi"},
			err:  ErrReceiverRequired,
		},
		{
			name: "missing payload",
			sub:  Submission{Token: "T1", Receiver: "+15550001234"},
			err:  ErrPayloadRequired,
		},
		{
			name: "valid",
			sub:  Submission{Token: "T1", Receiver: "+15550001234", Payload: "hi"},
			err:  nil,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.sub.Validate()
			if tc.err == nil && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if tc.err != nil && err != tc.err {
				t.Fatalf("expected %v, got %v", tc.err, err)
			}
			if tc.err != nil && !errors.Is(err, ErrValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestReportValidate(t *testing.T) {
	if err := (Report{ID: 0, Outcome: OutcomeSent}).Validate(); err != ErrInvalidID {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}
	if err := (Report{ID: 1, Outcome: "lost"}).Validate(); err != ErrInvalidOutcome {
		t.Fatalf("expected ErrInvalidOutcome, got %v", err)
	}
	if err := (Report{ID: 1, Outcome: OutcomeFailed}).Validate(); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	if !IsRetryable(StorageError("claim", errors.New("conn reset"))) {
		t.Fatalf("storage errors must be retryable")
	}
	for _, err := range []error{ErrUnauthorized, ErrTokenRequired, ErrNotFound, ErrInvalidState, nil} {
		if IsRetryable(err) {
			t.Fatalf("expected %v not to be retryable", err)
		}
	}
}

func TestNewClaimTokenUnique(t *testing.T) {
	a, b := NewClaimToken(), NewClaimToken()
	if a == "" || a == b {
		t.Fatalf("expected distinct non-empty tokens, got %q and %q", a, b)
	}
}
