package smsqueue

import (
	"context"
	"errors"
	"testing"
	"time"
)

type fakeQueue struct {
	enqueued   []Submission
	enqueueErr error
	nextID     int64

	claim    Message
	claimOK  bool
	claimErr error

	status    Status
	reportErr error
	sentIDs   []int64
	requeued  []int64
	tokens    []string
	getErr    error
	queued    int
	countCall int
}

func (q *fakeQueue) Enqueue(_ context.Context, receiver, payload string) (int64, error) {
	if q.enqueueErr != nil {
		return 0, q.enqueueErr
	}
	q.nextID++
	q.enqueued = append(q.enqueued, Submission{Receiver: receiver, Payload: payload})
	return q.nextID, nil
}

func (q *fakeQueue) ClaimNext(context.Context) (Message, bool, error) {
	return q.claim, q.claimOK, q.claimErr
}

func (q *fakeQueue) MarkSent(_ context.Context, id int64, token string) (Status, error) {
	q.sentIDs = append(q.sentIDs, id)
	q.tokens = append(q.tokens, token)
	return q.status, q.reportErr
}

func (q *fakeQueue) Requeue(_ context.Context, id int64, token string) (Status, error) {
	q.requeued = append(q.requeued, id)
	q.tokens = append(q.tokens, token)
	return q.status, q.reportErr
}

func (q *fakeQueue) Get(_ context.Context, id int64) (Message, error) {
	if q.getErr != nil {
		return Message{}, q.getErr
	}
	return Message{ID: id}, nil
}

func (q *fakeQueue) QueuedCount(context.Context) (int, error) {
	q.countCall++
	return q.queued, nil
}

type fakeAuthorizer struct {
	tokens map[string]bool
	err    error
	calls  int
}

func (a *fakeAuthorizer) IsAuthorized(_ context.Context, token string) (bool, error) {
	a.calls++
	if a.err != nil {
		return false, a.err
	}
	return a.tokens[token], nil
}

type captureMetrics struct {
	submitted, claimed, sent, requeued, dead, expired int
	queued, queuedCalls                               int
	claimDurations                                    int
}

func (m *captureMetrics) AddSubmitted(n int)                  { m.submitted += n }
func (m *captureMetrics) AddClaimed(n int)                    { m.claimed += n }
func (m *captureMetrics) AddSent(n int)                       { m.sent += n }
func (m *captureMetrics) AddRequeued(n int)                   { m.requeued += n }
func (m *captureMetrics) AddDead(n int)                       { m.dead += n }
func (m *captureMetrics) AddExpired(n int)                    { m.expired += n }
func (m *captureMetrics) ObserveClaimDuration(time.Duration) { m.claimDurations++ }
func (m *captureMetrics) SetQueued(n int) {
	m.queued = n
	m.queuedCalls++
}

func TestServiceSubmit(t *testing.T) {
	queue := &fakeQueue{}
	auth := &fakeAuthorizer{tokens: map[string]bool{"T1": true, "T2": false}}
	metrics := &captureMetrics{}
	svc := NewService(queue, auth, WithMetrics(metrics))

	id, err := svc.Submit(context.Background(), Submission{Token: "T1", Receiver: "+15550001234", Payload: "hi"})
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if id != 1 {
		t.Fatalf("expected id 1, got %d", id)
	}
	if len(queue.enqueued) != 1 || queue.enqueued[0].Receiver != "+15550001234" || queue.enqueued[0].Payload != "hi" {
		t.Fatalf("unexpected enqueued records: %+v", queue.enqueued)
	}
	if metrics.submitted != 1 {
		t.Fatalf("expected submitted metric, got %d", metrics.submitted)
	}
}

func TestServiceSubmitFailClosed(t *testing.T) {
	cases := []struct {
		name  string
		token string
	}{
		{name: "unknown token", token: "nobody"},
		{name: "unauthorized token", token: "T2"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			queue := &fakeQueue{}
			auth := &fakeAuthorizer{tokens: map[string]bool{"T2": false}}
			svc := NewService(queue, auth)

			_, err := svc.Submit(context.Background(), Submission{Token: tc.token, Receiver: "r", Payload: "p"})
			if !errors.Is(err, ErrUnauthorized) {
				t.Fatalf("expected ErrUnauthorized, got %v", err)
			}
			if len(queue.enqueued) != 0 {
				t.Fatalf("expected no record to be created")
			}
		})
	}
}

func TestServiceSubmitValidationSkipsAuthorizer(t *testing.T) {
	queue := &fakeQueue{}
	auth := &fakeAuthorizer{tokens: map[string]bool{"T1": true}}
	svc := NewService(queue, auth)

	_, err := svc.Submit(context.Background(), Submission{Token: "T1", Receiver: "r"})
	if !errors.Is(err, ErrPayloadRequired) {
		t.Fatalf("expected ErrPayloadRequired, got %v", err)
	}
	if auth.calls != 0 {
		t.Fatalf("expected authorizer not to be consulted, got %d calls", auth.calls)
	}
}

func TestServiceSubmitChecksAuthorizationEveryTime(t *testing.T) {
	queue := &fakeQueue{}
	auth := &fakeAuthorizer{tokens: map[string]bool{"T1": true}}
	svc := NewService(queue, auth)
	sub := Submission{Token: "T1", Receiver: "r", Payload: "p"}

	if _, err := svc.Submit(context.Background(), sub); err != nil {
		t.Fatalf("submit: %v", err)
	}
	auth.tokens["T1"] = false
	if _, err := svc.Submit(context.Background(), sub); !errors.Is(err, ErrUnauthorized) {
		t.Fatalf("expected revocation to take effect, got %v", err)
	}
	if auth.calls != 2 {
		t.Fatalf("expected 2 authorizer calls, got %d", auth.calls)
	}
}

func TestServiceSubmitStorageErrors(t *testing.T) {
	authErr := errors.New("auth table unavailable")
	svc := NewService(&fakeQueue{}, &fakeAuthorizer{err: authErr})
	_, err := svc.Submit(context.Background(), Submission{Token: "T1", Receiver: "r", Payload: "p"})
	if !errors.Is(err, ErrStorage) || !errors.Is(err, authErr) {
		t.Fatalf("expected wrapped storage error, got %v", err)
	}

	enqueueErr := errors.New("disk full")
	svc = NewService(&fakeQueue{enqueueErr: enqueueErr}, &fakeAuthorizer{tokens: map[string]bool{"T1": true}})
	_, err = svc.Submit(context.Background(), Submission{Token: "T1", Receiver: "r", Payload: "p"})
	if !IsRetryable(err) || !errors.Is(err, enqueueErr) {
		t.Fatalf("expected retryable enqueue error, got %v", err)
	}
}

func TestServiceClaim(t *testing.T) {
	metrics := &captureMetrics{}
	queue := &fakeQueue{claim: Message{ID: 7, Receiver: "r", Payload: "p", Status: StatusProcessing}, claimOK: true}
	svc := NewService(queue, &fakeAuthorizer{}, WithMetrics(metrics))

	msg, ok, err := svc.Claim(context.Background())
	if err != nil || !ok {
		t.Fatalf("claim: ok=%v err=%v", ok, err)
	}
	if msg.ID != 7 {
		t.Fatalf("expected id 7, got %d", msg.ID)
	}
	if metrics.claimed != 1 || metrics.claimDurations != 1 {
		t.Fatalf("expected claim metrics, got %+v", metrics)
	}
}

func TestServiceClaimEmptyIsNotAnError(t *testing.T) {
	svc := NewService(&fakeQueue{}, &fakeAuthorizer{})

	_, ok, err := svc.Claim(context.Background())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if ok {
		t.Fatalf("expected empty claim")
	}
}

func TestServiceClaimStorageError(t *testing.T) {
	svc := NewService(&fakeQueue{claimErr: errors.New("conn refused")}, &fakeAuthorizer{})

	_, _, err := svc.Claim(context.Background())
	if !IsRetryable(err) {
		t.Fatalf("expected retryable error, got %v", err)
	}
}

func TestServiceReport(t *testing.T) {
	cases := []struct {
		name        string
		report      Report
		status      Status
		reportErr   error
		wantErr     error
		wantApplied bool
		wantSent    int
		wantRequeue int
		wantDead    int
	}{
		{
			name:        "sent",
			report:      Report{ID: 1, Outcome: OutcomeSent, ClaimToken: "tok"},
			status:      StatusSent,
			wantApplied: true,
			wantSent:    1,
		},
		{
			name:        "failed requeues",
			report:      Report{ID: 1, Outcome: OutcomeFailed},
			status:      StatusQueued,
			wantApplied: true,
			wantRequeue: 1,
		},
		{
			name:        "failed dead-letters",
			report:      Report{ID: 1, Outcome: OutcomeFailed},
			status:      StatusDead,
			wantApplied: true,
			wantDead:    1,
		},
		{
			name:        "duplicate is acknowledged",
			report:      Report{ID: 1, Outcome: OutcomeSent},
			status:      StatusSent,
			reportErr:   ErrInvalidState,
			wantApplied: false,
		},
		{
			name:      "unknown id",
			report:    Report{ID: 9, Outcome: OutcomeSent},
			reportErr: ErrNotFound,
			wantErr:   ErrNotFound,
		},
		{
			name:    "invalid outcome",
			report:  Report{ID: 1, Outcome: "maybe"},
			wantErr: ErrValidation,
		},
		{
			name:      "storage failure",
			report:    Report{ID: 1, Outcome: OutcomeSent},
			reportErr: errors.New("tx aborted"),
			wantErr:   ErrStorage,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			metrics := &captureMetrics{}
			queue := &fakeQueue{status: tc.status, reportErr: tc.reportErr}
			svc := NewService(queue, &fakeAuthorizer{}, WithMetrics(metrics))

			ack, err := svc.Report(context.Background(), tc.report)
			if tc.wantErr != nil {
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("expected %v, got %v", tc.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("report: %v", err)
			}
			if ack.Applied != tc.wantApplied {
				t.Fatalf("expected applied=%v, got %v", tc.wantApplied, ack.Applied)
			}
			if ack.Status != tc.status || ack.ID != tc.report.ID {
				t.Fatalf("unexpected ack %+v", ack)
			}
			if metrics.sent != tc.wantSent || metrics.requeued != tc.wantRequeue || metrics.dead != tc.wantDead {
				t.Fatalf("unexpected metrics %+v", metrics)
			}
			if len(queue.tokens) != 1 || queue.tokens[0] != tc.report.ClaimToken {
				t.Fatalf("expected claim token to be forwarded, got %v", queue.tokens)
			}
		})
	}
}

func TestServiceGet(t *testing.T) {
	svc := NewService(&fakeQueue{}, &fakeAuthorizer{})
	if _, err := svc.Get(context.Background(), 0); !errors.Is(err, ErrInvalidID) {
		t.Fatalf("expected ErrInvalidID, got %v", err)
	}

	svc = NewService(&fakeQueue{getErr: ErrNotFound}, &fakeAuthorizer{})
	if _, err := svc.Get(context.Background(), 3); !errors.Is(err, ErrNotFound) || IsRetryable(err) {
		t.Fatalf("expected plain ErrNotFound, got %v", err)
	}
}

func TestServiceQueuedCountDisabledByDefault(t *testing.T) {
	queue := &fakeQueue{queued: 10}
	metrics := &captureMetrics{}
	svc := NewService(queue, &fakeAuthorizer{}, WithMetrics(metrics))

	svc.maybeRecordQueued(context.Background())

	if queue.countCall != 0 {
		t.Fatalf("expected no queued count calls, got %d", queue.countCall)
	}
	if metrics.queuedCalls != 0 {
		t.Fatalf("expected no queued metric updates, got %d", metrics.queuedCalls)
	}
}

func TestServiceQueuedCountEnabled(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	clock := &sequenceClock{times: []time.Time{now, now, now.Add(time.Second)}}
	queue := &fakeQueue{queued: 42}
	metrics := &captureMetrics{}
	svc := NewService(queue, &fakeAuthorizer{},
		WithClock(clock),
		WithMetrics(metrics),
		WithQueuedInterval(time.Second),
	)

	svc.maybeRecordQueued(context.Background())
	svc.maybeRecordQueued(context.Background())
	svc.maybeRecordQueued(context.Background())

	if queue.countCall != 2 {
		t.Fatalf("expected 2 queued count calls, got %d", queue.countCall)
	}
	if metrics.queuedCalls != 2 {
		t.Fatalf("expected 2 queued metric updates, got %d", metrics.queuedCalls)
	}
	if metrics.queued != 42 {
		t.Fatalf("expected queued count 42, got %d", metrics.queued)
	}
}

func TestNewServicePanicsOnNil(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("expected panic")
		}
	}()
	NewService(nil, &fakeAuthorizer{})
}
