package smsqueue

import "time"

// Metrics captures queue-level telemetry.
type Metrics interface {
	// AddSubmitted increments the count of accepted submissions.
	AddSubmitted(count int)
	// AddClaimed increments the count of successful claims.
	AddClaimed(count int)
	// AddSent increments the count of confirmed deliveries.
	AddSent(count int)
	// AddRequeued increments the count of failed attempts returned to the queue.
	AddRequeued(count int)
	// AddDead increments the count of dead-lettered messages.
	AddDead(count int)
	// AddExpired increments the count of claims reclaimed by the lease sweeper.
	AddExpired(count int)
	// SetQueued updates the current queued message count.
	SetQueued(count int)
	// ObserveClaimDuration records the time spent in a claim call.
	ObserveClaimDuration(duration time.Duration)
}

// NopMetrics is a no-op metrics recorder.
type NopMetrics struct{}

// AddSubmitted implements Metrics.
func (NopMetrics) AddSubmitted(int) {}

// AddClaimed implements Metrics.
func (NopMetrics) AddClaimed(int) {}

// AddSent implements Metrics.
func (NopMetrics) AddSent(int) {}

// AddRequeued implements Metrics.
func (NopMetrics) AddRequeued(int) {}

// AddDead implements Metrics.
func (NopMetrics) AddDead(int) {}

// AddExpired implements Metrics.
func (NopMetrics) AddExpired(int) {}

// SetQueued implements Metrics.
func (NopMetrics) SetQueued(int) {}

// ObserveClaimDuration implements Metrics.
func (NopMetrics) ObserveClaimDuration(time.Duration) {}
