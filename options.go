package smsqueue

import "time"

const (
	defaultWorkers      = 1
	defaultPollInterval = time.Second
	defaultSweepEvery   = 30 * time.Second
	defaultSweepLimit   = 1000
	defaultQueuedCheck  = 0
)

// Config defines how the Service, Worker and LeaseSweeper behave.
// Each component reads only the fields relevant to it.
type Config struct {
	Workers         int
	PollInterval    time.Duration
	DeliveryTimeout time.Duration
	SweepEvery      time.Duration
	SweepLimit      int
	QueuedInterval  time.Duration
	Clock           Clock
	Logger          Logger
	Metrics         Metrics
	ErrorHandler    FailureHandler
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = defaultWorkers
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaultPollInterval
	}
	if c.SweepEvery <= 0 {
		c.SweepEvery = defaultSweepEvery
	}
	if c.SweepLimit <= 0 {
		c.SweepLimit = defaultSweepLimit
	}
	if c.QueuedInterval <= 0 {
		c.QueuedInterval = defaultQueuedCheck
	}
	if c.Clock == nil {
		c.Clock = SystemClock{}
	}
	if c.Logger == nil {
		c.Logger = NopLogger{}
	}
	if c.Metrics == nil {
		c.Metrics = NopMetrics{}
	}

	return c
}

// Option configures a Service, Worker or LeaseSweeper.
type Option func(*Config)

// WithWorkers sets the number of concurrent polling goroutines of a Worker.
func WithWorkers(count int) Option {
	return func(c *Config) {
		c.Workers = count
	}
}

// WithPollInterval sets the delay between empty claims.
func WithPollInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.PollInterval = interval
	}
}

// WithDeliveryTimeout sets a per-message delivery timeout.
func WithDeliveryTimeout(timeout time.Duration) Option {
	return func(c *Config) {
		c.DeliveryTimeout = timeout
	}
}

// WithSweepEvery sets the interval between lease sweeps.
func WithSweepEvery(interval time.Duration) Option {
	return func(c *Config) {
		c.SweepEvery = interval
	}
}

// WithSweepLimit caps how many expired claims a single sweep requeues.
func WithSweepLimit(limit int) Option {
	return func(c *Config) {
		c.SweepLimit = limit
	}
}

// WithQueuedInterval sets the minimum interval between queued count samples.
// Use a positive value to enable sampling or zero to keep it disabled.
// The default is disabled.
func WithQueuedInterval(interval time.Duration) Option {
	return func(c *Config) {
		c.QueuedInterval = interval
	}
}

// WithClock sets the clock.
func WithClock(clock Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithLogger sets the logger.
func WithLogger(logger Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(metrics Metrics) Option {
	return func(c *Config) {
		c.Metrics = metrics
	}
}

// WithErrorHandler registers a callback for delivery failures.
func WithErrorHandler(handler FailureHandler) Option {
	return func(c *Config) {
		c.ErrorHandler = handler
	}
}
