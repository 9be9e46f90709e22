package gormstore

import smsqueue "github.com/velmie/smsqueue"

// Config defines GORM store behavior.
type Config struct {
	MaxAttempts int
	Clock       smsqueue.Clock
	TokenFunc   smsqueue.TokenFunc
	Logger      smsqueue.Logger
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts < 0 {
		c.MaxAttempts = 0
	}
	if c.Clock == nil {
		c.Clock = smsqueue.SystemClock{}
	}
	if c.TokenFunc == nil {
		c.TokenFunc = smsqueue.NewClaimToken
	}
	if c.Logger == nil {
		c.Logger = smsqueue.NopLogger{}
	}

	return c
}

// Option configures the GORM store.
type Option func(*Config)

// WithMaxAttempts sets the attempt limit before a message is marked dead. Zero retries forever.
func WithMaxAttempts(attempts int) Option {
	return func(c *Config) {
		c.MaxAttempts = attempts
	}
}

// WithClock sets the time source used by the store.
func WithClock(clock smsqueue.Clock) Option {
	return func(c *Config) {
		c.Clock = clock
	}
}

// WithTokenFunc sets the claim token generator.
func WithTokenFunc(fn smsqueue.TokenFunc) Option {
	return func(c *Config) {
		c.TokenFunc = fn
	}
}

// WithLogger sets the logger used for contention warnings.
func WithLogger(logger smsqueue.Logger) Option {
	return func(c *Config) {
		c.Logger = logger
	}
}
