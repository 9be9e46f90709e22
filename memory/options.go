package memory

import smsqueue "github.com/velmie/smsqueue"

// Config defines memory store behavior.
type Config struct {
	MaxAttempts int
	Clock       smsqueue.Clock
	TokenFunc   smsqueue.TokenFunc
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

	return c
}

// Option configures the memory store.
type Option func(*Config)

// WithMaxAttempts sets the attempt limit after which a failed message is dead-lettered.
// Zero keeps retrying forever.
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
