package mysql

import smsqueue "github.com/velmie/smsqueue"

const (
	defaultTable     = "sms_queue"
	defaultAuthTable = "sms_authorization"
)

// Config defines MySQL store behavior.
type Config struct {
	Table       string
	AuthTable   string
	MaxAttempts int
	Clock       smsqueue.Clock
	TokenFunc   smsqueue.TokenFunc
	Logger      smsqueue.Logger
}

func (c Config) withDefaults() Config {
	if c.Table == "" {
		c.Table = defaultTable
	}
	if c.AuthTable == "" {
		c.AuthTable = defaultAuthTable
	}
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

// Option configures the MySQL store.
type Option func(*Config)

// WithTable sets the message table name.
func WithTable(name string) Option {
	return func(c *Config) {
		c.Table = name
	}
}

// WithAuthTable sets the authorization table name.
func WithAuthTable(name string) Option {
	return func(c *Config) {
		c.AuthTable = name
	}
}

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
