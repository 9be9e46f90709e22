// Package config holds process configuration for the smsqueue commands: defaults,
// SMSQUEUE_* environment overrides and command-line flags, in that order.
package config
