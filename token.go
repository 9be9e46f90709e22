package smsqueue

import "github.com/google/uuid"

// TokenFunc produces claim tokens.
type TokenFunc func() string

// NewClaimToken returns a random UUID identifying a single claim.
func NewClaimToken() string {
	return uuid.NewString()
}
