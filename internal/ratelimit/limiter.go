// Package ratelimit bounds the rate of admitted operations per client
// identity to protect the backend from overload.
package ratelimit

import (
	"context"
	"time"
)

// Decision is the outcome of an admission check. Rejection is an expected,
// user-visible throttling signal, not an error.
type Decision struct {
	Allowed    bool
	Remaining  int
	RetryAfter time.Duration
}

// Limiter admits or rejects an operation for the given client key.
type Limiter interface {
	Admit(ctx context.Context, clientKey string) (Decision, error)
}

// Config controls the admission window.
type Config struct {
	// MaxRequests admitted per client per window.
	MaxRequests int
	// Window is the duration of the admission window.
	Window time.Duration
}

// Defaults applied when a field is unset or nonsensical.
const (
	DefaultMaxRequests = 10
	DefaultWindow      = 60 * time.Second
)

func (c Config) withDefaults() Config {
	if c.MaxRequests <= 0 {
		c.MaxRequests = DefaultMaxRequests
	}
	if c.Window <= 0 {
		c.Window = DefaultWindow
	}
	return c
}
