// Package cache is the optional fast key-value store used for rate-limit
// counters and response caching. Callers treat every error as "skip the
// accelerator", never as a reason to fail a request.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrMiss is returned by Get when the key is absent.
var ErrMiss = errors.New("cache miss")

// Store is the capability interface over the fast store.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, keys ...string) error
	// Incr increments key inside a fixed window that starts on the first hit
	// and returns the new count and the time left in the window.
	Incr(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
	Ping(ctx context.Context) error
	// Enabled is false for the no-op store.
	Enabled() bool
	Close() error
}
