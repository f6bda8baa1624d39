package ports

import (
	"context"
	"time"
)

// RateLimitStore persists attempt timestamps per identifier. Every backend
// offers identical get/set/delete semantics so limiter logic never depends on
// which one is active.
type RateLimitStore interface {
	// Get returns the recorded attempts for key, oldest first. A missing key
	// yields an empty slice and no error.
	Get(ctx context.Context, key string) ([]time.Time, error)
	// Set replaces the attempts for key; the entry may be discarded after ttl.
	Set(ctx context.Context, key string, attempts []time.Time, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
	// Ping reports whether the backend is reachable.
	Ping(ctx context.Context) error
}
