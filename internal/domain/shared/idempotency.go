package shared

import (
	"context"
	"time"
)

// IdempotencyStore records keys of side effects that must run at most once,
// such as a seller payout for a given auction.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Unmark releases a key so the operation may be retried.
	Unmark(ctx context.Context, key string) error

	// Close closes the store and releases resources
	Close() error
}

// Clock abstracts time for code that stamps settlement timestamps.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

// Now implements Clock
func (f ClockFunc) Now() time.Time { return f() }

// SystemClock returns UTC wall-clock time.
var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })
