package shared

import (
	"context"
	"time"
)

// IdempotencyStore stores processed batch invocation keys to prevent
// double-application when a job is re-triggered after a partial failure.
type IdempotencyStore interface {
	// MarkProcessed marks a key as processed with a TTL.
	// Returns true if the key was newly marked, false if it was already processed.
	MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error)

	// IsProcessed checks if a key has already been processed
	IsProcessed(ctx context.Context, key string) (bool, error)

	// Close closes the store and releases resources
	Close() error
}

// IdempotencyConfig holds configuration for idempotency handling
type IdempotencyConfig struct {
	// TTL is the time-to-live for processed keys. Batch invocation keys
	// embed the period, so the TTL only has to outlive retry storms.
	TTL time.Duration

	// Enabled determines whether idempotency checking is enabled
	Enabled bool
}

// DefaultIdempotencyConfig returns the default idempotency configuration
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     45 * 24 * time.Hour,
		Enabled: true,
	}
}
