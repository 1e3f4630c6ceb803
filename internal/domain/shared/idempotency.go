package shared

import (
	"context"
	"time"
)

// IdempotencyStore remembers processed webhook delivery IDs so duplicate
// deliveries are dropped before they reach the database. The database
// insert-if-absent remains the authoritative dedup; this store is the
// fast path.
type IdempotencyStore interface {
	// MarkProcessed marks a delivery as seen with a TTL. It returns true if
	// the delivery was newly marked, false if it was already seen.
	MarkProcessed(ctx context.Context, eventID string, ttl time.Duration) (bool, error)

	// IsProcessed checks whether a delivery has already been seen.
	IsProcessed(ctx context.Context, eventID string) (bool, error)

	// Close releases the store's resources.
	Close() error
}

// IdempotencyConfig holds configuration for webhook dedup.
type IdempotencyConfig struct {
	// TTL is how long a seen delivery ID is remembered. After it elapses the
	// database unique key still rejects replays.
	TTL time.Duration

	// Enabled toggles the fast-path check.
	Enabled bool
}

// DefaultIdempotencyConfig returns the default webhook dedup configuration.
func DefaultIdempotencyConfig() IdempotencyConfig {
	return IdempotencyConfig{
		TTL:     24 * time.Hour,
		Enabled: true,
	}
}
