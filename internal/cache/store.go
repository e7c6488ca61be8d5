package cache

import (
	"context"
	"time"
)

// Store is the shared key/value state that several API instances coordinate
// through: rate-limit counters and one-shot job claims.
type Store interface {
	Counter
	Claimer
}

// Counter counts hits inside a fixed window that opens with the first hit.
type Counter interface {
	IncrementWithTTL(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error)
}

// Claimer grants key to the first caller until ttl passes.
type Claimer interface {
	Claim(ctx context.Context, key, owner string, ttl time.Duration) (bool, error)
}

// Sweeper is implemented by stores that need periodic removal of expired entries.
type Sweeper interface {
	CleanupExpired(ctx context.Context) (int64, error)
}
