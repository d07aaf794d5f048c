package ports

import (
	"context"
	"time"
)

// Store is an expiring key-value store. Get returns core.ErrNotFound for
// absent or expired keys and drops stale entries as a side effect.
type Store[V any] interface {
	Put(ctx context.Context, key string, value V, ttl time.Duration) error
	Get(ctx context.Context, key string) (V, error)
	// Take atomically reads and removes a live entry
	Take(ctx context.Context, key string) (V, error)
	Delete(ctx context.Context, key string) error
}
