// Package store keeps short-lived settlement records between API calls.
package store

import (
	"context"
	"time"
)

// Store is a TTL keyed store. Take removes and returns a record in one
// step; of two concurrent Takes for the same key at most one succeeds.
type Store[T any] interface {
	Put(ctx context.Context, key string, value T, ttl time.Duration) error
	Get(ctx context.Context, key string) (T, bool, error)
	Take(ctx context.Context, key string) (T, bool, error)
	Delete(ctx context.Context, key string) error
}

// Sweeper is implemented by stores that need explicit expiry.
type Sweeper interface {
	Sweep() int
	Len() int
}
