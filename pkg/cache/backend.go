package cache

import (
	"context"
	"time"
)

// Backend is the distributed cache tier. Implementations store raw JSON
// payloads and report an absent key as ErrCacheMiss.
//
// The store treats every Backend error as transient: it logs it and degrades
// to the local tier. Implementations must bound each call in time.
type Backend interface {
	// Get returns the payload stored at key, or ErrCacheMiss.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores value at key with the given TTL.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes key and reports whether it existed.
	Delete(ctx context.Context, key string) (bool, error)

	// DeletePrefix removes every key starting with prefix and returns the
	// removed keys. On error the keys removed so far are still returned.
	DeletePrefix(ctx context.Context, prefix string) ([]string, error)

	// Flush removes every key owned by this backend.
	Flush(ctx context.Context) error

	// Ping checks connectivity.
	Ping(ctx context.Context) error

	// Close releases the underlying connection.
	Close() error
}
