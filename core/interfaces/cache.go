// Package interfaces defines the core interfaces used throughout the application.
// These interfaces allow for dependency injection and make the code testable.
package interfaces

import (
	"context"
	"errors"
	"time"
)

// ErrCacheMiss is returned by Cache.Get when the key does not exist or expired.
var ErrCacheMiss = errors.New("cache: key not found")

// Cache defines the interface for cache operations.
// Implementations can be SQLite, Redis, in-memory, or any other store.
//
// Example usage:
//
//	// Store a value with no expiry
//	err := cache.Set(ctx, "snapshot:3f2a", data, 0)
//
//	// Retrieve a value
//	data, err := cache.Get(ctx, "snapshot:3f2a")
//	if errors.Is(err, interfaces.ErrCacheMiss) {
//		// fetch it
//	}
type Cache interface {
	// Get retrieves a value from the cache by key.
	// Returns ErrCacheMiss if the key doesn't exist.
	Get(ctx context.Context, key string) ([]byte, error)

	// Set stores a value in the cache with the given key and TTL.
	// If ttl is 0, the value should be stored indefinitely.
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Delete removes a value from the cache by key.
	// Returns nil if the key doesn't exist.
	Delete(ctx context.Context, key string) error
}

// KeyLister is implemented by caches that can enumerate their keys.
// It is used to prune snapshots of feeds that are no longer configured.
type KeyLister interface {
	// Keys returns every live key starting with prefix.
	Keys(ctx context.Context, prefix string) ([]string, error)
}
