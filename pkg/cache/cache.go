// Package cache provides generic, thread-safe cache implementations with
// different eviction policies.
//
// Three cache types are offered:
//   - Simple: no eviction (stores items until cleared)
//   - LRU: least-recently-used eviction bounded by size
//   - TTL: time-to-live eviction with lazy expiry and a background sweep
//
// All implementations are thread-safe and collect statistics.
package cache

import (
	"time"

	"github.com/c360/alertstream/errors"
)

// Cache is the interface satisfied by every cache implementation in this
// package, parameterized by value type V.
type Cache[V any] interface {
	// Get retrieves a value by key. Returns the zero value and false on miss.
	Get(key string) (V, bool)

	// Set stores a value under key. Returns true if a new entry was created,
	// false if an existing entry was updated.
	Set(key string, value V) (bool, error)

	// Delete removes an entry by key, reporting whether it existed.
	Delete(key string) (bool, error)

	// Clear removes all entries.
	Clear() error

	// Size returns the current number of entries.
	Size() int

	// Keys returns all keys currently present.
	Keys() []string

	// Stats returns the cache's statistics tracker.
	Stats() *Statistics

	// Close releases resources such as background sweep goroutines.
	Close() error
}

// EvictCallback is invoked with the key and value of an evicted entry.
type EvictCallback[V any] func(key string, value V)

// Option configures cache behavior.
type Option[V any] func(*cacheOptions[V])

type cacheOptions[V any] struct {
	evictCallback EvictCallback[V]
	sweepInterval time.Duration
}

// WithEvictionCallback sets a callback invoked for every evicted entry.
func WithEvictionCallback[V any](callback EvictCallback[V]) Option[V] {
	return func(opts *cacheOptions[V]) {
		opts.evictCallback = callback
	}
}

// WithSweepInterval overrides how often the TTL cache proactively removes
// expired entries. Ignored for other cache types and for intervals <= 0.
func WithSweepInterval[V any](interval time.Duration) Option[V] {
	return func(opts *cacheOptions[V]) {
		if interval > 0 {
			opts.sweepInterval = interval
		}
	}
}

func applyOptions[V any](options ...Option[V]) *cacheOptions[V] {
	opts := &cacheOptions[V]{
		sweepInterval: 30 * time.Second,
	}
	for _, opt := range options {
		if opt != nil {
			opt(opts)
		}
	}
	return opts
}

func validateKey(key string) error {
	if key == "" {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "validateKey", "key cannot be empty")
	}
	return nil
}
