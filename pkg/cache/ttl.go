package cache

import (
	"context"
	"sync"
	"time"

	"github.com/c360/alertstream/errors"
)

type ttlEntry[V any] struct {
	value     V
	expiresAt time.Time
}

func (e *ttlEntry[V]) isExpired(now time.Time) bool {
	return now.After(e.expiresAt)
}

// ttlCache evicts entries once their time-to-live elapses. Expiry is lazy on
// lookup with a periodic background sweep; an expired entry is never returned.
type ttlCache[V any] struct {
	mu      sync.RWMutex
	ttl     time.Duration
	items   map[string]*ttlEntry[V]
	stats   *Statistics
	evictFn EvictCallback[V]

	// now is swappable for tests.
	now func() time.Time

	shutdown chan struct{}
	done     chan struct{}
	closeMu  sync.Mutex
	closed   bool
}

// NewTTL creates a cache whose entries expire ttl after insertion. The
// background sweep stops when ctx is cancelled or Close is called.
func NewTTL[V any](ctx context.Context, ttl time.Duration, options ...Option[V]) (Cache[V], error) {
	if ttl <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewTTL", "ttl must be positive")
	}
	opts := applyOptions(options...)

	c := &ttlCache[V]{
		ttl:      ttl,
		items:    make(map[string]*ttlEntry[V]),
		stats:    NewStatistics(),
		evictFn:  opts.evictCallback,
		now:      time.Now,
		shutdown: make(chan struct{}),
		done:     make(chan struct{}),
	}
	go c.sweep(ctx, opts.sweepInterval)
	return c, nil
}

func (c *ttlCache[V]) sweep(ctx context.Context, interval time.Duration) {
	defer close(c.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			c.removeExpired()
		case <-ctx.Done():
			return
		case <-c.shutdown:
			return
		}
	}
}

func (c *ttlCache[V]) removeExpired() {
	now := c.now()
	type evictedEntry struct {
		key   string
		value V
	}
	var evicted []evictedEntry

	c.mu.Lock()
	for key, entry := range c.items {
		if entry.isExpired(now) {
			delete(c.items, key)
			c.stats.Eviction()
			if c.evictFn != nil {
				evicted = append(evicted, evictedEntry{key: key, value: entry.value})
			}
		}
	}
	c.stats.UpdateSize(int64(len(c.items)))
	c.mu.Unlock()

	for _, e := range evicted {
		c.evictFn(e.key, e.value)
	}
}

func (c *ttlCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	entry, exists := c.items[key]
	c.mu.RUnlock()

	var zero V
	if !exists {
		c.stats.Miss()
		return zero, false
	}

	if entry.isExpired(c.now()) {
		c.mu.Lock()
		// Re-check under the write lock; a concurrent Set may have refreshed it.
		if current, still := c.items[key]; still && current.isExpired(c.now()) {
			delete(c.items, key)
			c.stats.Eviction()
			c.stats.UpdateSize(int64(len(c.items)))
			if c.evictFn != nil {
				defer c.evictFn(key, current.value)
			}
		}
		c.mu.Unlock()
		c.stats.Miss()
		return zero, false
	}

	c.stats.Hit()
	return entry.value, true
}

func (c *ttlCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = &ttlEntry[V]{value: value, expiresAt: c.now().Add(c.ttl)}
	size := len(c.items)
	c.mu.Unlock()

	c.stats.RecordSet()
	c.stats.UpdateSize(int64(size))
	return !exists, nil
}

func (c *ttlCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, exists := c.items[key]
	delete(c.items, key)
	size := len(c.items)
	c.mu.Unlock()

	if exists {
		c.stats.RecordDelete()
		c.stats.UpdateSize(int64(size))
	}
	return exists, nil
}

func (c *ttlCache[V]) Clear() error {
	c.mu.Lock()
	c.items = make(map[string]*ttlEntry[V])
	c.mu.Unlock()
	c.stats.UpdateSize(0)
	return nil
}

func (c *ttlCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *ttlCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

func (c *ttlCache[V]) Stats() *Statistics { return c.stats }

func (c *ttlCache[V]) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	close(c.shutdown)
	<-c.done
	return nil
}
