package cache

import "sync"

// simpleCache is a thread-safe cache with no eviction policy.
type simpleCache[V any] struct {
	mu    sync.RWMutex
	items map[string]V
	stats *Statistics
}

// NewSimple creates a cache that stores items until explicitly removed.
func NewSimple[V any](options ...Option[V]) (Cache[V], error) {
	_ = applyOptions(options...)
	return &simpleCache[V]{
		items: make(map[string]V),
		stats: NewStatistics(),
	}, nil
}

func (c *simpleCache[V]) Get(key string) (V, bool) {
	c.mu.RLock()
	value, exists := c.items[key]
	c.mu.RUnlock()

	if !exists {
		c.stats.Miss()
		var zero V
		return zero, false
	}
	c.stats.Hit()
	return value, true
}

func (c *simpleCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	_, exists := c.items[key]
	c.items[key] = value
	size := len(c.items)
	c.mu.Unlock()

	c.stats.RecordSet()
	c.stats.UpdateSize(int64(size))
	return !exists, nil
}

func (c *simpleCache[V]) Delete(key string) (bool, error) {
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

func (c *simpleCache[V]) Clear() error {
	c.mu.Lock()
	c.items = make(map[string]V)
	c.mu.Unlock()
	c.stats.UpdateSize(0)
	return nil
}

func (c *simpleCache[V]) Size() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.items)
}

func (c *simpleCache[V]) Keys() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

func (c *simpleCache[V]) Stats() *Statistics { return c.stats }

func (c *simpleCache[V]) Close() error { return nil }
