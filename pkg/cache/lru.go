package cache

import (
	"container/list"
	"sync"

	"github.com/c360/alertstream/errors"
)

type lruEntry[V any] struct {
	key   string
	value V
}

// lruCache evicts the least recently used entry once capacity is exceeded.
type lruCache[V any] struct {
	mu       sync.Mutex
	capacity int
	items    map[string]*list.Element
	order    *list.List
	stats    *Statistics
	evictFn  EvictCallback[V]
}

// NewLRU creates a cache bounded to capacity entries with LRU eviction.
func NewLRU[V any](capacity int, options ...Option[V]) (Cache[V], error) {
	if capacity <= 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "NewLRU", "capacity must be positive")
	}
	opts := applyOptions(options...)
	return &lruCache[V]{
		capacity: capacity,
		items:    make(map[string]*list.Element),
		order:    list.New(),
		stats:    NewStatistics(),
		evictFn:  opts.evictCallback,
	}, nil
}

func (c *lruCache[V]) Get(key string) (V, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		c.stats.Miss()
		var zero V
		return zero, false
	}

	c.order.MoveToFront(element)
	c.stats.Hit()
	return element.Value.(*lruEntry[V]).value, true
}

func (c *lruCache[V]) Set(key string, value V) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if element, exists := c.items[key]; exists {
		c.order.MoveToFront(element)
		element.Value.(*lruEntry[V]).value = value
		c.stats.RecordSet()
		return false, nil
	}

	element := c.order.PushFront(&lruEntry[V]{key: key, value: value})
	c.items[key] = element
	c.stats.RecordSet()

	if c.order.Len() > c.capacity {
		c.evictOldest()
	}
	c.stats.UpdateSize(int64(len(c.items)))
	return true, nil
}

// evictOldest removes the back of the order list. Caller must hold the lock.
func (c *lruCache[V]) evictOldest() {
	element := c.order.Back()
	if element == nil {
		return
	}
	entry := element.Value.(*lruEntry[V])
	c.order.Remove(element)
	delete(c.items, entry.key)
	c.stats.Eviction()
	if c.evictFn != nil {
		c.evictFn(entry.key, entry.value)
	}
}

func (c *lruCache[V]) Delete(key string) (bool, error) {
	if err := validateKey(key); err != nil {
		return false, err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	element, exists := c.items[key]
	if !exists {
		return false, nil
	}
	c.order.Remove(element)
	delete(c.items, key)
	c.stats.RecordDelete()
	c.stats.UpdateSize(int64(len(c.items)))
	return true, nil
}

func (c *lruCache[V]) Clear() error {
	c.mu.Lock()
	c.items = make(map[string]*list.Element)
	c.order.Init()
	c.mu.Unlock()
	c.stats.UpdateSize(0)
	return nil
}

func (c *lruCache[V]) Size() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

func (c *lruCache[V]) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	keys := make([]string, 0, len(c.items))
	for key := range c.items {
		keys = append(keys, key)
	}
	return keys
}

func (c *lruCache[V]) Stats() *Statistics { return c.stats }

func (c *lruCache[V]) Close() error { return nil }
