package eventbus

import (
	"context"
	"log/slog"
	"sync"
)

// Bus is the in-process event bus. It implements Registry, auto-creates
// categories on first publish, and delivers events synchronously on the
// publishing goroutine, matching the host-thread delivery model the dispatch
// pipeline is built for.
type Bus struct {
	mu         sync.RWMutex
	categories map[string]*Category
	order      []*Category
	callbacks  map[int]func(*Category)
	nextID     int
	logger     *slog.Logger
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{
		categories: make(map[string]*Category),
		callbacks:  make(map[int]func(*Category)),
		logger:     slog.Default().With("component", "eventbus"),
	}
}

// Category returns the category for the given event type name, creating it
// (and notifying OnCategoryAdded subscribers) if it does not exist yet.
func (b *Bus) Category(name string) *Category {
	key := normalizeCategoryName(name)

	b.mu.RLock()
	cat, ok := b.categories[key]
	b.mu.RUnlock()
	if ok {
		return cat
	}

	b.mu.Lock()
	if cat, ok = b.categories[key]; ok {
		b.mu.Unlock()
		return cat
	}
	cat = NewCategory(name)
	b.categories[key] = cat
	b.order = append(b.order, cat)
	callbacks := make([]func(*Category), 0, len(b.callbacks))
	for _, fn := range b.callbacks {
		callbacks = append(callbacks, fn)
	}
	b.mu.Unlock()

	b.logger.Debug("Event category created", "category", name)

	// Callbacks run outside the lock: a subscriber may inspect or register on
	// the new category immediately.
	for _, fn := range callbacks {
		fn(cat)
	}
	return cat
}

// Categories returns a snapshot of all known categories in creation order.
func (b *Bus) Categories() []*Category {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make([]*Category, len(b.order))
	copy(out, b.order)
	return out
}

// Lookup fetches a category by name without creating it.
func (b *Bus) Lookup(name string) (*Category, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	cat, ok := b.categories[normalizeCategoryName(name)]
	return cat, ok
}

// OnCategoryAdded subscribes fn to future category creation. The returned
// cancel func removes the subscription.
func (b *Bus) OnCategoryAdded(fn func(*Category)) (cancel func()) {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.callbacks[id] = fn
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		delete(b.callbacks, id)
		b.mu.Unlock()
	}
}

// Publish delivers an event to its category's listeners, creating the
// category on first use. Delivery is synchronous; the caller's goroutine is
// the "host event thread" for sync-forced rules.
func (b *Bus) Publish(ctx context.Context, event Event) {
	b.Category(event.EventName()).Dispatch(ctx, event)
}
