package eventbus

import (
	"context"
	"strings"
	"sync"
)

// Listener receives events dispatched on a category. The category is passed
// alongside the event so a listener can remove itself from exactly the
// dispatch list that delivered it.
type Listener interface {
	HandleEvent(ctx context.Context, category *Category, event Event)
}

// Registry exposes the host's event categories and their creation. It is the
// narrow interface the interceptor consumes; Bus is the in-process
// implementation.
type Registry interface {
	// Categories returns a snapshot of all known categories.
	Categories() []*Category

	// Lookup fetches a category by its (case-insensitive) name.
	Lookup(name string) (*Category, bool)

	// OnCategoryAdded registers fn to be called for every category appended
	// after this call. The returned func cancels the subscription.
	OnCategoryAdded(fn func(*Category)) (cancel func())
}

// Category is one event type's dispatch list.
type Category struct {
	name string

	mu        sync.RWMutex
	listeners []Listener
}

// NewCategory creates a category with the given event type name.
func NewCategory(name string) *Category {
	return &Category{name: name}
}

// Name returns the event type name this category dispatches.
func (c *Category) Name() string { return c.name }

// Register appends a listener to the dispatch list. Registering a listener
// that is already present is a no-op; the return value reports whether the
// list changed.
func (c *Category) Register(l Listener) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, existing := range c.listeners {
		if existing == l {
			return false
		}
	}
	c.listeners = append(c.listeners, l)
	return true
}

// Unregister removes a listener from the dispatch list, reporting whether it
// was present.
func (c *Category) Unregister(l Listener) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, existing := range c.listeners {
		if existing == l {
			c.listeners = append(c.listeners[:i], c.listeners[i+1:]...)
			return true
		}
	}
	return false
}

// Listeners returns a snapshot of the registered listeners.
func (c *Category) Listeners() []Listener {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Listener, len(c.listeners))
	copy(out, c.listeners)
	return out
}

// Dispatch delivers the event to every registered listener on the calling
// goroutine, in registration order.
func (c *Category) Dispatch(ctx context.Context, event Event) {
	for _, l := range c.Listeners() {
		l.HandleEvent(ctx, c, event)
	}
}

func normalizeCategoryName(name string) string {
	return strings.ToLower(name)
}
