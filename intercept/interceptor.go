package intercept

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/eventbus"
)

// Categories the interceptor never attaches to: the handshake fires for
// every connection probe and the chat event is already bridged elsewhere.
var defaultDenyList = []string{
	"PlayerHandshakeEvent",
	"PlayerChatEvent",
}

// Interceptor registers one listener on all allowed categories of a registry
// and keeps up with categories created later.
type Interceptor struct {
	registry eventbus.Registry
	listener eventbus.Listener
	logger   *slog.Logger

	denied map[string]struct{}

	mu          sync.Mutex
	attached    map[string]*eventbus.Category
	cancelWatch func()
	started     atomic.Bool
}

// Option configures an Interceptor.
type Option func(*Interceptor)

// WithDenyList replaces the default deny list.
func WithDenyList(names ...string) Option {
	return func(i *Interceptor) {
		i.denied = make(map[string]struct{}, len(names))
		for _, name := range names {
			i.denied[strings.ToLower(name)] = struct{}{}
		}
	}
}

// NewInterceptor creates an interceptor for the given registry and listener.
func NewInterceptor(registry eventbus.Registry, listener eventbus.Listener, opts ...Option) (*Interceptor, error) {
	if registry == nil {
		return nil, errors.WrapFatal(errors.ErrRegistryUnavailable, "Interceptor", "NewInterceptor", "nil registry")
	}
	if listener == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Interceptor", "NewInterceptor", "nil listener")
	}

	i := &Interceptor{
		registry: registry,
		listener: listener,
		logger:   slog.Default().With("component", "interceptor"),
		attached: make(map[string]*eventbus.Category),
	}
	WithDenyList(defaultDenyList...)(i)
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Start attaches to all existing allowed categories and watches for new
// ones. Calling Start twice is an error.
func (i *Interceptor) Start(_ context.Context) error {
	if !i.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Interceptor", "Start", "already attached")
	}

	// Watch before walking so a category created mid-walk is not missed;
	// attach is idempotent so seeing one twice is harmless.
	i.cancelWatch = i.registry.OnCategoryAdded(func(category *eventbus.Category) {
		i.attach(category)
	})
	for _, category := range i.registry.Categories() {
		i.attach(category)
	}

	i.mu.Lock()
	count := len(i.attached)
	i.mu.Unlock()
	i.logger.Info("interceptor attached", "categories", count)
	return nil
}

// Stop detaches from every category and stops watching the registry.
func (i *Interceptor) Stop(_ time.Duration) error {
	if !i.started.CompareAndSwap(true, false) {
		return errors.WrapInvalid(errors.ErrNotStarted, "Interceptor", "Stop", "not attached")
	}
	if i.cancelWatch != nil {
		i.cancelWatch()
		i.cancelWatch = nil
	}

	i.mu.Lock()
	for name, category := range i.attached {
		category.Unregister(i.listener)
		delete(i.attached, name)
	}
	i.mu.Unlock()
	return nil
}

// Register sweeps every allowed category and re-attaches the listener. It
// undoes liveness detachments after a reload activates new triggers.
func (i *Interceptor) Register() error {
	if !i.started.Load() {
		return errors.WrapInvalid(errors.ErrNotStarted, "Interceptor", "Register", "not attached")
	}
	for _, category := range i.registry.Categories() {
		i.attach(category)
	}
	return nil
}

// Unregister detaches the listener from every category without stopping the
// new-category watch. Used when a reload leaves zero rules.
func (i *Interceptor) Unregister() {
	i.mu.Lock()
	defer i.mu.Unlock()
	for name, category := range i.attached {
		category.Unregister(i.listener)
		delete(i.attached, name)
	}
}

// Attached returns the names of categories the listener is registered on.
func (i *Interceptor) Attached() []string {
	i.mu.Lock()
	defer i.mu.Unlock()
	names := make([]string, 0, len(i.attached))
	for name := range i.attached {
		names = append(names, name)
	}
	return names
}

func (i *Interceptor) attach(category *eventbus.Category) {
	name := strings.ToLower(category.Name())
	if _, deny := i.denied[name]; deny {
		i.logger.Debug("category is deny-listed, not attaching", "category", category.Name())
		return
	}

	i.mu.Lock()
	defer i.mu.Unlock()
	// Register is idempotent, and calling it again undoes a liveness
	// detachment the listener performed on its own.
	if category.Register(i.listener) {
		i.logger.Debug("attached to category", "category", category.Name())
	}
	i.attached[name] = category
}
