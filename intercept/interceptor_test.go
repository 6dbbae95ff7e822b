package intercept

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alertstream/eventbus"
)

type countingListener struct {
	mu     sync.Mutex
	events []string
}

func (l *countingListener) HandleEvent(_ context.Context, _ *eventbus.Category, event eventbus.Event) {
	l.mu.Lock()
	l.events = append(l.events, event.EventName())
	l.mu.Unlock()
}

func (l *countingListener) seen() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]string, len(l.events))
	copy(out, l.events)
	return out
}

func TestInterceptor_AttachesToExistingCategories(t *testing.T) {
	bus := eventbus.NewBus()
	bus.Category("PlayerDeathEvent")
	bus.Category("PlayerJoinEvent")

	listener := &countingListener{}
	interceptor, err := NewInterceptor(bus, listener)
	require.NoError(t, err)
	require.NoError(t, interceptor.Start(context.Background()))
	defer func() { _ = interceptor.Stop(time.Second) }()

	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerDeathEvent"})
	assert.Equal(t, []string{"PlayerDeathEvent"}, listener.seen())
	assert.Len(t, interceptor.Attached(), 2)
}

func TestInterceptor_AttachesToNewCategories(t *testing.T) {
	bus := eventbus.NewBus()
	listener := &countingListener{}
	interceptor, err := NewInterceptor(bus, listener)
	require.NoError(t, err)
	require.NoError(t, interceptor.Start(context.Background()))
	defer func() { _ = interceptor.Stop(time.Second) }()

	// Publishing to an unknown category creates it; the interceptor must
	// already be listening by the time the event is dispatched.
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "EntityExplodeEvent"})
	assert.Equal(t, []string{"EntityExplodeEvent"}, listener.seen())
}

func TestInterceptor_DenyList(t *testing.T) {
	bus := eventbus.NewBus()
	bus.Category("PlayerHandshakeEvent")
	bus.Category("PlayerChatEvent")
	bus.Category("PlayerDeathEvent")

	listener := &countingListener{}
	interceptor, err := NewInterceptor(bus, listener)
	require.NoError(t, err)
	require.NoError(t, interceptor.Start(context.Background()))
	defer func() { _ = interceptor.Stop(time.Second) }()

	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerHandshakeEvent"})
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerChatEvent"})
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerDeathEvent"})

	assert.Equal(t, []string{"PlayerDeathEvent"}, listener.seen())
	assert.Len(t, interceptor.Attached(), 1)
}

func TestInterceptor_CustomDenyList(t *testing.T) {
	bus := eventbus.NewBus()
	bus.Category("NoisyEvent")

	listener := &countingListener{}
	interceptor, err := NewInterceptor(bus, listener, WithDenyList("noisyevent"))
	require.NoError(t, err)
	require.NoError(t, interceptor.Start(context.Background()))
	defer func() { _ = interceptor.Stop(time.Second) }()

	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "NoisyEvent"})
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerChatEvent"})

	assert.Equal(t, []string{"PlayerChatEvent"}, listener.seen(),
		"custom deny list replaces the default one")
}

func TestInterceptor_RegisterSweepReattaches(t *testing.T) {
	bus := eventbus.NewBus()
	category := bus.Category("PlayerDeathEvent")

	listener := &countingListener{}
	interceptor, err := NewInterceptor(bus, listener)
	require.NoError(t, err)
	require.NoError(t, interceptor.Start(context.Background()))
	defer func() { _ = interceptor.Stop(time.Second) }()

	// A listener may detach itself from a category it finds irrelevant.
	category.Unregister(listener)
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerDeathEvent"})
	assert.Empty(t, listener.seen())

	require.NoError(t, interceptor.Register())
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerDeathEvent"})
	assert.Equal(t, []string{"PlayerDeathEvent"}, listener.seen())
}

func TestInterceptor_UnregisterDetachesAll(t *testing.T) {
	bus := eventbus.NewBus()
	bus.Category("PlayerDeathEvent")

	listener := &countingListener{}
	interceptor, err := NewInterceptor(bus, listener)
	require.NoError(t, err)
	require.NoError(t, interceptor.Start(context.Background()))
	defer func() { _ = interceptor.Stop(time.Second) }()

	interceptor.Unregister()
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerDeathEvent"})
	assert.Empty(t, listener.seen())
	assert.Empty(t, interceptor.Attached())

	// The new-category watch stays alive through an unregister.
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "EntityExplodeEvent"})
	assert.Equal(t, []string{"EntityExplodeEvent"}, listener.seen())
}

func TestInterceptor_Lifecycle(t *testing.T) {
	bus := eventbus.NewBus()
	bus.Category("PlayerDeathEvent")
	listener := &countingListener{}

	interceptor, err := NewInterceptor(bus, listener)
	require.NoError(t, err)

	require.NoError(t, interceptor.Start(context.Background()))
	assert.Error(t, interceptor.Start(context.Background()), "double start is rejected")

	require.NoError(t, interceptor.Stop(time.Second))
	assert.Error(t, interceptor.Stop(time.Second), "double stop is rejected")

	// After stop, nothing is delivered and new categories are ignored.
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "PlayerDeathEvent"})
	bus.Publish(context.Background(), &eventbus.GenericEvent{Name: "LateEvent"})
	assert.Empty(t, listener.seen())
}

func TestNewInterceptor_Validation(t *testing.T) {
	bus := eventbus.NewBus()
	_, err := NewInterceptor(nil, &countingListener{})
	assert.Error(t, err)
	_, err = NewInterceptor(bus, nil)
	assert.Error(t, err)
}
