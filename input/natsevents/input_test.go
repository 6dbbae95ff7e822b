package natsevents

import (
	"context"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alertstream/eventbus"
)

func TestToBusEvent_Generic(t *testing.T) {
	env := &envelope{
		Event:     "PlayerDeathEvent",
		Cancelled: true,
		Actor:     &wireActor{Name: "Steve", World: "nether", Ping: 42},
		Fields:    map[string]any{"cause": "lava"},
	}

	event := toBusEvent(env)
	generic, ok := event.(*eventbus.GenericEvent)
	require.True(t, ok)
	assert.Equal(t, "PlayerDeathEvent", generic.EventName())
	assert.True(t, generic.Cancelled())
	require.NotNil(t, generic.Actor())
	assert.Equal(t, "Steve", generic.Actor().Name)
	assert.Equal(t, "lava", generic.EventFields()["cause"])
}

func TestToBusEvent_Command(t *testing.T) {
	env := &envelope{
		Event:   "PlayerCommandPreprocessEvent",
		Command: "/home north",
		Actor:   &wireActor{Name: "Steve"},
	}

	event := toBusEvent(env)
	command, ok := event.(*eventbus.CommandCall)
	require.True(t, ok)
	assert.Equal(t, "/home north", command.CommandLine())
	assert.Equal(t, "Steve", command.CommandSender().Name,
		"sender falls back to the actor when absent")
	assert.False(t, command.CommandSender().Console)
}

func TestToBusEvent_ConsoleCommand(t *testing.T) {
	env := &envelope{
		Event:   "ServerCommandEvent",
		Command: "/stop",
	}

	event := toBusEvent(env)
	command, ok := event.(*eventbus.CommandCall)
	require.True(t, ok)
	assert.True(t, command.CommandSender().Console)
	assert.Nil(t, command.Actor())
}

func TestHandle_PublishesToBus(t *testing.T) {
	bus := eventbus.NewBus()
	input := &Input{bus: bus, subject: DefaultSubject, logger: slog.Default()}

	var seen []string
	bus.Category("PlayerDeathEvent").Register(listenerFunc(func(event eventbus.Event) {
		seen = append(seen, event.EventName())
	}))

	input.handle(context.Background(), []byte(`{"event":"PlayerDeathEvent"}`))
	input.handle(context.Background(), []byte(`not json`))
	input.handle(context.Background(), []byte(`{"cancelled":true}`))

	assert.Equal(t, []string{"PlayerDeathEvent"}, seen)
	received, dropped := input.Stats()
	assert.Equal(t, int64(1), received)
	assert.Equal(t, int64(2), dropped)
}

type listenerFunc func(eventbus.Event)

func (f listenerFunc) HandleEvent(_ context.Context, _ *eventbus.Category, event eventbus.Event) {
	f(event)
}
