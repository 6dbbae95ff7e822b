package natsevents

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/eventbus"
	"github.com/c360/alertstream/metric"
	"github.com/c360/alertstream/natsclient"
)

// DefaultSubject is the subject game servers publish event envelopes to.
const DefaultSubject = "alertstream.events"

// envelope is the wire form of one game event.
type envelope struct {
	Event     string         `json:"event"`
	Cancelled bool           `json:"cancelled,omitempty"`
	Command   string         `json:"command,omitempty"`
	Sender    *wireSender    `json:"sender,omitempty"`
	Actor     *wireActor     `json:"actor,omitempty"`
	Fields    map[string]any `json:"fields,omitempty"`
}

type wireActor struct {
	Name        string `json:"name"`
	DisplayName string `json:"display_name,omitempty"`
	World       string `json:"world,omitempty"`
	Ping        int    `json:"ping,omitempty"`
	AvatarURL   string `json:"avatar_url,omitempty"`
}

type wireSender struct {
	Name    string `json:"name"`
	Console bool   `json:"console,omitempty"`
}

// Input subscribes to the event subject and republishes onto the bus.
type Input struct {
	client  *natsclient.Client
	bus     *eventbus.Bus
	subject string
	logger  *slog.Logger
	metrics *metric.Metrics

	received atomic.Int64
	dropped  atomic.Int64
	started  atomic.Bool
}

// InputOption configures an Input.
type InputOption func(*Input)

// WithSubject overrides the subscription subject.
func WithSubject(subject string) InputOption {
	return func(i *Input) { i.subject = subject }
}

// WithMetrics wires the connection gauge and reconnect counter.
func WithMetrics(metrics *metric.Metrics) InputOption {
	return func(i *Input) { i.metrics = metrics }
}

// NewInput creates the feed adapter.
func NewInput(client *natsclient.Client, bus *eventbus.Bus, opts ...InputOption) (*Input, error) {
	if client == nil || bus == nil {
		return nil, errors.WrapInvalid(errors.ErrInvalidConfig, "Input", "NewInput", "client and bus are required")
	}
	i := &Input{
		client:  client,
		bus:     bus,
		subject: DefaultSubject,
		logger:  slog.Default().With("component", "natsevents"),
	}
	for _, opt := range opts {
		opt(i)
	}
	return i, nil
}

// Start subscribes to the event subject. The client must already be
// connected.
func (i *Input) Start(ctx context.Context) error {
	if !i.started.CompareAndSwap(false, true) {
		return errors.WrapInvalid(errors.ErrAlreadyStarted, "Input", "Start", i.subject)
	}

	if i.metrics != nil {
		i.client.OnHealthChange(func(healthy bool) {
			if healthy {
				i.metrics.EventBusConnected.Set(1)
			} else {
				i.metrics.EventBusConnected.Set(0)
			}
		})
		i.client.OnReconnect(func() {
			i.metrics.EventBusReconnects.Inc()
		})
		if i.client.IsHealthy() {
			i.metrics.EventBusConnected.Set(1)
		}
	}

	if err := i.client.Subscribe(ctx, i.subject, i.handle); err != nil {
		i.started.Store(false)
		return errors.Wrap(err, "Input", "Start", "subscribe to event subject")
	}
	i.logger.Info("event feed started", "subject", i.subject)
	return nil
}

// Stop marks the input stopped. The subscription itself is drained when the
// NATS client closes.
func (i *Input) Stop(_ time.Duration) error {
	if !i.started.CompareAndSwap(true, false) {
		return errors.WrapInvalid(errors.ErrNotStarted, "Input", "Stop", i.subject)
	}
	return nil
}

// Stats reports envelope counters.
func (i *Input) Stats() (received, dropped int64) {
	return i.received.Load(), i.dropped.Load()
}

// handle decodes one envelope and publishes the event. Malformed envelopes
// are dropped with a log line; the feed never stops on bad input.
func (i *Input) handle(ctx context.Context, data []byte) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		i.dropped.Add(1)
		i.logger.Warn("dropping malformed event envelope", "error", err)
		return
	}
	if env.Event == "" {
		i.dropped.Add(1)
		i.logger.Warn("dropping envelope without event name")
		return
	}
	i.received.Add(1)

	event := toBusEvent(&env)
	i.bus.Publish(ctx, event)
}

// toBusEvent picks the concrete bus event for an envelope: command envelopes
// become CommandCall, everything else GenericEvent.
func toBusEvent(env *envelope) eventbus.Event {
	actor := toActor(env.Actor)

	if env.Command != "" {
		sender := eventbus.Sender{Console: true}
		if env.Sender != nil {
			sender = eventbus.Sender{Name: env.Sender.Name, Console: env.Sender.Console}
		} else if actor != nil {
			sender = eventbus.Sender{Name: actor.Name}
		}
		return &eventbus.CommandCall{
			Name:   env.Event,
			Caller: sender,
			Line:   env.Command,
			Source: actor,
		}
	}

	return &eventbus.GenericEvent{
		Name:   env.Event,
		Cancel: env.Cancelled,
		Source: actor,
		Fields: env.Fields,
	}
}

func toActor(w *wireActor) *eventbus.Actor {
	if w == nil {
		return nil
	}
	return &eventbus.Actor{
		Name:        w.Name,
		DisplayName: w.DisplayName,
		World:       w.World,
		Ping:        w.Ping,
		AvatarURL:   w.AvatarURL,
	}
}
