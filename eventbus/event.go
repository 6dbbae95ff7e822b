package eventbus

// Event is a single occurrence raised by the host, typed by its event name.
// The name is either a simple type name ("PlayerJoinEvent") or a dot-
// separated qualified name; alert triggers match it case-insensitively.
type Event interface {
	EventName() string
}

// Cancellable is implemented by events whose effect can be called off before
// delivery completes. Rules skip cancelled events unless configured otherwise.
type Cancellable interface {
	Cancelled() bool
}

// Actor is the entity an event is about, when there is one. Ping is the
// entity's network latency in milliseconds, -1 when unknown.
type Actor struct {
	Name        string
	DisplayName string
	World       string
	Ping        int
	AvatarURL   string
}

// HasActor is the capability interface for entity-scoped events. Event
// adapters implement it explicitly for any event the engine should treat as
// entity-scoped; there is no runtime method probing.
type HasActor interface {
	Actor() *Actor
}

// Sender identifies who issued a command: a player or the host console.
type Sender struct {
	Name    string
	Console bool
}

// CommandEvent is a command-shaped event. CommandLine returns the raw line
// without its leading slash.
type CommandEvent interface {
	Event
	CommandLine() string
	CommandSender() Sender
}

// Fielder exposes an event's payload as named values for expression
// evaluation.
type Fielder interface {
	EventFields() map[string]any
}

// GenericEvent is a ready-made Event implementation for hosts that deliver
// events as plain data, and for tests.
type GenericEvent struct {
	Name   string
	Cancel bool
	Source *Actor
	Fields map[string]any
}

// EventName returns the event's type name.
func (e *GenericEvent) EventName() string { return e.Name }

// Cancelled reports whether the event was cancelled.
func (e *GenericEvent) Cancelled() bool { return e.Cancel }

// Actor returns the acting entity, nil when the event is not entity-scoped.
func (e *GenericEvent) Actor() *Actor { return e.Source }

// EventFields returns the event payload for expression evaluation.
func (e *GenericEvent) EventFields() map[string]any { return e.Fields }

// CommandCall is a command-shaped event: a player or the console issued a
// chat-style command.
type CommandCall struct {
	Name   string
	Caller Sender
	Line   string
	Source *Actor
}

// EventName returns the event's type name.
func (e *CommandCall) EventName() string { return e.Name }

// CommandLine returns the raw command line without its leading slash.
func (e *CommandCall) CommandLine() string { return e.Line }

// CommandSender returns who issued the command.
func (e *CommandCall) CommandSender() Sender { return e.Caller }

// Actor returns the acting entity, nil for console commands.
func (e *CommandCall) Actor() *Actor { return e.Source }
