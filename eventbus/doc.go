// Package eventbus abstracts the host application's event system behind an
// observable registry.
//
// The host raises events grouped into categories (one dispatch list per event
// type). Categories can be created at any time, including long after the
// engine has started, by the host or by third parties. Rather than
// structurally intercepting a host-owned collection, the Registry interface
// exposes the current categories plus an OnCategoryAdded hook that fires for
// every category appended after subscription, so a catch-all listener can
// attach itself without enumerating event types in advance.
//
// Bus is the in-process Registry implementation: it auto-creates categories
// on first publish and invokes every registered listener of the event's
// category. Hosts with their own event machinery adapt it to Registry
// instead (see input/natsevents for a transport-level adapter).
package eventbus
