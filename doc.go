// Package alertstream is an alert rule engine for host applications that
// raise events and chat-style commands. It intercepts every event category a
// host exposes (including categories created after startup), matches events
// and commands against user-configured alert rules, evaluates optional
// boolean conditions, renders message templates with expression fragments and
// named placeholders, and delivers the result to chat-channel destinations,
// optionally through webhooks.
//
// The engine is organized leaf-first: trigger classifies raw trigger strings,
// alert holds the reloadable rule set, eventbus abstracts the host's event
// registry, intercept attaches the catch-all listener, dispatch runs the
// per-event pipeline, and message models the renderable template. External
// collaborators (channel resolution, delivery, bridge integration) are
// consumed through the narrow interfaces in the bridge package.
package alertstream
