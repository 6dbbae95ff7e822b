// Package dispatch runs alert rules against incoming events. The pipeline
// listens on the event bus, matches rules by trigger, applies the rule's
// cancellation policy and per-channel conditions, renders the message
// template and hands the result to the bridge for delivery. Asynchronous
// rules are processed on a bounded worker pool so event handlers never
// block on delivery.
package dispatch
