// Package natsevents feeds the in-process event bus from a NATS subject.
// Game servers publish one JSON envelope per event; the input decodes the
// envelope into a bus event and publishes it, so the alert pipeline treats
// remote events exactly like local ones.
package natsevents
