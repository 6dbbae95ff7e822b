// Package natsclient wraps the NATS connection used to receive game events.
// It adds a circuit breaker around connection attempts, connection status
// tracking and health change callbacks on top of the nats.go client.
package natsclient
