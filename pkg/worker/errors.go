package worker

import "errors"

var (
	// ErrNilProcessor is returned when a pool is created without a processor.
	ErrNilProcessor = errors.New("worker: processor function is required")
	// ErrPoolNotStarted is returned by Submit before Start.
	ErrPoolNotStarted = errors.New("worker: pool not started")
	// ErrPoolStopped is returned by Submit after Stop.
	ErrPoolStopped = errors.New("worker: pool stopped")
	// ErrPoolAlreadyStarted is returned by a second Start.
	ErrPoolAlreadyStarted = errors.New("worker: pool already started")
	// ErrQueueFull is returned when the queue cannot take more work.
	ErrQueueFull = errors.New("worker: queue full")
	// ErrStopTimeout is returned when workers do not drain in time.
	ErrStopTimeout = errors.New("worker: stop timed out")
)
