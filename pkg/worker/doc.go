// Package worker provides a bounded generic worker pool. The dispatch
// pipeline uses it to run asynchronous alert processing off the event
// handler's goroutine with backpressure instead of unbounded fan-out.
package worker
