// Package retry implements exponential backoff with jitter for operations
// that may fail transiently, such as webhook posts and feed reconnects.
package retry
