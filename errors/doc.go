// Package errors provides standardized error handling patterns for alertstream.
//
// # Overview
//
// The package implements a three-class error classification system: Transient
// (temporary, retryable), Invalid (bad input, non-retryable), and Fatal
// (unrecoverable, stop processing). Classification lets the dispatch pipeline
// and delivery collaborators make retry and degradation decisions without
// hardcoded error string matching.
//
// # Usage
//
// Wrap errors at component boundaries with context:
//
//	if err := store.Reload(rules); err != nil {
//	    return errors.Wrap(err, "Engine", "ReloadAlerts", "reload rule store")
//	}
//
// Classify with the Wrap variants when the caller should react to the class:
//
//	return errors.WrapInvalid(errors.ErrInvalidTrigger, "Classifier", "Classify", raw)
//
// The hard invariant of the engine is that no error, whatever its class, may
// propagate out of an event handler into the host event bus. The dispatch
// pipeline converts every failure into a log entry at the handler boundary.
package errors
