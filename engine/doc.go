// Package engine assembles the alert pipeline: configuration, rule store,
// event bus, interceptor, dispatch and bridge. It is the only package an
// embedding application needs to touch.
package engine
