// Package expression evaluates the small condition language used by alert
// rules: comparison and boolean operators over dotted variable paths, string
// and numeric literals, and a regex match operator. The evaluator is
// pluggable so an embedding application can swap in a richer language; the
// default implementation is self-contained and allocation-light.
package expression
