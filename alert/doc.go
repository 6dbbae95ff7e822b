// Package alert holds the parsed alert rules and the store that owns the
// active rule set. Rules are immutable once parsed; a configuration reload
// builds a complete new set and swaps it in atomically, so dispatch never
// observes a half-reloaded state.
package alert
