// Package trigger normalizes raw alert trigger strings into canonical
// identifiers.
//
// A trigger is either a command ("/discord") or an event type name
// ("PlayerJoinEvent", "game.block.BreakEvent"). Command triggers pass through
// lower-cased; event triggers must contain a syntactically valid
// dot-separated identifier. Classification results, including failures, are
// cached under the raw string with a bounded lifetime so repeated reloads and
// rule scans avoid re-validation.
package trigger
