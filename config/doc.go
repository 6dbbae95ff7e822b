// Package config loads the alertstream configuration document and exposes it
// through a dotted-path optional reader.
//
// The document is YAML. Consumers address values by path ("Alerts.0.Trigger",
// "Alerts.2.Embed.Color"); numeric segments index into lists. Every accessor
// has an optional flavor returning (value, ok) so missing keys are ordinary,
// not errors. The document is validated against an embedded JSON schema on
// load; validation failures report every offending path at once.
package config
