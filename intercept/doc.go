// Package intercept attaches a single shared listener to every event
// category on the bus, so alert rules can trigger on any event without the
// categories being known up front. A small deny list keeps the listener off
// high-frequency internal categories that must never feed alerts.
package intercept
