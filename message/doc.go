// Package message models the renderable alert message: plain content, an
// optional rich embed, and an optional webhook envelope. Templates are
// materialized from configuration once per reload and rendered per dispatch
// by applying a translator to every textual field.
package message
