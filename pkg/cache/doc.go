// Package cache provides generic thread-safe caches used across alertstream:
// the trigger classifier's bounded-lifetime classification cache (TTL) and
// the expression evaluator's compiled-regex cache (LRU).
package cache
