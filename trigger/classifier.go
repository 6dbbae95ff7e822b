package trigger

import (
	"context"
	"regexp"
	"strings"
	"time"

	"github.com/c360/alertstream/pkg/cache"
)

// ID is the canonical form of a trigger: "/" + lower-cased command base for
// command triggers, or a lower-cased validated event type name.
type ID string

// IsCommand reports whether the trigger fires on commands rather than events.
func (id ID) IsCommand() bool { return strings.HasPrefix(string(id), "/") }

// CommandBase returns the command name without the leading slash. Empty for
// event triggers.
func (id ID) CommandBase() string {
	if !id.IsCommand() {
		return ""
	}
	return string(id)[1:]
}

// validNamePattern accepts dot-separated identifier segments, each starting
// with a letter, underscore or $, followed by letters, digits, underscores or
// $. The first match inside the raw string is the canonical name.
var validNamePattern = regexp.MustCompile(`[\p{L}_$][\p{L}\p{N}_$]*(\.[\p{L}_$][\p{L}\p{N}_$]*)*`)

// DefaultTTL bounds how long a classification result is served from cache
// before the raw string is re-validated.
const DefaultTTL = time.Minute

// classification is the cached outcome for one raw trigger string. Failed
// classifications are cached too: they are permanent for a given raw string,
// so re-validating them on every event would be wasted work.
type classification struct {
	id ID
	ok bool
}

// Classifier validates and normalizes raw trigger strings.
type Classifier struct {
	results cache.Cache[classification]

	// validate is swappable in tests to observe validation calls.
	validate func(raw string) (ID, bool)
}

// Option configures a Classifier.
type Option func(*options)

type options struct {
	ttl time.Duration
}

// WithTTL overrides the classification cache lifetime.
func WithTTL(ttl time.Duration) Option {
	return func(o *options) {
		if ttl > 0 {
			o.ttl = ttl
		}
	}
}

// NewClassifier creates a classifier whose cache sweep stops when ctx is
// cancelled.
func NewClassifier(ctx context.Context, opts ...Option) (*Classifier, error) {
	o := &options{ttl: DefaultTTL}
	for _, opt := range opts {
		opt(o)
	}

	results, err := cache.NewTTL[classification](ctx, o.ttl)
	if err != nil {
		return nil, err
	}
	return &Classifier{
		results:  results,
		validate: validateEventName,
	}, nil
}

// Classify resolves a raw trigger string to its canonical ID. The second
// return value is false when the string is neither a command nor a valid
// event name; callers must treat that as a permanent non-match for this raw
// string.
func (c *Classifier) Classify(raw string) (ID, bool) {
	if strings.HasPrefix(raw, "/") {
		return ID(strings.ToLower(raw)), true
	}

	if cached, ok := c.results.Get(raw); ok {
		return cached.id, cached.ok
	}

	id, ok := c.validate(raw)
	// Ignore the set error: an uncacheable key only costs a re-validation.
	_, _ = c.results.Set(raw, classification{id: id, ok: ok})
	return id, ok
}

// Purge clears the classification cache. Called on configuration reload.
func (c *Classifier) Purge() {
	_ = c.results.Clear()
}

// Close releases the cache's background sweep.
func (c *Classifier) Close() error {
	return c.results.Close()
}

func validateEventName(raw string) (ID, bool) {
	match := validNamePattern.FindString(raw)
	if match == "" {
		return "", false
	}
	return ID(strings.ToLower(match)), true
}
