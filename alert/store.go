package alert

import (
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/c360/alertstream/config"
	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/trigger"
)

// ReloadResult summarizes one reload: how many rules were loaded and which
// triggers the new set listens for.
type ReloadResult struct {
	Count          int
	ActiveTriggers map[trigger.ID]struct{}
}

// ReloadListener is notified after every successful reload, outside the
// store's lock.
type ReloadListener func(ReloadResult)

// Store owns the active rule set. Snapshot is lock-free on the read path;
// Reload replaces the whole set atomically.
type Store struct {
	logger     *slog.Logger
	classifier *trigger.Classifier

	rules atomic.Pointer[[]*Rule]

	mu        sync.Mutex
	listeners []ReloadListener
}

// NewStore creates an empty rule store.
func NewStore(classifier *trigger.Classifier) *Store {
	s := &Store{
		logger:     slog.Default().With("component", "alert-store"),
		classifier: classifier,
	}
	empty := []*Rule{}
	s.rules.Store(&empty)
	return s
}

// Snapshot returns the current rule set. The returned slice must not be
// modified.
func (s *Store) Snapshot() []*Rule {
	return *s.rules.Load()
}

// OnReload registers a listener for future reloads.
func (s *Store) OnReload(fn ReloadListener) {
	s.mu.Lock()
	s.listeners = append(s.listeners, fn)
	s.mu.Unlock()
}

// Reload parses every alert in the configuration and swaps the active set.
// Individual malformed rules are logged and skipped; the reload itself only
// fails when the configuration carries no Alerts section at all. The trigger
// classifier cache is purged first so renamed event categories revalidate.
func (s *Store) Reload(reader config.Reader) (ReloadResult, error) {
	s.classifier.Purge()

	count := reader.AlertCount()
	rules := make([]*Rule, 0, count)
	for i := 0; i < count; i++ {
		rule, err := ParseRule(reader, s.classifier, i)
		if err != nil {
			if rule == nil {
				s.logger.Warn("skipping alert", "index", i, "error", err)
				continue
			}
			s.logger.Warn("alert has invalid triggers", "index", i, "error", err)
		}
		if rule.Template == nil {
			s.logger.Debug("alert has no message, it will never dispatch", "alert", rule.Key())
		}
		rules = append(rules, rule)
	}

	result := ReloadResult{
		Count:          len(rules),
		ActiveTriggers: make(map[trigger.ID]struct{}),
	}
	for _, rule := range rules {
		for _, id := range rule.Triggers {
			result.ActiveTriggers[id] = struct{}{}
		}
	}

	s.rules.Store(&rules)

	s.mu.Lock()
	listeners := make([]ReloadListener, len(s.listeners))
	copy(listeners, s.listeners)
	s.mu.Unlock()
	for _, fn := range listeners {
		fn(result)
	}

	if count == 0 {
		if _, ok := reader.GetOptional("Alerts"); !ok {
			return result, errors.WrapInvalid(errors.ErrMissingConfig, "Store", "Reload", "no Alerts section")
		}
	}
	return result, nil
}
