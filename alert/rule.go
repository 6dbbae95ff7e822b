package alert

import (
	"fmt"
	"strings"

	"github.com/c360/alertstream/config"
	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/message"
	"github.com/c360/alertstream/trigger"
)

// Rule is one parsed alert definition. Index is the rule's position in the
// configuration list and doubles as its stable identity for logging.
type Rule struct {
	Index           int
	Triggers        []trigger.ID
	Targets         []string
	Async           bool
	IgnoreCancelled bool
	Conditions      []string
	Template        *message.Template
}

// Matches reports whether id is one of the rule's triggers.
func (r *Rule) Matches(id trigger.ID) bool {
	for _, t := range r.Triggers {
		if t == id {
			return true
		}
	}
	return false
}

// Key returns the rule's log identity, e.g. "alert #3".
func (r *Rule) Key() string { return fmt.Sprintf("alert #%d", r.Index+1) }

// ParseRule builds a rule from the configuration subtree at Alerts.<index>.
// Triggers that fail classification are dropped with a non-nil error naming
// them; the rule itself survives as long as at least one trigger remains.
func ParseRule(reader config.Reader, classifier *trigger.Classifier, index int) (*Rule, error) {
	key := fmt.Sprintf("Alerts.%d", index)
	if _, ok := reader.GetOptional(key); !ok {
		return nil, errors.WrapInvalid(errors.ErrMissingConfig, "alert", "ParseRule", key)
	}

	rule := &Rule{
		Index:           index,
		Async:           true,
		IgnoreCancelled: true,
	}

	raw, _ := reader.GetOptionalStringList(key + ".Trigger")
	var bad []string
	for _, name := range raw {
		id, ok := classifier.Classify(strings.TrimSpace(name))
		if !ok {
			bad = append(bad, name)
			continue
		}
		rule.Triggers = append(rule.Triggers, id)
	}

	rule.Targets, _ = reader.GetOptionalStringList(key + ".Target")
	rule.Conditions, _ = reader.GetOptionalStringList(key + ".Conditions")
	rule.Async = parseAsync(reader, key+".Async")
	if ignore, ok := reader.GetOptionalBool(key + ".IgnoreCancelled"); ok {
		rule.IgnoreCancelled = ignore
	}
	rule.Template = message.FromConfig(reader, key)

	var err error
	if len(bad) > 0 {
		err = errors.WrapInvalid(errors.ErrInvalidTrigger, "alert", "ParseRule",
			fmt.Sprintf("%s: %s", rule.Key(), strings.Join(bad, ", ")))
	}
	if len(rule.Triggers) == 0 {
		return nil, errors.WrapInvalid(errors.ErrInvalidTrigger, "alert", "ParseRule",
			fmt.Sprintf("%s has no usable trigger", rule.Key()))
	}
	return rule, err
}

// parseAsync defaults to true. Booleans are taken as-is; the string forms
// "false" and "no" also disable async, everything else keeps the default.
func parseAsync(reader config.Reader, key string) bool {
	if async, ok := reader.GetOptionalBool(key); ok {
		return async
	}
	if raw, ok := reader.GetOptionalString(key); ok {
		switch strings.ToLower(strings.TrimSpace(raw)) {
		case "false", "no":
			return false
		}
	}
	return true
}
