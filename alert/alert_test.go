package alert

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alertstream/config"
	"github.com/c360/alertstream/trigger"
)

func newClassifier(t *testing.T) *trigger.Classifier {
	t.Helper()
	c, err := trigger.NewClassifier(context.Background())
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func loadConfig(t *testing.T, yaml string) *config.Config {
	t.Helper()
	cfg, err := config.Parse([]byte(yaml))
	require.NoError(t, err)
	return cfg
}

func TestParseRule_Defaults(t *testing.T) {
	cfg := loadConfig(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Content: "{name} died"
`)
	rule, err := ParseRule(cfg, newClassifier(t), 0)
	require.NoError(t, err)

	assert.Equal(t, []trigger.ID{"PlayerDeathEvent"}, rule.Triggers)
	assert.True(t, rule.Async, "async defaults to true")
	assert.True(t, rule.IgnoreCancelled, "cancelled events are skipped by default")
	assert.Empty(t, rule.Targets)
	assert.Empty(t, rule.Conditions)
	require.NotNil(t, rule.Template)
	assert.Equal(t, "alert #1", rule.Key())
}

func TestParseRule_Explicit(t *testing.T) {
	cfg := loadConfig(t, `
Alerts:
  - Trigger:
      - PlayerDeathEvent
      - "/Home"
    Target:
      - staff
      - "123456789"
    Async: false
    IgnoreCancelled: false
    Conditions:
      - "actor.World == 'nether'"
    Content: boom
`)
	rule, err := ParseRule(cfg, newClassifier(t), 0)
	require.NoError(t, err)

	assert.Equal(t, []trigger.ID{"PlayerDeathEvent", "/home"}, rule.Triggers,
		"command triggers are lowercased")
	assert.Equal(t, []string{"staff", "123456789"}, rule.Targets)
	assert.False(t, rule.Async)
	assert.False(t, rule.IgnoreCancelled)
	assert.Equal(t, []string{"actor.World == 'nether'"}, rule.Conditions)

	assert.True(t, rule.Matches(trigger.ID("/home")))
	assert.False(t, rule.Matches(trigger.ID("/spawn")))
}

func TestParseRule_AsyncStringForms(t *testing.T) {
	tests := []struct {
		raw      string
		expected bool
	}{
		{`"no"`, false},
		{`"false"`, false},
		{`"FALSE"`, false},
		{`"yes"`, true},
		{`"anything"`, true},
	}
	for _, test := range tests {
		t.Run(test.raw, func(t *testing.T) {
			cfg := loadConfig(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Async: `+test.raw+`
    Content: x
`)
			rule, err := ParseRule(cfg, newClassifier(t), 0)
			require.NoError(t, err)
			assert.Equal(t, test.expected, rule.Async)
		})
	}
}

func TestParseRule_InvalidTriggers(t *testing.T) {
	cfg := loadConfig(t, `
Alerts:
  - Trigger:
      - "not a valid name!!"
    Content: x
  - Trigger:
      - "also bad!!"
      - PlayerJoinEvent
    Content: x
`)
	classifier := newClassifier(t)

	rule, err := ParseRule(cfg, classifier, 0)
	assert.Nil(t, rule, "rule with no usable trigger is dropped")
	assert.Error(t, err)

	rule, err = ParseRule(cfg, classifier, 1)
	require.NotNil(t, rule, "rule survives when one trigger is valid")
	assert.Error(t, err, "invalid triggers are still reported")
	assert.Equal(t, []trigger.ID{"PlayerJoinEvent"}, rule.Triggers)
}

func TestStore_ReloadSwapsAtomically(t *testing.T) {
	store := NewStore(newClassifier(t))
	assert.Empty(t, store.Snapshot())

	cfg := loadConfig(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Content: x
  - Trigger: "/home"
    Content: y
`)
	result, err := store.Reload(cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Count)
	assert.Contains(t, result.ActiveTriggers, trigger.ID("PlayerDeathEvent"))
	assert.Contains(t, result.ActiveTriggers, trigger.ID("/home"))
	assert.Len(t, store.Snapshot(), 2)

	smaller := loadConfig(t, `
Alerts:
  - Trigger: PlayerJoinEvent
    Content: z
`)
	result, err = store.Reload(smaller)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
	assert.Len(t, store.Snapshot(), 1)
	assert.NotContains(t, result.ActiveTriggers, trigger.ID("PlayerDeathEvent"))
}

func TestStore_ReloadNotifiesListeners(t *testing.T) {
	store := NewStore(newClassifier(t))

	var seen []ReloadResult
	store.OnReload(func(r ReloadResult) { seen = append(seen, r) })

	cfg := loadConfig(t, `
Alerts:
  - Trigger: PlayerDeathEvent
    Content: x
`)
	_, err := store.Reload(cfg)
	require.NoError(t, err)
	require.Len(t, seen, 1)
	assert.Equal(t, 1, seen[0].Count)
}

func TestStore_ReloadMissingSection(t *testing.T) {
	store := NewStore(newClassifier(t))
	cfg := loadConfig(t, `Other: {}`)

	result, err := store.Reload(cfg)
	assert.Error(t, err)
	assert.Zero(t, result.Count)
	assert.Empty(t, store.Snapshot())
}

func TestStore_SkipsMalformedRuleKeepsRest(t *testing.T) {
	store := NewStore(newClassifier(t))
	cfg := loadConfig(t, `
Alerts:
  - Trigger: "!!"
    Content: bad
  - Trigger: PlayerJoinEvent
    Content: good
`)
	result, err := store.Reload(cfg)
	require.NoError(t, err)
	assert.Equal(t, 1, result.Count)
}
