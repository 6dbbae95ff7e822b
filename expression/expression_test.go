package expression

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/eventbus"
)

func TestEvaluate_Literals(t *testing.T) {
	ev := New()
	tests := []struct {
		expr     string
		expected any
	}{
		{"true", true},
		{"false", false},
		{"42", float64(42)},
		{"3.5", 3.5},
		{"'hello'", "hello"},
		{`"world"`, "world"},
		{"null", nil},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			value, err := ev.Evaluate(test.expr, nil)
			require.NoError(t, err)
			assert.Equal(t, test.expected, value)
		})
	}
}

func TestEvaluate_Operators(t *testing.T) {
	ev := New()
	vars := map[string]any{
		"ping":  42,
		"world": "nether",
		"ok":    true,
	}
	tests := []struct {
		expr     string
		expected any
	}{
		{"ping == 42", true},
		{"ping != 42", false},
		{"ping > 40 && ping < 50", true},
		{"ping > 100 || ok", true},
		{"!ok", false},
		{"world == 'nether'", true},
		{"world < 'overworld'", true},
		{"ping + 8", float64(50)},
		{"ping * 2 - 4", float64(80)},
		{"ping % 5", float64(2)},
		{"-ping", float64(-42)},
		{"'latency: ' + ping", "latency: 42"},
		{"(ping > 40) == ok", true},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			value, err := ev.Evaluate(test.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, test.expected, value)
		})
	}
}

func TestEvaluate_Matches(t *testing.T) {
	ev := New()
	vars := map[string]any{"name": "Steve_77"}

	value, err := ev.Evaluate(`name matches '[A-Za-z]+_\d+'`, vars)
	require.NoError(t, err)
	assert.Equal(t, true, value)

	value, err = ev.Evaluate(`name matches '\d+'`, vars)
	require.NoError(t, err)
	assert.Equal(t, false, value, "partial match is not a match")

	_, err = ev.Evaluate(`name matches '('`, vars)
	require.Error(t, err)
	assert.True(t, errors.IsInvalid(err))
}

func TestEvaluate_DottedPaths(t *testing.T) {
	ev := New()
	actor := &eventbus.Actor{Name: "Steve", World: "nether", Ping: 42}
	event := &eventbus.GenericEvent{
		Name:   "PlayerDeathEvent",
		Source: actor,
		Fields: map[string]any{"cause": "lava", "depth": map[string]any{"y": 11}},
	}
	vars := map[string]any{
		"actor": actor,
		"event": event,
		"data":  event.Fields,
	}

	tests := []struct {
		expr     string
		expected any
	}{
		{"actor.World == 'nether'", true},
		{"actor.Ping >= 40", true},
		{"event.Source.Name == 'Steve'", true},
		{"data.cause == 'lava'", true},
		{"data.depth.y < 12", true},
		{"event.EventName == 'PlayerDeathEvent'", true},
		{"event.Cancelled == false", true},
	}
	for _, test := range tests {
		t.Run(test.expr, func(t *testing.T) {
			value, err := ev.Evaluate(test.expr, vars)
			require.NoError(t, err)
			assert.Equal(t, test.expected, value)
		})
	}
}

func TestEvaluate_ParseVsEvalErrors(t *testing.T) {
	ev := New()

	_, err := ev.Evaluate("1 +", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrExpressionParse)

	_, err = ev.Evaluate("missing == 1", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrExpressionEval)

	_, err = ev.Evaluate("'a' ==", nil)
	assert.ErrorIs(t, err, errors.ErrExpressionParse)

	_, err = ev.Evaluate("1 / 0", nil)
	assert.ErrorIs(t, err, errors.ErrExpressionEval)
}

func TestEvaluate_ShortCircuit(t *testing.T) {
	ev := New()
	vars := map[string]any{"ok": false}

	// The right side references an unknown variable but is never reached.
	value, err := ev.Evaluate("ok && missing == 1", vars)
	require.NoError(t, err)
	assert.Equal(t, false, value)

	vars["ok"] = true
	value, err = ev.Evaluate("ok || missing == 1", vars)
	require.NoError(t, err)
	assert.Equal(t, true, value)
}

func TestCondition(t *testing.T) {
	ev := New()
	vars := map[string]any{"ping": 10}

	assert.True(t, Condition(ev, "", vars), "empty condition holds")
	assert.True(t, Condition(ev, "ping < 50", vars))
	assert.False(t, Condition(ev, "ping > 50", vars))
	assert.True(t, Condition(ev, "null", vars), "nil result is treated as met")
	assert.False(t, Condition(ev, "not (valid", vars), "parse failure means not met")
	assert.False(t, Condition(ev, "missing == 1", vars), "eval failure means not met")
	assert.False(t, Condition(ev, "ping + 1", vars), "non-boolean result means not met")
}
