package expression

import (
	"fmt"
	"regexp"

	"github.com/c360/alertstream/errors"
	"github.com/c360/alertstream/pkg/cache"
)

// Evaluator turns an expression plus a variable environment into a value.
// Implementations must distinguish parse failures (errors.ErrExpressionParse)
// from evaluation failures (errors.ErrExpressionEval) so callers can decide
// whether retrying with different variables could ever succeed.
type Evaluator interface {
	Evaluate(expression string, vars map[string]any) (any, error)
}

// regexCacheSize bounds the compiled-pattern cache of the default evaluator.
const regexCacheSize = 128

// defaultEvaluator is the built-in implementation.
type defaultEvaluator struct {
	patterns cache.Cache[*regexp.Regexp]
}

// New creates the default evaluator.
func New() Evaluator {
	patterns, _ := cache.NewLRU[*regexp.Regexp](regexCacheSize)
	return &defaultEvaluator{patterns: patterns}
}

func (e *defaultEvaluator) Evaluate(expression string, vars map[string]any) (any, error) {
	node, err := parse(expression)
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrExpressionParse, "Evaluator", "Evaluate", err.Error())
	}
	value, err := node.eval(&environment{vars: vars, compile: e.compile})
	if err != nil {
		return nil, errors.WrapInvalid(errors.ErrExpressionEval, "Evaluator", "Evaluate", err.Error())
	}
	return value, nil
}

func (e *defaultEvaluator) compile(pattern string) (*regexp.Regexp, error) {
	if compiled, ok := e.patterns.Get(pattern); ok {
		return compiled, nil
	}
	compiled, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("invalid pattern %q: %w", pattern, err)
	}
	_, _ = e.patterns.Set(pattern, compiled)
	return compiled, nil
}

// Condition evaluates expr as a rule condition. An empty expression or a
// nil result holds; errors and any non-true value mean the condition is not
// met.
func Condition(ev Evaluator, expr string, vars map[string]any) bool {
	if expr == "" {
		return true
	}
	value, err := ev.Evaluate(expr, vars)
	if err != nil {
		return false
	}
	if value == nil {
		return true
	}
	met, ok := value.(bool)
	return ok && met
}
