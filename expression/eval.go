package expression

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
)

type environment struct {
	vars    map[string]any
	compile func(pattern string) (*regexp.Regexp, error)
}

func (n *literalNode) eval(_ *environment) (any, error) { return n.value, nil }

func (n *variableNode) eval(env *environment) (any, error) {
	segments := strings.Split(n.path, ".")
	value, ok := env.vars[segments[0]]
	if !ok {
		return nil, fmt.Errorf("unknown variable %q", segments[0])
	}
	for _, segment := range segments[1:] {
		next, err := access(value, segment)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", n.path, err)
		}
		value = next
	}
	return value, nil
}

// access resolves one path segment against a map key, an exported struct
// field, or a zero-argument method, in that order.
func access(value any, segment string) (any, error) {
	if value == nil {
		return nil, fmt.Errorf("cannot access %q on null", segment)
	}
	if m, ok := value.(map[string]any); ok {
		inner, exists := m[segment]
		if !exists {
			return nil, fmt.Errorf("no key %q", segment)
		}
		return inner, nil
	}

	rv := reflect.ValueOf(value)
	if method := rv.MethodByName(segment); method.IsValid() && method.Type().NumIn() == 0 && method.Type().NumOut() == 1 {
		return method.Call(nil)[0].Interface(), nil
	}
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil, fmt.Errorf("cannot access %q on null", segment)
		}
		rv = rv.Elem()
	}
	if rv.Kind() == reflect.Struct {
		if field := rv.FieldByName(segment); field.IsValid() && field.CanInterface() {
			return field.Interface(), nil
		}
		if method := rv.MethodByName(segment); method.IsValid() && method.Type().NumIn() == 0 && method.Type().NumOut() == 1 {
			return method.Call(nil)[0].Interface(), nil
		}
	}
	return nil, fmt.Errorf("no field %q on %T", segment, value)
}

func (n *unaryNode) eval(env *environment) (any, error) {
	value, err := n.operand.eval(env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case "!":
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("operator ! needs a boolean, got %T", value)
		}
		return !b, nil
	case "-":
		f, ok := toNumber(value)
		if !ok {
			return nil, fmt.Errorf("operator - needs a number, got %T", value)
		}
		return -f, nil
	}
	return nil, fmt.Errorf("unknown unary operator %q", n.op)
}

func (n *binaryNode) eval(env *environment) (any, error) {
	// Short-circuit boolean operators before evaluating the right side.
	if n.op == "&&" || n.op == "||" {
		left, err := n.left.eval(env)
		if err != nil {
			return nil, err
		}
		lb, ok := left.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s needs booleans, got %T", n.op, left)
		}
		if n.op == "&&" && !lb {
			return false, nil
		}
		if n.op == "||" && lb {
			return true, nil
		}
		right, err := n.right.eval(env)
		if err != nil {
			return nil, err
		}
		rb, ok := right.(bool)
		if !ok {
			return nil, fmt.Errorf("operator %s needs booleans, got %T", n.op, right)
		}
		return rb, nil
	}

	left, err := n.left.eval(env)
	if err != nil {
		return nil, err
	}
	right, err := n.right.eval(env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case "==":
		return looseEqual(left, right), nil
	case "!=":
		return !looseEqual(left, right), nil
	case "matches":
		return evalMatches(env, left, right)
	case "<", "<=", ">", ">=":
		return compare(n.op, left, right)
	case "+":
		if ls, ok := left.(string); ok {
			return ls + stringify(right), nil
		}
		if rs, ok := right.(string); ok {
			return stringify(left) + rs, nil
		}
		return arithmetic(n.op, left, right)
	case "-", "*", "/", "%":
		return arithmetic(n.op, left, right)
	}
	return nil, fmt.Errorf("unknown operator %q", n.op)
}

func evalMatches(env *environment, left, right any) (any, error) {
	subject, ok := left.(string)
	if !ok {
		subject = stringify(left)
	}
	pattern, ok := right.(string)
	if !ok {
		return nil, fmt.Errorf("matches needs a string pattern, got %T", right)
	}
	compiled, err := env.compile(pattern)
	if err != nil {
		return nil, err
	}
	// Whole-string semantics: "abc matches 'a.c'" is true, a partial match
	// is not enough.
	return compiled.FindString(subject) == subject && compiled.MatchString(subject), nil
}

// looseEqual compares numbers numerically regardless of underlying width and
// everything else with ==.
func looseEqual(left, right any) bool {
	lf, lok := toNumber(left)
	rf, rok := toNumber(right)
	if lok && rok {
		return lf == rf
	}
	return left == right
}

func compare(op string, left, right any) (any, error) {
	if ls, lok := left.(string); lok {
		rs, rok := right.(string)
		if !rok {
			return nil, fmt.Errorf("cannot compare string with %T", right)
		}
		return orderResult(op, strings.Compare(ls, rs)), nil
	}

	lf, lok := toNumber(left)
	rf, rok := toNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("cannot compare %T with %T", left, right)
	}
	switch {
	case lf < rf:
		return orderResult(op, -1), nil
	case lf > rf:
		return orderResult(op, 1), nil
	default:
		return orderResult(op, 0), nil
	}
}

func orderResult(op string, cmp int) bool {
	switch op {
	case "<":
		return cmp < 0
	case "<=":
		return cmp <= 0
	case ">":
		return cmp > 0
	default:
		return cmp >= 0
	}
}

func arithmetic(op string, left, right any) (any, error) {
	lf, lok := toNumber(left)
	rf, rok := toNumber(right)
	if !lok || !rok {
		return nil, fmt.Errorf("operator %s needs numbers, got %T and %T", op, left, right)
	}
	switch op {
	case "+":
		return lf + rf, nil
	case "-":
		return lf - rf, nil
	case "*":
		return lf * rf, nil
	case "/":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return lf / rf, nil
	case "%":
		if rf == 0 {
			return nil, fmt.Errorf("division by zero")
		}
		return float64(int64(lf) % int64(rf)), nil
	}
	return nil, fmt.Errorf("unknown operator %q", op)
}

func toNumber(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case uint:
		return float64(v), true
	case uint64:
		return float64(v), true
	}
	return 0, false
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return "null"
	case string:
		return v
	case float64:
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
