package message

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholderPattern = regexp.MustCompile(`\{([A-Za-z0-9_]+)\}`)

// FormatPlaceholders substitutes every {key} token using resolve. The
// resolver returns the replacement text and whether the key was recognized;
// unrecognized tokens pass through unchanged so downstream formatters can
// still see them.
func FormatPlaceholders(text string, resolve func(key string) (string, bool)) string {
	if text == "" {
		return ""
	}
	return placeholderPattern.ReplaceAllStringFunc(text, func(token string) string {
		key := token[1 : len(token)-1]
		if replacement, ok := resolve(key); ok {
			return replacement
		}
		return token
	})
}

// FormatExpressions substitutes every ${expression} fragment with the
// stringified result of eval. A fragment whose evaluation fails is left
// untouched, so a broken expression shows up verbatim in the delivered
// message instead of silently vanishing.
func FormatExpressions(text string, eval func(expression string) (any, error)) string {
	if !strings.Contains(text, "${") {
		return text
	}

	var out strings.Builder
	rest := text
	for {
		start := strings.Index(rest, "${")
		if start < 0 {
			out.WriteString(rest)
			return out.String()
		}
		end := strings.Index(rest[start:], "}")
		if end < 0 {
			out.WriteString(rest)
			return out.String()
		}
		end += start

		out.WriteString(rest[:start])
		fragment := rest[start : end+1]
		expression := rest[start+2 : end]

		if result, err := eval(expression); err == nil {
			out.WriteString(stringify(result))
		} else {
			out.WriteString(fragment)
		}
		rest = rest[end+1:]
	}
}

func stringify(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		if v {
			return "true"
		}
		return "false"
	case float64:
		// Whole floats print without a trailing ".0" so numeric expression
		// results read like integers.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%g", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
