package config

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/c360/alertstream/errors"
)

// Reader is the narrow read interface consumed by rule and template
// materialization. Paths are dot-separated; list elements are addressed by
// index ("Alerts.0.Trigger").
type Reader interface {
	GetOptional(path string) (any, bool)
	GetOptionalString(path string) (string, bool)
	GetOptionalBool(path string) (bool, bool)
	GetOptionalInt(path string) (int, bool)
	GetOptionalInt64(path string) (int64, bool)
	GetOptionalStringList(path string) ([]string, bool)
	AlertCount() int
}

// Config holds a loaded configuration document. The document is replaced
// wholesale on reload; readers always see a consistent snapshot.
type Config struct {
	mu   sync.RWMutex
	root map[string]any
}

// New wraps an already-decoded document.
func New(root map[string]any) *Config {
	if root == nil {
		root = make(map[string]any)
	}
	return &Config{root: root}
}

// Load reads, decodes and validates a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapFatal(err, "Config", "Load", "read configuration file")
	}
	return Parse(data)
}

// Parse decodes and validates a YAML configuration document.
func Parse(data []byte) (*Config, error) {
	var root map[string]any
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, errors.WrapInvalid(err, "Config", "Parse", "decode YAML")
	}
	if err := ValidateDocument(root); err != nil {
		return nil, err
	}
	return New(root), nil
}

// Reload atomically replaces the document from the given file.
func (c *Config) Reload(path string) error {
	next, err := Load(path)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.root = next.root
	c.mu.Unlock()
	return nil
}

// GetOptional resolves a dotted path in the document.
func (c *Config) GetOptional(path string) (any, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var current any = c.root
	for _, segment := range strings.Split(path, ".") {
		switch node := current.(type) {
		case map[string]any:
			value, ok := node[segment]
			if !ok {
				return nil, false
			}
			current = value
		case []any:
			index, err := strconv.Atoi(segment)
			if err != nil || index < 0 || index >= len(node) {
				return nil, false
			}
			current = node[index]
		default:
			return nil, false
		}
	}
	return current, true
}

// GetOptionalString resolves a path to a string value.
func (c *Config) GetOptionalString(path string) (string, bool) {
	value, ok := c.GetOptional(path)
	if !ok {
		return "", false
	}
	s, ok := value.(string)
	return s, ok
}

// GetOptionalBool resolves a path to a boolean value.
func (c *Config) GetOptionalBool(path string) (bool, bool) {
	value, ok := c.GetOptional(path)
	if !ok {
		return false, false
	}
	b, ok := value.(bool)
	return b, ok
}

// GetOptionalInt resolves a path to an int, coercing the numeric types the
// YAML decoder produces.
func (c *Config) GetOptionalInt(path string) (int, bool) {
	value, ok := c.GetOptional(path)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	default:
		return 0, false
	}
}

// GetOptionalInt64 resolves a path to an int64.
func (c *Config) GetOptionalInt64(path string) (int64, bool) {
	value, ok := c.GetOptional(path)
	if !ok {
		return 0, false
	}
	switch v := value.(type) {
	case int:
		return int64(v), true
	case int64:
		return v, true
	case float64:
		return int64(v), true
	default:
		return 0, false
	}
}

// GetOptionalStringList resolves a path to a list of strings. A bare string
// value is returned as a single-element list, matching how rule definitions
// allow scalar-or-list fields.
func (c *Config) GetOptionalStringList(path string) ([]string, bool) {
	value, ok := c.GetOptional(path)
	if !ok {
		return nil, false
	}
	switch v := value.(type) {
	case string:
		return []string{v}, true
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

// AlertCount returns the number of entries under "Alerts".
func (c *Config) AlertCount() int {
	value, ok := c.GetOptional("Alerts")
	if !ok {
		return 0
	}
	list, ok := value.([]any)
	if !ok {
		return 0
	}
	return len(list)
}
