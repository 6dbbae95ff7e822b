package dispatch

import (
	"strings"

	"github.com/c360/alertstream/trigger"
)

// NormalizeCommand turns a raw command line into its trigger ID plus
// arguments. The leading slash and any plugin namespace prefix on the base
// command ("minecraft:tp" -> "tp") are removed and the base is lowercased.
func NormalizeCommand(line string) (trigger.ID, []string) {
	line = strings.TrimSpace(line)
	line = strings.TrimPrefix(line, "/")
	if line == "" {
		return "", nil
	}

	parts := strings.Fields(line)
	base := parts[0]
	if idx := strings.LastIndex(base, ":"); idx >= 0 {
		base = base[idx+1:]
	}
	// Some namespaced commands keep their own slash ("worldedit:/set").
	base = strings.TrimPrefix(base, "/")
	if base == "" {
		return "", nil
	}
	args := parts[1:]
	if len(args) == 0 {
		args = nil
	}
	return trigger.ID("/" + strings.ToLower(base)), args
}
