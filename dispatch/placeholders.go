package dispatch

import (
	"fmt"
	"strconv"
	"time"

	"github.com/c360/alertstream/bridge"
	"github.com/c360/alertstream/eventbus"
)

// Fallback identity used when no bridge integration is wired.
const (
	defaultBotName      = "Bot"
	defaultBotAvatarURL = "https://cdn.discordapp.com/embed/avatars/0.png"
)

// placeholderContext carries everything the placeholder table may reference.
type placeholderContext struct {
	actor       *eventbus.Actor
	server      bridge.ServerInfo
	integration bridge.Integration
	now         time.Time
}

// resolve maps one placeholder key to its replacement. Unknown keys return
// false so the raw token survives in the rendered text. needsEscaping is the
// rendered field's flag: only the display name can inject markdown.
func (pc *placeholderContext) resolve(key string, needsEscaping bool) (string, bool) {
	switch key {
	case "tps":
		if pc.server == nil {
			return "", false
		}
		return fmt.Sprintf("%.2f", pc.server.TPS()), true
	case "time":
		return pc.now.Format("15:04:05"), true
	case "date":
		return pc.now.Format("2006-01-02"), true
	case "ping":
		if pc.actor == nil {
			return "-1", true
		}
		return fmt.Sprintf("%d", pc.actor.Ping), true
	case "name", "username":
		if pc.actor == nil {
			return "", false
		}
		return bridge.StripFormatting(pc.actor.Name), true
	case "displayname":
		if pc.actor == nil {
			return "", false
		}
		display := pc.actor.DisplayName
		if display == "" {
			display = pc.actor.Name
		}
		if needsEscaping {
			display = bridge.EscapeMarkdown(display)
		}
		return bridge.StripFormatting(display), true
	case "world":
		if pc.actor == nil {
			return "", false
		}
		return pc.actor.World, true
	case "embedavatarurl":
		if pc.actor != nil && pc.actor.AvatarURL != "" {
			return pc.actor.AvatarURL, true
		}
		if pc.integration != nil && pc.actor != nil {
			if url := pc.integration.AvatarURL(pc.actor.Name); url != "" {
				return url, true
			}
		}
		return pc.botAvatarURL(), true
	case "botavatarurl":
		return pc.botAvatarURL(), true
	case "botname":
		if pc.integration != nil {
			if name := pc.integration.BotName(); name != "" {
				return name, true
			}
		}
		return defaultBotName, true
	}
	return "", false
}

// contextValue falls back to the per-dispatch variable bag for placeholder
// keys outside the built-in table, so "{allArgs}" and friends render without
// an expression fragment. Only scalar values substitute; anything else
// leaves the raw token in place.
func contextValue(vars map[string]any, key string) (string, bool) {
	value, ok := vars[key]
	if !ok {
		return "", false
	}
	switch v := value.(type) {
	case string:
		return v, true
	case bool:
		return strconv.FormatBool(v), true
	case int:
		return strconv.Itoa(v), true
	case int64:
		return strconv.FormatInt(v, 10), true
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64), true
	}
	return "", false
}

func (pc *placeholderContext) botAvatarURL() string {
	if pc.integration != nil {
		if url := pc.integration.BotAvatarURL(); url != "" {
			return url
		}
	}
	return defaultBotAvatarURL
}
