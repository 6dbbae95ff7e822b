package bridge

import (
	"context"

	"github.com/c360/alertstream/message"
)

// Deliverer sends a rendered message to a resolved channel. DeliverWebhook is
// used when the template carries an enabled webhook envelope, DeliverDirect
// otherwise.
type Deliverer interface {
	DeliverDirect(ctx context.Context, channel *Channel, msg *message.Template) error
	DeliverWebhook(ctx context.Context, channel *Channel, msg *message.Template) error
}

// Integration exposes optional bridge-side identity used by placeholders.
// All methods may return "" when the bridge has no such notion; the caller
// substitutes documented defaults.
type Integration interface {
	BotName() string
	BotAvatarURL() string
	// AvatarURL returns the chat-platform avatar for a named player.
	AvatarURL(playerName string) string
	// TranslateEmotes rewrites emote shorthand (":smile:") into the wire
	// form the destination channel's guild understands. Implementations
	// with no emote notion return text unchanged.
	TranslateEmotes(text string, channel *Channel) string
}

// WebhookAddresser is implemented by deliverers whose webhook sends need a
// preconfigured URL. The dispatch pipeline skips webhook delivery when no
// URL resolves instead of attempting a doomed send.
type WebhookAddresser interface {
	WebhookURL(msg *message.Template) string
}

// ServerInfo exposes live server statistics used by placeholders.
type ServerInfo interface {
	TPS() float64
}
