package bridge

import (
	"regexp"
	"strings"
)

var markdownEscaper = strings.NewReplacer(
	"_", "\\_",
	"*", "\\*",
	"~", "\\~",
	"|", "\\|",
	">", "\\>",
	"`", "\\`",
)

// EscapeMarkdown backslash-escapes the characters the chat platform treats as
// formatting, so player-controlled text cannot inject markdown.
func EscapeMarkdown(text string) string {
	return markdownEscaper.Replace(text)
}

// Legacy color and formatting codes: a section sign followed by one code
// character, including the extended hex form "§x§R§R§G§G§B§B".
var colorCodePattern = regexp.MustCompile(`§[0-9A-FK-ORXa-fk-orx]`)

// StripFormatting removes in-game color and style codes from text before it
// crosses the bridge.
func StripFormatting(text string) string {
	return colorCodePattern.ReplaceAllString(text, "")
}
