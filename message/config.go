package message

import (
	"strconv"
	"strings"
	"time"

	"github.com/c360/alertstream/config"
)

// FromConfig materializes a message template from the configuration subtree
// rooted at key. It returns nil when the subtree is missing, explicitly
// disabled, or produces no content at all; a nil template means the alert is
// skipped without error.
func FromConfig(reader config.Reader, key string) *Template {
	if _, ok := reader.GetOptional(key); !ok {
		return nil
	}
	if enabled, ok := reader.GetOptionalBool(key + ".Enabled"); ok && !enabled {
		return nil
	}

	t := &Template{}
	t.Content, _ = reader.GetOptionalString(key + ".Content")
	t.Embed = embedFromConfig(reader, key+".Embed")
	t.Webhook = webhookFromConfig(reader, key+".Webhook")

	if t.IsEmpty() {
		return nil
	}
	return t
}

func embedFromConfig(reader config.Reader, key string) *Embed {
	if _, ok := reader.GetOptional(key); !ok {
		return nil
	}
	if enabled, ok := reader.GetOptionalBool(key + ".Enabled"); ok && !enabled {
		return nil
	}

	e := &Embed{}
	e.Color = parseColor(reader, key+".Color")
	e.AuthorName, _ = reader.GetOptionalString(key + ".Author.Name")
	e.AuthorURL, _ = reader.GetOptionalString(key + ".Author.Url")
	e.AuthorIconURL, _ = reader.GetOptionalString(key + ".Author.ImageUrl")
	e.ThumbnailURL, _ = reader.GetOptionalString(key + ".ThumbnailUrl")
	e.Title, _ = reader.GetOptionalString(key + ".Title.Text")
	e.TitleURL, _ = reader.GetOptionalString(key + ".Title.Url")
	e.Description, _ = reader.GetOptionalString(key + ".Description")
	e.ImageURL, _ = reader.GetOptionalString(key + ".ImageUrl")
	e.FooterText, _ = reader.GetOptionalString(key + ".Footer.Text")
	e.FooterIconURL, _ = reader.GetOptionalString(key + ".Footer.IconUrl")
	e.Fields = parseFields(reader, key+".Fields")
	e.Timestamp = parseTimestamp(reader, key+".Timestamp")
	return e
}

// parseColor accepts a "#RRGGBB" hex string or a raw integer. Unparseable
// values leave the color unset rather than failing the whole template.
func parseColor(reader config.Reader, key string) *int {
	if raw, ok := reader.GetOptionalString(key); ok {
		hex := strings.TrimPrefix(strings.TrimSpace(raw), "#")
		if value, err := strconv.ParseInt(hex, 16, 32); err == nil {
			rgb := int(value)
			return &rgb
		}
		return nil
	}
	if value, ok := reader.GetOptionalInt(key); ok {
		rgb := value
		return &rgb
	}
	return nil
}

// parseFields decodes "Title;Value" and "Title;Value;inline" entries. An
// entry without a separator becomes a blank spacer field whose inline flag is
// the entry itself parsed as a boolean.
func parseFields(reader config.Reader, key string) []Field {
	raw, ok := reader.GetOptionalStringList(key)
	if !ok {
		return nil
	}

	var fields []Field
	for _, entry := range raw {
		if !strings.Contains(entry, ";") {
			inline, _ := strconv.ParseBool(entry)
			fields = append(fields, Field{Title: "‎", Value: "‎", Inline: inline})
			continue
		}
		parts := strings.Split(entry, ";")
		if len(parts) < 2 {
			continue
		}
		inline := true
		if len(parts) >= 3 {
			inline, _ = strconv.ParseBool(parts[2])
		}
		fields = append(fields, Field{Title: parts[0], Value: parts[1], Inline: inline})
	}
	return fields
}

// parseTimestamp accepts true for "now at render time" or an epoch-seconds
// integer for a fixed instant. A zero Timestamp pointer with IsZero true
// signals render-time stamping.
func parseTimestamp(reader config.Reader, key string) *time.Time {
	if enabled, ok := reader.GetOptionalBool(key); ok {
		if !enabled {
			return nil
		}
		var zero time.Time
		return &zero
	}
	if epoch, ok := reader.GetOptionalInt64(key); ok {
		ts := time.Unix(epoch, 0).UTC()
		return &ts
	}
	return nil
}

func webhookFromConfig(reader config.Reader, key string) Webhook {
	var w Webhook
	if _, ok := reader.GetOptional(key); !ok {
		return w
	}
	w.Enabled, _ = reader.GetOptionalBool(key + ".Enable")
	w.Name, _ = reader.GetOptionalString(key + ".Name")
	w.AvatarURL, _ = reader.GetOptionalString(key + ".AvatarUrl")
	w.URL, _ = reader.GetOptionalString(key + ".Url")
	return w
}
