package message

import "time"

// Template is the in-memory representation of a renderable alert message.
type Template struct {
	Content string
	Embed   *Embed
	Webhook Webhook
}

// Embed holds the rich-embed portion of a template. A nil color or timestamp
// means the field is unset.
type Embed struct {
	Title         string
	TitleURL      string
	Description   string
	Color         *int
	AuthorName    string
	AuthorURL     string
	AuthorIconURL string
	FooterText    string
	FooterIconURL string
	ThumbnailURL  string
	ImageURL      string
	Timestamp     *time.Time
	Fields        []Field
}

// Field is one embed field.
type Field struct {
	Title  string
	Value  string
	Inline bool
}

// Webhook is the envelope for webhook delivery. URL is only used when no
// bridge integration is active; it always comes from configuration.
type Webhook struct {
	Enabled   bool
	Name      string
	AvatarURL string
	URL       string
}

// IsEmpty reports whether the template would produce no message at all: no
// content, no embed, webhook disabled. Empty templates are never dispatched.
func (t *Template) IsEmpty() bool {
	return t.Content == "" && t.Embed == nil && !t.Webhook.Enabled
}

// Translator rewrites one textual field of a template. needsEscaping is true
// only for fields that must not allow markdown injection.
type Translator func(text string, needsEscaping bool) string

// Translate returns a copy of the template with the translator applied to
// every textual field independently. The receiver is not modified; templates
// stay immutable between reloads.
func (t *Template) Translate(fn Translator) *Template {
	out := &Template{
		Content: fn(t.Content, false),
		Webhook: Webhook{
			Enabled:   t.Webhook.Enabled,
			Name:      fn(t.Webhook.Name, false),
			AvatarURL: fn(t.Webhook.AvatarURL, false),
			URL:       t.Webhook.URL,
		},
	}
	if t.Embed == nil {
		return out
	}

	embed := &Embed{
		Title:         fn(t.Embed.Title, false),
		TitleURL:      t.Embed.TitleURL,
		Description:   fn(t.Embed.Description, false),
		AuthorName:    fn(t.Embed.AuthorName, true),
		AuthorURL:     t.Embed.AuthorURL,
		AuthorIconURL: fn(t.Embed.AuthorIconURL, false),
		FooterText:    fn(t.Embed.FooterText, false),
		FooterIconURL: t.Embed.FooterIconURL,
		ThumbnailURL:  t.Embed.ThumbnailURL,
		ImageURL:      t.Embed.ImageURL,
	}
	if t.Embed.Color != nil {
		color := *t.Embed.Color
		embed.Color = &color
	}
	if t.Embed.Timestamp != nil {
		ts := *t.Embed.Timestamp
		embed.Timestamp = &ts
	}
	for _, field := range t.Embed.Fields {
		embed.Fields = append(embed.Fields, Field{
			Title:  fn(field.Title, false),
			Value:  fn(field.Value, false),
			Inline: field.Inline,
		})
	}
	out.Embed = embed
	return out
}
