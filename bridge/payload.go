package bridge

import (
	"time"

	"github.com/c360/alertstream/message"
)

// wirePayload is the JSON body sent to the chat platform for both webhook
// posts and gateway sends.
type wirePayload struct {
	Content   string      `json:"content,omitempty"`
	Username  string      `json:"username,omitempty"`
	AvatarURL string      `json:"avatar_url,omitempty"`
	Embeds    []wireEmbed `json:"embeds,omitempty"`
}

type wireEmbed struct {
	Title       string      `json:"title,omitempty"`
	URL         string      `json:"url,omitempty"`
	Description string      `json:"description,omitempty"`
	Color       int         `json:"color,omitempty"`
	Timestamp   string      `json:"timestamp,omitempty"`
	Author      *wireAuthor `json:"author,omitempty"`
	Footer      *wireFooter `json:"footer,omitempty"`
	Thumbnail   *wireMedia  `json:"thumbnail,omitempty"`
	Image       *wireMedia  `json:"image,omitempty"`
	Fields      []wireField `json:"fields,omitempty"`
}

type wireAuthor struct {
	Name    string `json:"name,omitempty"`
	URL     string `json:"url,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type wireFooter struct {
	Text    string `json:"text,omitempty"`
	IconURL string `json:"icon_url,omitempty"`
}

type wireMedia struct {
	URL string `json:"url,omitempty"`
}

type wireField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// buildPayload flattens a rendered template into the wire shape. A zero
// embed timestamp means "now".
func buildPayload(msg *message.Template, webhook bool) wirePayload {
	payload := wirePayload{Content: msg.Content}
	if webhook {
		payload.Username = msg.Webhook.Name
		payload.AvatarURL = msg.Webhook.AvatarURL
	}
	if msg.Embed == nil {
		return payload
	}

	e := msg.Embed
	embed := wireEmbed{
		Title:       e.Title,
		URL:         e.TitleURL,
		Description: e.Description,
	}
	if e.Color != nil {
		embed.Color = *e.Color
	}
	if e.Timestamp != nil {
		ts := *e.Timestamp
		if ts.IsZero() {
			ts = time.Now().UTC()
		}
		embed.Timestamp = ts.Format(time.RFC3339)
	}
	if e.AuthorName != "" || e.AuthorURL != "" || e.AuthorIconURL != "" {
		embed.Author = &wireAuthor{Name: e.AuthorName, URL: e.AuthorURL, IconURL: e.AuthorIconURL}
	}
	if e.FooterText != "" || e.FooterIconURL != "" {
		embed.Footer = &wireFooter{Text: e.FooterText, IconURL: e.FooterIconURL}
	}
	if e.ThumbnailURL != "" {
		embed.Thumbnail = &wireMedia{URL: e.ThumbnailURL}
	}
	if e.ImageURL != "" {
		embed.Image = &wireMedia{URL: e.ImageURL}
	}
	for _, f := range e.Fields {
		embed.Fields = append(embed.Fields, wireField{Name: f.Title, Value: f.Value, Inline: f.Inline})
	}
	payload.Embeds = append(payload.Embeds, embed)
	return payload
}
