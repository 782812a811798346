// Package model defines the domain types exchanged between the source
// adapters, the analysis pipeline, and downstream consumers.
package model

import (
	"regexp"
	"strings"
	"time"
)

var linkRE = regexp.MustCompile(`https?://\S+`)

// Forward carries the provenance of a reposted message: the origin channel
// and, when known, the origin message id.
type Forward struct {
	Channel   string `json:"channel,omitempty"`
	ChannelID int64  `json:"channel_id,omitempty"`
	MessageID int64  `json:"message_id,omitempty"`
}

// Message is a single post retrieved from a feed channel. It is immutable
// once produced by a source adapter; the pipeline only reads it.
type Message struct {
	ID        int64     `json:"message_id"`
	Channel   string    `json:"channel"`
	ChannelID int64     `json:"channel_id"`
	Text      string    `json:"text"`
	URL       string    `json:"url"`
	Date      time.Time `json:"date"`
	Views     int64     `json:"views,omitempty"`
	Forwards  int64     `json:"forwards,omitempty"`
	ReplyToID int64     `json:"reply_to_msg_id,omitempty"`
	Forward   *Forward  `json:"forward,omitempty"`
	MediaURLs []string  `json:"media_urls,omitempty"`
	Entities  []string  `json:"entities,omitempty"`
}

// IsForward reports whether the message carries forward provenance.
func (m *Message) IsForward() bool {
	return m.Forward != nil
}

// ExternalLinks returns the http(s) links attached to the message: media
// URLs that are proper links plus any links found in the text, with
// trailing punctuation stripped.
func (m *Message) ExternalLinks() []string {
	var links []string
	for _, u := range m.MediaURLs {
		if strings.HasPrefix(u, "http") {
			links = append(links, u)
		}
	}
	for _, u := range linkRE.FindAllString(m.Text, -1) {
		links = append(links, strings.TrimRight(u, ".,!"))
	}
	return links
}
