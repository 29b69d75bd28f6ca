package model

import (
	"strconv"
	"time"
)

type Sender string

const (
	SenderUser Sender = "user"
	SenderBot  Sender = "bot"
)

const (
	// VoicePlaceholder labels a voice turn whose transcript is only known
	// to the backend.
	VoicePlaceholder = "🎤 Voice Message"

	// ApologyText is the bot message appended when a turn fails.
	ApologyText = "⚠️ Sorry, I'm having trouble connecting to the server."
)

type MessageID string

// Suffixes keep a reply id distinct from the user turn that triggered it.
const (
	botIDSuffix   = "_bot"
	errorIDSuffix = "_error"
)

// NewMessageID derives a message id from a creation stamp in milliseconds.
func NewMessageID(stamp int64, sender Sender, failed bool) MessageID {
	id := strconv.FormatInt(stamp, 10)
	switch {
	case sender == SenderBot && failed:
		id += errorIDSuffix
	case sender == SenderBot:
		id += botIDSuffix
	}
	return MessageID(id)
}

// Message is one turn of a conversation. A Message is a value and is never
// modified after it has been appended to a conversation log.
type Message struct {
	ID        MessageID `json:"id"`
	Sender    Sender    `json:"sender"`
	Text      string    `json:"text"`
	AudioURL  string    `json:"audio_url,omitempty"`
	MediaURL  string    `json:"media_url,omitempty"`
	MediaType string    `json:"media_type,omitempty"`
	Sources   []string  `json:"sources,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TimestampString returns the creation time as ISO-8601.
func (m Message) TimestampString() string {
	return m.Timestamp.UTC().Format(time.RFC3339Nano)
}

// IsBot reports whether the message was authored by the assistant.
func (m Message) IsBot() bool { return m.Sender == SenderBot }

// BotReply is the canonical shape of an assistant reply, independent of the
// field names the backend happened to use.
type BotReply struct {
	Text      string
	AudioURL  string
	MediaURL  string
	MediaType string
	Sources   []string
	Language  string
}
