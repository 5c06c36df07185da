package models

import "strings"

// ContentKind tags the payload carried by a Message.
type ContentKind string

const (
	KindText      ContentKind = "text"
	KindPhoto     ContentKind = "photo"
	KindVideo     ContentKind = "video"
	KindDocument  ContentKind = "document"
	KindAudio     ContentKind = "audio"
	KindVoice     ContentKind = "voice"
	KindSticker   ContentKind = "sticker"
	KindAnimation ContentKind = "animation"
	KindVideoNote ContentKind = "video_note"
	KindOther     ContentKind = "other"
)

// Transport names the gateway a message originated from.
type Transport string

const (
	TransportTelegram  Transport = "telegram"
	TransportWebSocket Transport = "websocket"
)

// MessageRef points at the original message inside its transport. Gateways use it
// to copy content without decoding it.
type MessageRef struct {
	Transport Transport `json:"transport"`
	ChatID    int64     `json:"chat_id,omitempty"`
	MessageID int       `json:"message_id,omitempty"`
}

// Message is the content a user sent, forwarded to the partner as-is.
type Message struct {
	Kind    ContentKind `json:"kind"`
	Text    string      `json:"text,omitempty"`
	Caption string      `json:"caption,omitempty"`
	FileID  string      `json:"file_id,omitempty"`
	Ref     MessageRef  `json:"ref"`
}

// Body returns the human readable part of the message: the text or the caption.
func (m Message) Body() string {
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

// IsBlankText reports a text message with nothing but whitespace in it.
func (m Message) IsBlankText() bool {
	return m.Kind == KindText && strings.TrimSpace(m.Text) == ""
}

// EventKind classifies an inbound event.
type EventKind string

const (
	EventCommand EventKind = "command"
	EventText    EventKind = "text"
	EventMedia   EventKind = "media"
)

// Event is one inbound update from a gateway.
type Event struct {
	UserID   UserID
	Kind     EventKind
	Command  string // without the leading slash, e.g. "search"
	Args     string
	Message  Message
	Language string
}

// IsCommand reports whether the event is the given command.
func (e Event) IsCommand(name string) bool {
	return e.Kind == EventCommand && e.Command == name
}
