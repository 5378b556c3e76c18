package whatsapp

import (
	"strings"
)

// EventMessagesUpsert is the only webhook event that carries user messages.
const EventMessagesUpsert = "messages.upsert"

const jidSuffix = "@s.whatsapp.net"

// WebhookPayload is the body Evolution posts to the webhook.
type WebhookPayload struct {
	Event    string       `json:"event"`
	Instance string       `json:"instance"`
	Data     *MessageData `json:"data"`
}

// MessageData is the data section of a messages.upsert event.
type MessageData struct {
	Key              MessageKey     `json:"key"`
	Message          MessageContent `json:"message"`
	MessageTimestamp int64          `json:"messageTimestamp"`
	PushName         string         `json:"pushName"`
}

// MessageKey identifies a message and its chat.
type MessageKey struct {
	RemoteJID string `json:"remoteJid"`
	FromMe    bool   `json:"fromMe"`
	ID        string `json:"id"`
}

// MessageContent holds the supported message variants.
type MessageContent struct {
	Conversation        string               `json:"conversation,omitempty"`
	ExtendedTextMessage *ExtendedTextMessage `json:"extendedTextMessage,omitempty"`
	ImageMessage        *ImageMessage        `json:"imageMessage,omitempty"`
}

// ExtendedTextMessage is a text message with a quote or link preview.
type ExtendedTextMessage struct {
	Text string `json:"text"`
}

// ImageMessage is an image, optionally captioned.
type ImageMessage struct {
	URL     string `json:"url"`
	Caption string `json:"caption,omitempty"`
}

// Inbound is a user message ready for the chat pipeline.
type Inbound struct {
	Phone     string
	Text      string
	MessageID string
	PushName  string
	MediaURL  string // image URL when the text is a caption
}

// NormalizeEvent lowercases an event name and maps the first '_' to '.',
// so MESSAGES_UPSERT and messages.upsert compare equal.
func NormalizeEvent(event string) string {
	return strings.Replace(strings.ToLower(strings.TrimSpace(event)), "_", ".", 1)
}

// IsMessageEvent reports whether p carries user messages.
func (p *WebhookPayload) IsMessageEvent() bool {
	return NormalizeEvent(p.Event) == EventMessagesUpsert
}

// ParseInbound extracts the sender and text from a message event. ok is
// false for messages sent by the instance itself and for messages without
// text (conversation, extended text or image caption, in that order).
func ParseInbound(p *WebhookPayload) (in Inbound, ok bool) {
	if p == nil || p.Data == nil || p.Data.Key.FromMe {
		return Inbound{}, false
	}
	d := p.Data
	text, media := d.Message.Conversation, ""
	if text == "" && d.Message.ExtendedTextMessage != nil {
		text = d.Message.ExtendedTextMessage.Text
	}
	if text == "" && d.Message.ImageMessage != nil {
		text, media = d.Message.ImageMessage.Caption, d.Message.ImageMessage.URL
	}
	text = strings.TrimSpace(text)
	phone := strings.TrimSuffix(d.Key.RemoteJID, jidSuffix)
	if text == "" || phone == "" {
		return Inbound{}, false
	}
	return Inbound{Phone: phone, Text: text, MessageID: d.Key.ID, PushName: d.PushName, MediaURL: media}, true
}
