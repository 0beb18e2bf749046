package model

import "time"

// EventKind distinguishes inbound gateway events.
type EventKind string

const (
	KindMessage  EventKind = "message"
	KindReaction EventKind = "reaction"
)

// MessageEvent is a message-creation event delivered by the chat gateway.
type MessageEvent struct {
	GuildID    string `json:"guild_id"`
	ChannelID  string `json:"channel_id"`
	MessageID  string `json:"message_id"`
	AuthorID   string `json:"author_id"`
	AuthorName string `json:"author_name"`
	Content    string `json:"content"`
	IsBot      bool   `json:"is_bot"`
}

// ReactionEvent is a raw reaction-add event delivered by the chat gateway.
// StarCount is the number of reactions with Emoji at delivery time and
// Post carries what a promoted post needs to render the source message.
type ReactionEvent struct {
	GuildID      string      `json:"guild_id"`
	ChannelID    string      `json:"channel_id"`
	MessageID    string      `json:"message_id"`
	UserID       string      `json:"user_id"`
	Emoji        string      `json:"emoji"`
	StarCount    int         `json:"star_count"`
	ReactorIsBot bool        `json:"reactor_is_bot"`
	AuthorIsBot  bool        `json:"author_is_bot"`
	Post         PostContent `json:"post"`
}

// PostContent is the render input for a promoted post.
type PostContent struct {
	AuthorID    string `json:"author_id"`
	AuthorLabel string `json:"author_label"`
	AvatarURL   string `json:"avatar_url"`
	Content     string `json:"content"`
	SourceLink  string `json:"source_link"`
	ImageURL    string `json:"image_url"`
	// CreatedAt is when the source message was sent.
	CreatedAt time.Time `json:"created_at"`
}

// GatewayEvent wraps one inbound event together with its dispatch metadata.
type GatewayEvent struct {
	ID            string         `json:"id"`                 // gateway-provided id used for redelivery dedupe
	CorrelationID string         `json:"correlation_id"`     // stamped on submit
	Kind          EventKind      `json:"kind"`
	Message       *MessageEvent  `json:"message,omitempty"`
	Reaction      *ReactionEvent `json:"reaction,omitempty"`
	TS            time.Time      `json:"ts"`
}

// Key is the serialization key of the event: the user for messages and
// the source message for reactions.
func (e GatewayEvent) Key() string {
	switch e.Kind {
	case KindMessage:
		if e.Message != nil {
			return "user:" + e.Message.AuthorID
		}
	case KindReaction:
		if e.Reaction != nil {
			return "message:" + e.Reaction.MessageID
		}
	}
	return ""
}
