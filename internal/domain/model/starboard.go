package model

// DefaultStarEmoji is used when no starboard emoji has been configured.
const DefaultStarEmoji = "⭐"

// StarboardConfig is the singleton starboard setting.
type StarboardConfig struct {
	Enabled   bool   `json:"enabled"`
	ChannelID string `json:"channel_id"`
	Emoji     string `json:"emoji"`
	Threshold int    `json:"threshold"`
}

// DefaultStarboardConfig returns a disabled starboard with a threshold of 3.
func DefaultStarboardConfig() StarboardConfig {
	return StarboardConfig{Emoji: DefaultStarEmoji, Threshold: 3}
}

// StarboardEntry links a source message to its single promoted post.
type StarboardEntry struct {
	SourceMessageID   string `json:"-"`
	PromotedMessageID string `json:"starboard_msg_id"`
	StarCount         int    `json:"stars"`
	AuthorID          string `json:"author"`
	SourceChannelID   string `json:"channel"`
}
