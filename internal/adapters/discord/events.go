package discord

import (
	"fmt"
	"path"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/okian/xpboard/internal/domain/model"
)

var imageExtensions = map[string]bool{".png": true, ".jpeg": true, ".jpg": true, ".gif": true, ".webp": true}

// messageEvent converts a gateway message into a core event.
func messageEvent(m *discordgo.Message) model.GatewayEvent {
	ev := &model.MessageEvent{
		GuildID:   m.GuildID,
		ChannelID: m.ChannelID,
		MessageID: m.ID,
		Content:   m.Content,
	}
	if m.Author != nil {
		ev.AuthorID = m.Author.ID
		ev.AuthorName = m.Author.DisplayName()
		ev.IsBot = m.Author.Bot
	}
	return model.GatewayEvent{
		ID:      "message:" + m.ID,
		Kind:    model.KindMessage,
		Message: ev,
		TS:      m.Timestamp,
	}
}

// reactionEvent converts a reaction-add together with the reacted message.
// emoji is the configured starboard emoji; the event carries it verbatim when
// the reaction matches so the core can compare strings.
func reactionEvent(r *discordgo.MessageReaction, msg *discordgo.Message, reactorIsBot bool, emoji string) model.GatewayEvent {
	reacted := r.Emoji.MessageFormat()
	if emojiMatches(emoji, &r.Emoji) {
		reacted = emoji
	}
	authorIsBot := msg.Author != nil && msg.Author.Bot
	count := reactionCount(msg, emoji)
	// The count is part of the id so that removing and re-adding a reaction
	// is not mistaken for a redelivery once the count has moved.
	return model.GatewayEvent{
		ID:   fmt.Sprintf("reaction:%s:%s:%s:%d", r.MessageID, r.UserID, r.Emoji.APIName(), count),
		Kind: model.KindReaction,
		Reaction: &model.ReactionEvent{
			GuildID:      r.GuildID,
			ChannelID:    r.ChannelID,
			MessageID:    r.MessageID,
			UserID:       r.UserID,
			Emoji:        reacted,
			StarCount:    count,
			ReactorIsBot: reactorIsBot,
			AuthorIsBot:  authorIsBot,
			Post:         postContent(r.GuildID, msg),
		},
	}
}

// emojiMatches compares a configured emoji ("⭐" or "<:name:id>") with a
// reaction emoji. The animated marker is ignored because reaction payloads
// do not always carry it.
func emojiMatches(configured string, e *discordgo.Emoji) bool {
	if configured == "" || e == nil {
		return false
	}
	return normalizeEmoji(configured) == normalizeEmoji(e.MessageFormat())
}

func normalizeEmoji(s string) string {
	s = strings.TrimSpace(s)
	return strings.Replace(s, "<a:", "<:", 1)
}

// reactionCount returns how many reactions with emoji msg carries.
func reactionCount(msg *discordgo.Message, emoji string) int {
	for _, r := range msg.Reactions {
		if r != nil && emojiMatches(emoji, r.Emoji) {
			return r.Count
		}
	}
	return 0
}

func postContent(guildID string, msg *discordgo.Message) model.PostContent {
	post := model.PostContent{
		Content:    msg.Content,
		SourceLink: jumpLink(guildID, msg.ChannelID, msg.ID),
		ImageURL:   firstImage(msg.Attachments),
		CreatedAt:  msg.Timestamp,
	}
	if msg.Author != nil {
		post.AuthorID = msg.Author.ID
		post.AuthorLabel = msg.Author.DisplayName()
		post.AvatarURL = msg.Author.AvatarURL("")
	}
	if msg.Member != nil && msg.Member.Nick != "" {
		post.AuthorLabel = msg.Member.Nick
	}
	return post
}

func jumpLink(guildID, channelID, messageID string) string {
	return fmt.Sprintf("https://discord.com/channels/%s/%s/%s", guildID, channelID, messageID)
}

// firstImage returns the URL of the first attachment when it is an image.
func firstImage(attachments []*discordgo.MessageAttachment) string {
	if len(attachments) == 0 || attachments[0] == nil {
		return ""
	}
	a := attachments[0]
	if strings.HasPrefix(a.ContentType, "image/") {
		return a.URL
	}
	u := strings.ToLower(a.URL)
	if i := strings.IndexByte(u, '?'); i >= 0 {
		u = u[:i]
	}
	if imageExtensions[path.Ext(u)] {
		return a.URL
	}
	return ""
}
