package discord

import (
	"context"
	"fmt"
	"time"

	"github.com/bwmarrin/discordgo"

	"github.com/okian/xpboard/internal/domain/model"
)

// EmbedColor is the accent colour of every embed the bot sends.
const EmbedColor = 0xfb02bd

// channelAPI is the subset of *discordgo.Session the publisher needs.
type channelAPI interface {
	ChannelMessageSendEmbed(channelID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageEditEmbed(channelID, messageID string, embed *discordgo.MessageEmbed, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// Publisher renders starboard posts and level-up announcements.
type Publisher struct {
	api channelAPI
}

// NewPublisher creates a Publisher over api, usually a *discordgo.Session.
func NewPublisher(api channelAPI) *Publisher {
	return &Publisher{api: api}
}

// CreatePost sends the promoted post and returns its message id.
func (p *Publisher) CreatePost(ctx context.Context, channelID string, post model.PostContent, starCount int, emoji string) (string, error) {
	if channelID == "" {
		return "", ErrNoChannel
	}
	msg, err := p.api.ChannelMessageSendEmbed(channelID, postEmbed(post, starCount, emoji), discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return msg.ID, nil
}

// UpdatePostStarCount rewrites the footer of an existing post.
func (p *Publisher) UpdatePostStarCount(ctx context.Context, channelID, postID string, starCount int, emoji string) error {
	msg, err := p.api.ChannelMessage(channelID, postID, discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	if len(msg.Embeds) == 0 || msg.Embeds[0] == nil {
		return ErrNoEmbed
	}
	embed := msg.Embeds[0]
	embed.Footer = starFooter(starCount, emoji)
	_, err = p.api.ChannelMessageEditEmbed(channelID, postID, embed, discordgo.WithContext(ctx))
	return err
}

// AnnounceLevelUp posts a level-up embed in channelID.
func (p *Publisher) AnnounceLevelUp(ctx context.Context, channelID string, change model.LevelChange) error {
	if channelID == "" {
		return ErrNoChannel
	}
	_, err := p.api.ChannelMessageSendEmbed(channelID, levelUpEmbed(change), discordgo.WithContext(ctx))
	return err
}

func postEmbed(post model.PostContent, starCount int, emoji string) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Description: post.Content,
		Color:       EmbedColor,
		Author: &discordgo.MessageEmbedAuthor{
			Name:    post.AuthorLabel,
			IconURL: post.AvatarURL,
		},
		Footer: starFooter(starCount, emoji),
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Source", Value: fmt.Sprintf("[Jump to message](%s)", post.SourceLink)},
		},
	}
	if !post.CreatedAt.IsZero() {
		embed.Timestamp = post.CreatedAt.UTC().Format(time.RFC3339)
	}
	if post.ImageURL != "" {
		embed.Image = &discordgo.MessageEmbedImage{URL: post.ImageURL}
	}
	return embed
}

func starFooter(count int, emoji string) *discordgo.MessageEmbedFooter {
	return &discordgo.MessageEmbedFooter{Text: fmt.Sprintf("%s %d", emoji, count)}
}

func levelUpEmbed(change model.LevelChange) *discordgo.MessageEmbed {
	return &discordgo.MessageEmbed{
		Title:       "Level Up!",
		Description: fmt.Sprintf("<@%s> has reached level %d!", change.UserID, change.NewLevel),
		Color:       EmbedColor,
	}
}
