package discord

import "errors"

var (
	// ErrNoToken is returned when a session is requested without a bot token.
	ErrNoToken = errors.New("discord: missing bot token")
	// ErrNoChannel is returned when a post targets an empty channel id.
	ErrNoChannel = errors.New("discord: missing channel id")
	// ErrNoEmbed is returned when a starboard post has no embed to update.
	ErrNoEmbed = errors.New("discord: post has no embed")
)
