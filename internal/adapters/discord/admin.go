package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	service "github.com/okian/xpboard/internal/app"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/pkg/logger"
)

// Admin slash command names.
const (
	CmdRoleConfig      = "role_config"
	CmdIgnoredChannels = "ignored_channels"
	CmdStarboardConfig = "starboard_config"
	CmdSetupWizard     = "setup_wizard"
)

// Actions accepted by /role_config and /ignored_channels.
const (
	ActionView   = "view"
	ActionAdd    = "add"
	ActionRemove = "remove"
	ActionUpdate = "update"
)

const (
	noPermission = "❌ You don't have permission to use this command!"
	saveFailed   = "❌ Could not save the configuration, try again later."
)

func actionOption(actions ...string) *discordgo.ApplicationCommandOption {
	choices := make([]*discordgo.ApplicationCommandOptionChoice, 0, len(actions))
	for _, a := range actions {
		choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: a, Value: a})
	}
	return &discordgo.ApplicationCommandOption{
		Type:        discordgo.ApplicationCommandOptionString,
		Name:        "action",
		Description: "Action to perform",
		Required:    true,
		Choices:     choices,
	}
}

// adminCommands returns the configuration commands. Discord hides them from
// members without the administrator permission; the handlers check again.
func adminCommands() []*discordgo.ApplicationCommand {
	minOne := 1.0
	return []*discordgo.ApplicationCommand{
		{
			Name:                     CmdRoleConfig,
			Description:              "Configure level roles (Admin only)",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				actionOption(ActionView, ActionAdd, ActionRemove, ActionUpdate),
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "level", Description: "Level required for the role", MinValue: &minOne},
				{Type: discordgo.ApplicationCommandOptionRole, Name: "role", Description: "The role granted at that level"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "role_name", Description: "Display name for the role"},
			},
		},
		{
			Name:                     CmdIgnoredChannels,
			Description:              "View or edit channels ignored for XP (Admin only)",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				actionOption(ActionView, ActionAdd, ActionRemove),
				{Type: discordgo.ApplicationCommandOptionChannel, Name: "channel", Description: "Channel to add or remove"},
			},
		},
		{
			Name:                     CmdStarboardConfig,
			Description:              "Configure the starboard (Admin only)",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionBoolean, Name: "enabled", Description: "Enable or disable the starboard"},
				{Type: discordgo.ApplicationCommandOptionString, Name: "emoji", Description: "The emoji to use for the starboard"},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "threshold", Description: "Number of reactions needed to appear on starboard", MinValue: &minOne},
				{
					Type:         discordgo.ApplicationCommandOptionChannel,
					Name:         "channel",
					Description:  "The starboard channel",
					ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildText},
				},
			},
		},
		{
			Name:                     CmdSetupWizard,
			Description:              "Run setup wizard to configure the bot (Admin only)",
			DefaultMemberPermissions: &adminPermission,
		},
	}
}

func resolveRole(resolved *discordgo.ApplicationCommandInteractionDataResolved, opt *discordgo.ApplicationCommandInteractionDataOption) *discordgo.Role {
	id, _ := opt.Value.(string)
	if resolved != nil {
		if r, ok := resolved.Roles[id]; ok && r != nil {
			return r
		}
	}
	return &discordgo.Role{ID: id}
}

func resolveChannel(resolved *discordgo.ApplicationCommandInteractionDataResolved, opt *discordgo.ApplicationCommandInteractionDataOption) *discordgo.Channel {
	id, _ := opt.Value.(string)
	if resolved != nil {
		if c, ok := resolved.Channels[id]; ok && c != nil {
			return c
		}
	}
	return &discordgo.Channel{ID: id}
}

// configErrors are the replies for the expected failures of one mutation.
type configErrors struct {
	notFound string
	exists   string
	invalid  string
}

// configFailure maps a configuration error to the reply shown to the admin.
func (b *Bot) configFailure(ctx context.Context, op string, err error, msgs configErrors) *discordgo.InteractionResponseData {
	switch {
	case errors.Is(err, model.ErrNotFound) && msgs.notFound != "":
		return errorReply(msgs.notFound)
	case errors.Is(err, model.ErrAlreadyExists) && msgs.exists != "":
		return errorReply(msgs.exists)
	case errors.Is(err, model.ErrInvalidArgument) && msgs.invalid != "":
		return errorReply(msgs.invalid)
	}
	b.log.Error(ctx, "configuration update failed", logger.String("op", op), logger.Error(err))
	return errorReply(saveFailed)
}

func infoReply(text string) *discordgo.InteractionResponseData {
	return embedReply(&discordgo.MessageEmbed{Description: text, Color: EmbedColor})
}

func roleMention(id string) string    { return "<@&" + id + ">" }
func channelMention(id string) string { return "<#" + id + ">" }

func (b *Bot) roleConfigCommand(ctx context.Context, in commandInput) *discordgo.InteractionResponseData {
	if !in.IsAdmin {
		return errorReply(noPermission)
	}
	level := int(in.Level)
	switch in.Action {
	case ActionView:
		return embedReply(levelRolesEmbed(b.core.Settings()))

	case ActionAdd:
		if level < 1 || in.Role == nil || in.Role.ID == "" {
			return errorReply("❌ Please provide both level and role.")
		}
		name := in.RoleName
		if name == "" {
			name = in.Role.Name
		}
		if err := b.core.AddLevelRole(ctx, level, in.Role.ID, name); err != nil {
			return b.configFailure(ctx, "add_level_role", err, configErrors{
				exists:  fmt.Sprintf("❌ Level %d already has a role assigned. Use 'update' to change it.", level),
				invalid: "❌ Invalid level or role!",
			})
		}
		return infoReply(fmt.Sprintf("✅ Added role %s for level %d.", roleMention(in.Role.ID), level))

	case ActionRemove:
		if level < 1 {
			return errorReply("❌ Please provide the level to remove.")
		}
		roleID, err := b.core.RemoveLevelRole(ctx, level)
		if err != nil {
			return b.configFailure(ctx, "remove_level_role", err, configErrors{
				notFound: fmt.Sprintf("❌ No role found for level %d.", level),
			})
		}
		return infoReply(fmt.Sprintf("✅ Removed role %s from level %d.", roleMention(roleID), level))

	case ActionUpdate:
		if level < 1 {
			return errorReply("❌ Please provide the level to update.")
		}
		roleID, name := "", in.RoleName
		if in.Role != nil {
			roleID = in.Role.ID
			if name == "" {
				name = in.Role.Name
			}
		}
		if err := b.core.UpdateLevelRole(ctx, level, roleID, name); err != nil {
			return b.configFailure(ctx, "update_level_role", err, configErrors{
				notFound: fmt.Sprintf("❌ No role found for level %d. Use 'add' to create it.", level),
				invalid:  "❌ Invalid level or role!",
			})
		}
		return infoReply(fmt.Sprintf("✅ Updated role configuration for level %d.", level))
	}
	return errorReply("❌ Invalid action! Use 'view', 'add', 'remove', or 'update'.")
}

func levelRolesEmbed(st model.Settings) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: "Level Roles Configuration", Color: EmbedColor}
	levels := st.SortedLevels()
	if len(levels) == 0 {
		embed.Description = "No level roles configured."
		return embed
	}
	var sb strings.Builder
	for _, level := range levels {
		roleID := st.LevelRoles[level]
		fmt.Fprintf(&sb, "Level %d: %s (ID: %s, Name: %s)\n", level, roleMention(roleID), roleID, st.RoleName(roleID))
	}
	embed.Description = sb.String()
	return embed
}

func (b *Bot) ignoredChannelsCommand(ctx context.Context, in commandInput) *discordgo.InteractionResponseData {
	if !in.IsAdmin {
		return errorReply(noPermission)
	}
	switch in.Action {
	case ActionView:
		return embedReply(ignoredChannelsEmbed(b.core.Settings()))

	case ActionAdd:
		if in.Channel == nil || in.Channel.ID == "" {
			return errorReply("❌ Please provide a channel to add.")
		}
		id := in.Channel.ID
		if err := b.core.AddIgnoredChannel(ctx, id); err != nil {
			return b.configFailure(ctx, "add_ignored_channel", err, configErrors{
				exists: fmt.Sprintf("❌ Channel %s is already in the ignored list.", channelMention(id)),
			})
		}
		return infoReply(fmt.Sprintf("✅ Added %s to ignored channels list.", channelMention(id)))

	case ActionRemove:
		if in.Channel == nil || in.Channel.ID == "" {
			return errorReply("❌ Please provide a channel to remove.")
		}
		id := in.Channel.ID
		if err := b.core.RemoveIgnoredChannel(ctx, id); err != nil {
			return b.configFailure(ctx, "remove_ignored_channel", err, configErrors{
				notFound: fmt.Sprintf("❌ Channel %s is not in the ignored list.", channelMention(id)),
			})
		}
		return infoReply(fmt.Sprintf("✅ Removed %s from ignored channels list.", channelMention(id)))
	}
	return errorReply("❌ Invalid action! Use 'view', 'add', or 'remove'.")
}

func ignoredChannelsEmbed(st model.Settings) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{Title: "Ignored Channels", Color: EmbedColor}
	if len(st.IgnoredChannels) == 0 {
		embed.Description = "No channels are being ignored."
		return embed
	}
	var sb strings.Builder
	for i, id := range st.IgnoredChannels {
		fmt.Fprintf(&sb, "%d. %s (ID: %s)\n", i+1, channelMention(id), id)
	}
	embed.Description = sb.String()
	return embed
}

func (b *Bot) starboardConfigCommand(ctx context.Context, in commandInput) *discordgo.InteractionResponseData {
	if !in.IsAdmin {
		return errorReply(noPermission)
	}
	patch := service.StarboardPatch{Enabled: in.Enabled}
	if in.Emoji != "" {
		emoji := in.Emoji
		patch.Emoji = &emoji
	}
	if in.Threshold != nil {
		threshold := int(*in.Threshold)
		patch.Threshold = &threshold
	}
	if in.Channel != nil && in.Channel.ID != "" {
		id := in.Channel.ID
		patch.ChannelID = &id
	}

	cfg, err := b.core.UpdateStarboard(ctx, patch)
	if err != nil {
		return b.configFailure(ctx, "update_starboard", err, configErrors{
			invalid: "❌ Threshold must be at least 1!",
		})
	}

	channel := "Not set"
	if cfg.ChannelID != "" {
		channel = channelMention(cfg.ChannelID)
	}
	embed := &discordgo.MessageEmbed{
		Title:       "Starboard Configuration",
		Description: "Starboard settings have been updated!",
		Color:       EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Enabled", Value: fmt.Sprint(cfg.Enabled), Inline: true},
			{Name: "Emoji", Value: cfg.Emoji, Inline: true},
			{Name: "Threshold", Value: fmt.Sprint(cfg.Threshold), Inline: true},
			{Name: "Channel", Value: channel, Inline: true},
		},
	}
	if cfg.Enabled && cfg.ChannelID == "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name:  "Warning",
			Value: "The starboard is enabled but no channel is set, so nothing will be posted.",
		})
	}
	return embedReply(embed)
}

func (b *Bot) setupWizardCommand(in commandInput) *discordgo.InteractionResponseData {
	if !in.IsAdmin {
		return errorReply(noPermission)
	}
	return embedReply(&discordgo.MessageEmbed{
		Title:       "Setup Wizard",
		Description: "Welcome to the XP Bot Setup Wizard! This wizard will help you configure the bot for your server.",
		Color:       EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Available Commands", Value: strings.Join([]string{
				"Use these commands to set up different components:",
				"• `/starboard_config` - Configure the starboard",
				"• `/role_config` - Configure level roles",
				"• `/ignored_channels` - Configure channels to ignore",
				"• `/help_xp` - View current configuration and help",
			}, "\n")},
			{Name: "Quick Start Guide", Value: strings.Join([]string{
				"1. Use `/role_config view` to see current role configuration",
				"2. Add level roles with `/role_config add [level] [role] [role_name]`",
				"3. Configure starboard with `/starboard_config`",
				"4. Set ignored channels with `/ignored_channels add [channel]`",
			}, "\n")},
		},
	})
}
