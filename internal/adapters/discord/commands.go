package discord

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"

	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/types"
	"github.com/okian/xpboard/pkg/logger"
)

// Slash command names.
const (
	CmdRank        = "rank"
	CmdLeaderboard = "leaderboard"
	CmdGiveXP      = "givexp"
	CmdHelp        = "help_xp"
)

const (
	errorColor         = 0xe74c3c
	defaultBoardSize   = 10
	maxBoardSize       = 25 // keeps the leaderboard embed under Discord's description limit
	progressBarSegment = 10
	helpChannelPreview = 5
)

var adminPermission = int64(discordgo.PermissionAdministrator)

// commands returns the slash commands the bot registers.
func commands() []*discordgo.ApplicationCommand {
	minLimit := 1.0
	return append([]*discordgo.ApplicationCommand{
		{
			Name:        CmdRank,
			Description: "Check your or another user's rank",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "The member to check"},
			},
		},
		{
			Name:        CmdLeaderboard,
			Description: "Show the XP leaderboard",
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "limit", Description: "Number of users to show", MinValue: &minLimit, MaxValue: maxBoardSize},
			},
		},
		{
			Name:        CmdHelp,
			Description: "Show help for XP system",
		},
		{
			Name:                     CmdGiveXP,
			Description:              "Give XP to a user (Admin only)",
			DefaultMemberPermissions: &adminPermission,
			Options: []*discordgo.ApplicationCommandOption{
				{Type: discordgo.ApplicationCommandOptionUser, Name: "member", Description: "The member to give XP to", Required: true},
				{Type: discordgo.ApplicationCommandOptionInteger, Name: "amount", Description: "Amount of XP to give", Required: true},
			},
		},
	}, adminCommands()...)
}

// commandInput is a parsed slash command invocation.
type commandInput struct {
	Name    string
	GuildID string
	Invoker *discordgo.User
	Target  *discordgo.User // nil when the member option was omitted
	Limit   int64
	Amount  int64
	IsAdmin bool

	// Configuration command options.
	Action    string
	Level     int64
	Role      *discordgo.Role
	RoleName  string
	Channel   *discordgo.Channel
	Enabled   *bool
	Emoji     string
	Threshold *int64
}

// parseCommand extracts a commandInput from an application command interaction.
func parseCommand(i *discordgo.Interaction) commandInput {
	data := i.ApplicationCommandData()
	in := commandInput{Name: data.Name, GuildID: i.GuildID}
	if i.Member != nil {
		in.Invoker = i.Member.User
		in.IsAdmin = i.Member.Permissions&discordgo.PermissionAdministrator != 0
	} else {
		in.Invoker = i.User
	}
	for _, opt := range data.Options {
		switch opt.Name {
		case "member":
			in.Target = resolveUser(data.Resolved, opt)
		case "limit":
			in.Limit = opt.IntValue()
		case "amount":
			in.Amount = opt.IntValue()
		case "action":
			in.Action = strings.ToLower(strings.TrimSpace(opt.StringValue()))
		case "level":
			in.Level = opt.IntValue()
		case "role":
			in.Role = resolveRole(data.Resolved, opt)
		case "role_name":
			in.RoleName = strings.TrimSpace(opt.StringValue())
		case "channel":
			in.Channel = resolveChannel(data.Resolved, opt)
		case "enabled":
			v := opt.BoolValue()
			in.Enabled = &v
		case "emoji":
			in.Emoji = strings.TrimSpace(opt.StringValue())
		case "threshold":
			v := opt.IntValue()
			in.Threshold = &v
		}
	}
	return in
}

func resolveUser(resolved *discordgo.ApplicationCommandInteractionDataResolved, opt *discordgo.ApplicationCommandInteractionDataOption) *discordgo.User {
	id, _ := opt.Value.(string)
	if resolved != nil {
		if u, ok := resolved.Users[id]; ok && u != nil {
			if m, ok := resolved.Members[id]; ok && m != nil && m.Nick != "" {
				named := *u
				named.GlobalName = m.Nick
				return &named
			}
			return u
		}
	}
	return &discordgo.User{ID: id}
}

// runCommand executes one slash command against the core and renders the reply.
func (b *Bot) runCommand(ctx context.Context, in commandInput) *discordgo.InteractionResponseData {
	switch in.Name {
	case CmdRank:
		return b.rankCommand(ctx, in)
	case CmdLeaderboard:
		return b.leaderboardCommand(ctx, in)
	case CmdGiveXP:
		return b.giveXPCommand(ctx, in)
	case CmdHelp:
		return b.helpCommand()
	case CmdRoleConfig:
		return b.roleConfigCommand(ctx, in)
	case CmdIgnoredChannels:
		return b.ignoredChannelsCommand(ctx, in)
	case CmdStarboardConfig:
		return b.starboardConfigCommand(ctx, in)
	case CmdSetupWizard:
		return b.setupWizardCommand(in)
	default:
		return errorReply(fmt.Sprintf("❌ Unknown command %q", in.Name))
	}
}

func (b *Bot) rankCommand(ctx context.Context, in commandInput) *discordgo.InteractionResponseData {
	member := in.Target
	if member == nil {
		member = in.Invoker
	}
	if member == nil {
		return errorReply("❌ Could not resolve the member.")
	}
	view, err := b.core.Rank(ctx, member.ID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		return embedReply(&discordgo.MessageEmbed{
			Description: fmt.Sprintf("%s hasn't earned any XP yet!", member.DisplayName()),
			Color:       EmbedColor,
		})
	case err != nil:
		b.log.Error(ctx, "rank lookup failed", logger.String("user_id", member.ID), logger.Error(err))
		return errorReply("❌ Could not load rank, try again later.")
	}
	return embedReply(rankEmbed(member, view))
}

func rankEmbed(member *discordgo.User, view types.RankView) *discordgo.MessageEmbed {
	embed := &discordgo.MessageEmbed{
		Title:     fmt.Sprintf("%s's Rank", member.DisplayName()),
		Color:     EmbedColor,
		Thumbnail: &discordgo.MessageEmbedThumbnail{URL: member.AvatarURL("")},
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Level", Value: fmt.Sprint(view.Level), Inline: true},
			{Name: "Total XP", Value: fmt.Sprint(view.XP), Inline: true},
		},
	}
	if view.MaxLevel {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Status", Value: "Maximum Level Reached!"})
		return embed
	}
	embed.Fields = append(embed.Fields,
		&discordgo.MessageEmbedField{Name: "Next Level", Value: fmt.Sprintf("%d/%d", view.XP, view.NextLevelXP), Inline: true},
		&discordgo.MessageEmbedField{Name: "Progress", Value: fmt.Sprintf("%s %d%%", progressBar(view.Percent), int(view.Percent))},
		&discordgo.MessageEmbedField{Name: "XP Needed", Value: fmt.Sprintf("%d XP to level %d", view.XPNeeded, view.Level+1)},
	)
	return embed
}

// progressBar draws percent (0-100) as ten filled or empty squares.
func progressBar(percent float64) string {
	filled := int(percent / 100 * progressBarSegment)
	filled = max(0, min(filled, progressBarSegment))
	return strings.Repeat("■", filled) + strings.Repeat("□", progressBarSegment-filled)
}

func (b *Bot) leaderboardCommand(ctx context.Context, in commandInput) *discordgo.InteractionResponseData {
	limit := int(in.Limit)
	if limit <= 0 {
		limit = defaultBoardSize
	}
	limit = min(limit, maxBoardSize)
	entries, err := b.core.Leaderboard(ctx, limit)
	if err != nil {
		b.log.Error(ctx, "leaderboard lookup failed", logger.Error(err))
		return errorReply("❌ Could not load the leaderboard, try again later.")
	}
	if len(entries) == 0 {
		return embedReply(&discordgo.MessageEmbed{Description: "No users have earned XP yet!", Color: EmbedColor})
	}
	return embedReply(leaderboardEmbed(entries))
}

func leaderboardEmbed(entries []types.Entry) *discordgo.MessageEmbed {
	var sb strings.Builder
	for i, e := range entries {
		fmt.Fprintf(&sb, "%s **%d.** **%s** - Level %d (%d XP)\n", rankMarker(i+1), i+1, entryName(e), e.Level, e.XP)
	}
	return &discordgo.MessageEmbed{Title: "📊 XP Leaderboard", Description: sb.String(), Color: EmbedColor}
}

func rankMarker(position int) string {
	switch position {
	case 1:
		return "🥇"
	case 2:
		return "🥈"
	case 3:
		return "🥉"
	default:
		return "⭐"
	}
}

func entryName(e types.Entry) string {
	if e.Username != "" {
		return e.Username
	}
	return e.UserID
}

func (b *Bot) giveXPCommand(ctx context.Context, in commandInput) *discordgo.InteractionResponseData {
	if !in.IsAdmin {
		return errorReply(noPermission)
	}
	if in.Amount <= 0 {
		return errorReply("❌ XP amount must be positive!")
	}
	if in.Target == nil {
		return errorReply("❌ Could not resolve the member.")
	}
	out, err := b.core.GrantXP(ctx, in.GuildID, in.Target.ID, in.Target.Username, in.Amount)
	if err != nil {
		b.log.Error(ctx, "grant xp failed", logger.String("user_id", in.Target.ID), logger.Error(err))
		return errorReply("❌ Could not add XP, try again later.")
	}
	if out.CollaboratorErr != nil {
		b.log.Warn(ctx, "grant xp side effects failed", logger.String("user_id", in.Target.ID), logger.Error(out.CollaboratorErr))
	}
	invoker := ""
	if in.Invoker != nil {
		invoker = in.Invoker.ID
	}
	b.log.Info(ctx, "admin granted xp",
		logger.String("admin", invoker),
		logger.String("user_id", in.Target.ID),
		logger.Int64("amount", in.Amount))

	name := in.Target.DisplayName()
	embed := &discordgo.MessageEmbed{
		Title:       "XP Added",
		Description: fmt.Sprintf("Added %d XP to %s", in.Amount, in.Target.Mention()),
		Color:       EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Previous XP", Value: fmt.Sprint(out.Progress.XP - out.Gain), Inline: true},
			{Name: "New XP", Value: fmt.Sprint(out.Progress.XP), Inline: true},
		},
	}
	if out.Change != nil && out.Change.IsLevelUp() {
		field := &discordgo.MessageEmbedField{
			Name:  "Level Up!",
			Value: fmt.Sprintf("%s is now level %d!", name, out.Change.NewLevel),
		}
		if gained := out.Change.Delta(); gained > 1 {
			field.Name = "Multiple Level Up!"
			field.Value = fmt.Sprintf("%s gained %d levels and is now level %d!", name, gained, out.Change.NewLevel)
		}
		embed.Fields = append(embed.Fields, field)
	}
	return embedReply(embed)
}

func (b *Bot) helpCommand() *discordgo.InteractionResponseData {
	st := b.core.Settings()
	p := b.policy
	embed := &discordgo.MessageEmbed{
		Title: "XP System Help",
		Color: EmbedColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Commands", Value: strings.Join([]string{
				"`/rank [member]` - Check your or another user's rank",
				"`/leaderboard [limit]` - Show the XP leaderboard",
				"`/help_xp` - Show this help message",
				"`/givexp` - (Admin only) Give XP to a user",
				"`/role_config`, `/ignored_channels`, `/starboard_config`, `/setup_wizard` - (Admin only) Configure the bot",
			}, "\n")},
			{Name: "XP System", Value: strings.Join([]string{
				fmt.Sprintf("• %.1f XP per character in your message", p.PerChar),
				fmt.Sprintf("• Minimum %d XP per message", p.MinGain),
				fmt.Sprintf("• Maximum %d XP per message", p.MaxGain),
				fmt.Sprintf("• Cooldown: %s between XP awards", p.Cooldown),
			}, "\n")},
		},
	}

	if levels := st.SortedLevels(); len(levels) > 0 {
		var sb strings.Builder
		for _, level := range levels {
			fmt.Fprintf(&sb, "• Level %d: %s\n", level, st.RoleName(st.LevelRoles[level]))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Level Roles", Value: sb.String()})
	}
	if sb := st.Starboard; sb.Enabled {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Starboard", Value: fmt.Sprintf(
			"• React with %s to add messages to the starboard\n• Threshold: %d %s reactions",
			sb.Emoji, sb.Threshold, sb.Emoji)})
	}
	if n := len(st.IgnoredChannels); n > 0 {
		var sb strings.Builder
		sb.WriteString("Channels where XP is not earned:\n")
		for _, id := range st.IgnoredChannels[:min(n, helpChannelPreview)] {
			fmt.Fprintf(&sb, "• <#%s>\n", id)
		}
		if n > helpChannelPreview {
			fmt.Fprintf(&sb, "And %d more...", n-helpChannelPreview)
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{Name: "Ignored Channels", Value: sb.String()})
	}
	return embedReply(embed)
}

func embedReply(embed *discordgo.MessageEmbed) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{Embeds: []*discordgo.MessageEmbed{embed}}
}

func errorReply(text string) *discordgo.InteractionResponseData {
	return &discordgo.InteractionResponseData{
		Embeds: []*discordgo.MessageEmbed{{Description: text, Color: errorColor}},
		Flags:  discordgo.MessageFlagsEphemeral,
	}
}
