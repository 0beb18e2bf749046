// Package discord connects the gateway session to the leveling and starboard core.
package discord

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"

	service "github.com/okian/xpboard/internal/app"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/types"
	"github.com/okian/xpboard/pkg/logger"
)

// Intents requested by the bot session.
const Intents = discordgo.IntentsGuilds |
	discordgo.IntentsGuildMembers |
	discordgo.IntentsGuildMessages |
	discordgo.IntentsGuildMessageReactions |
	discordgo.IntentsMessageContent

const handlerTimeout = 10 * time.Second

// Core is the part of the service the bot drives.
type Core interface {
	Submit(ctx context.Context, e model.GatewayEvent) (service.Disposition, error)
	Rank(ctx context.Context, userID string) (types.RankView, error)
	Leaderboard(ctx context.Context, n int) ([]types.Entry, error)
	GrantXP(ctx context.Context, guildID, userID, displayName string, amount int64) (service.XPOutcome, error)
	Settings() model.Settings

	AddLevelRole(ctx context.Context, level int, roleID, name string) error
	UpdateLevelRole(ctx context.Context, level int, roleID, name string) error
	RemoveLevelRole(ctx context.Context, level int) (string, error)
	AddIgnoredChannel(ctx context.Context, channelID string) error
	RemoveIgnoredChannel(ctx context.Context, channelID string) error
	UpdateStarboard(ctx context.Context, patch service.StarboardPatch) (model.StarboardConfig, error)
}

// restAPI is the subset of *discordgo.Session used by the event handlers.
type restAPI interface {
	ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)
}

// Policy is the message XP policy shown by /help_xp.
type Policy struct {
	PerChar  float64
	MinGain  int64
	MaxGain  int64
	Cooldown time.Duration
}

// Bot translates gateway events into core calls and answers slash commands.
type Bot struct {
	session *discordgo.Session
	api     restAPI
	core    Core
	log     logger.Logger

	guildID string
	policy  Policy

	mu       sync.Mutex
	removers []func()
}

// Option configures a Bot.
type Option func(*Bot)

// WithGuildID registers slash commands in one guild instead of globally.
func WithGuildID(id string) Option {
	return func(b *Bot) {
		b.guildID = id
	}
}

// WithPolicy sets the XP policy described by /help_xp.
func WithPolicy(p Policy) Option {
	return func(b *Bot) {
		b.policy = p
	}
}

// WithLogger sets the logger.
func WithLogger(l logger.Logger) Option {
	return func(b *Bot) {
		if l != nil {
			b.log = l
		}
	}
}

// NewSession creates an unopened gateway session with the bot intents.
func NewSession(token string) (*discordgo.Session, error) {
	if token == "" {
		return nil, ErrNoToken
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, err
	}
	s.Identify.Intents = Intents
	return s, nil
}

// New creates a Bot over session.
func New(session *discordgo.Session, core Core, opts ...Option) *Bot {
	b := &Bot{
		session: session,
		core:    core,
		log:     logger.Get().Named("discord"),
		policy: Policy{
			PerChar:  0.5,
			MinGain:  5,
			MaxGain:  1000,
			Cooldown: 3 * time.Second,
		},
	}
	if session != nil {
		b.api = session
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Start registers the gateway handlers and opens the session.
func (b *Bot) Start(ctx context.Context) error {
	if b.session == nil {
		return ErrNoToken
	}
	b.mu.Lock()
	b.removers = append(b.removers,
		b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) { b.onReady(r) }),
		b.session.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) { b.onMessage(m.Message) }),
		b.session.AddHandler(func(_ *discordgo.Session, r *discordgo.MessageReactionAdd) { b.onReaction(r) }),
		b.session.AddHandler(func(_ *discordgo.Session, i *discordgo.InteractionCreate) { b.onInteraction(i.Interaction) }),
	)
	b.mu.Unlock()

	if err := b.session.Open(); err != nil {
		return err
	}
	b.log.Info(ctx, "discord session opened", logger.String("guild_id", b.guildID))
	return nil
}

// Stop removes the handlers and closes the session.
func (b *Bot) Stop() error {
	if b.session == nil {
		return nil
	}
	b.mu.Lock()
	for _, remove := range b.removers {
		remove()
	}
	b.removers = nil
	b.mu.Unlock()
	return b.session.Close()
}

func (b *Bot) onReady(r *discordgo.Ready) {
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	appID := ""
	if r.Application != nil {
		appID = r.Application.ID
	} else if r.User != nil {
		appID = r.User.ID
	}
	if r.User != nil {
		b.log.Info(ctx, "logged in", logger.String("user", r.User.Username))
	}
	if err := b.registerCommands(ctx, appID); err != nil {
		b.log.Error(ctx, "failed to register commands", logger.Error(err))
	}
}

func (b *Bot) registerCommands(ctx context.Context, appID string) error {
	cmds, err := b.api.ApplicationCommandBulkOverwrite(appID, b.guildID, commands(), discordgo.WithContext(ctx))
	if err != nil {
		return err
	}
	b.log.Info(ctx, "commands registered", logger.Int("count", len(cmds)))
	return nil
}

func (b *Bot) onMessage(m *discordgo.Message) {
	if m == nil || m.GuildID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()
	b.submit(ctx, messageEvent(m))
}

func (b *Bot) onReaction(r *discordgo.MessageReactionAdd) {
	if r == nil || r.MessageReaction == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	e, ok, err := b.reactionEvent(ctx, r)
	if err != nil {
		b.log.Warn(ctx, "failed to load reacted message",
			logger.String("message_id", r.MessageID),
			logger.Error(err))
		return
	}
	if ok {
		b.submit(ctx, e)
	}
}

// reactionEvent builds the core event for r. It skips the message fetch when
// the starboard is off or the emoji is not the configured one.
func (b *Bot) reactionEvent(ctx context.Context, r *discordgo.MessageReactionAdd) (model.GatewayEvent, bool, error) {
	cfg := b.core.Settings().Starboard
	if !cfg.Enabled || !emojiMatches(cfg.Emoji, &r.Emoji) {
		return model.GatewayEvent{}, false, nil
	}

	reactorIsBot := false
	switch {
	case r.Member != nil && r.Member.User != nil:
		reactorIsBot = r.Member.User.Bot
	default:
		u, err := b.api.User(r.UserID, discordgo.WithContext(ctx))
		if err != nil {
			return model.GatewayEvent{}, false, err
		}
		reactorIsBot = u.Bot
	}
	if reactorIsBot {
		return model.GatewayEvent{}, false, nil
	}

	msg, err := b.api.ChannelMessage(r.ChannelID, r.MessageID, discordgo.WithContext(ctx))
	if err != nil {
		return model.GatewayEvent{}, false, err
	}
	return reactionEvent(r.MessageReaction, msg, reactorIsBot, cfg.Emoji), true, nil
}

func (b *Bot) submit(ctx context.Context, e model.GatewayEvent) {
	d, err := b.core.Submit(ctx, e)
	if err != nil {
		b.log.Warn(ctx, "event not submitted",
			logger.String("event_id", e.ID),
			logger.String("kind", string(e.Kind)),
			logger.Error(err))
		return
	}
	b.log.Debug(ctx, "event submitted",
		logger.String("event_id", e.ID),
		logger.String("disposition", string(d)))
}

func (b *Bot) onInteraction(i *discordgo.Interaction) {
	if i == nil || i.Type != discordgo.InteractionApplicationCommand {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), handlerTimeout)
	defer cancel()

	in := parseCommand(i)
	data := b.runCommand(ctx, in)
	err := b.api.InteractionRespond(i, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: data,
	}, discordgo.WithContext(ctx))
	if err != nil && !errors.Is(err, context.Canceled) {
		b.log.Error(ctx, "failed to respond to command",
			logger.String("command", in.Name),
			logger.Error(err))
	}
}
