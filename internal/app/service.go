// Package service composes the leveling, role-sync and starboard components
// into the one entry point the gateway and HTTP adapters talk to.
package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"

	"github.com/okian/xpboard/internal/adapters/mq/worker"
	"github.com/okian/xpboard/internal/adapters/repository"
	"github.com/okian/xpboard/internal/domain/dedupe"
	"github.com/okian/xpboard/internal/domain/keylock"
	"github.com/okian/xpboard/internal/domain/ledger"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/roles"
	"github.com/okian/xpboard/internal/domain/settings"
	"github.com/okian/xpboard/internal/domain/starboard"
	"github.com/okian/xpboard/pkg/logger"
	"github.com/okian/xpboard/pkg/metrics"
)

const (
	defaultQueueSize      = 1024
	defaultDedupeSize     = 50000
	defaultPruneSchedule  = "@every 1m"
	defaultMaxLeaderboard = 100
	stopTimeout           = 30 * time.Second
)

// RoleMutator grants and revokes platform roles.
type RoleMutator = roles.Mutator

// Publisher creates and edits promoted posts in the starboard channel.
type Publisher interface {
	CreatePost(ctx context.Context, channelID string, post model.PostContent, starCount int, emoji string) (string, error)
	UpdatePostStarCount(ctx context.Context, channelID, postID string, starCount int, emoji string) error
}

// Announcer tells a channel that a user levelled up.
type Announcer interface {
	AnnounceLevelUp(ctx context.Context, channelID string, change model.LevelChange) error
}

// Disposition is what Submit did with a gateway event.
type Disposition string

const (
	Accepted  Disposition = "accepted"
	Filtered  Disposition = "filtered"
	Duplicate Disposition = "duplicate"
)

// Service implements the bot core.
type Service struct {
	mu sync.RWMutex

	// Core components
	store    repository.Store
	deduper  dedupe.Deduper
	pool     *worker.Pool
	ledger   *ledger.Ledger
	settings *settings.Store
	registry *starboard.Registry
	sync     *roles.Synchronizer
	msgLocks *keylock.Locker
	// roleLocks serializes role syncs per user id.
	roleLocks *keylock.Locker
	cron     *cron.Cron

	// Collaborators
	mutator   RoleMutator
	publisher Publisher
	announcer Announcer

	// Configuration
	workerCount    int
	queueSize      int
	dedupeSize     int
	cooldown       time.Duration
	perChar        float64
	minGain        int64
	maxGain        int64
	jitter         func() int64
	pruneSchedule  string
	maxLeaderboard int
	now            func() time.Time

	// State
	started bool

	logger logger.Logger
}

// New constructs a Service. Handlers are usable immediately; Submit needs Start.
func New(opts ...Option) *Service {
	s := &Service{
		queueSize:      defaultQueueSize,
		dedupeSize:     defaultDedupeSize,
		cooldown:       ledger.DefaultCooldown,
		perChar:        ledger.DefaultPerChar,
		minGain:        ledger.DefaultMinGain,
		maxGain:        ledger.DefaultMaxGain,
		pruneSchedule:  defaultPruneSchedule,
		maxLeaderboard: defaultMaxLeaderboard,
		now:            time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("service")
	}
	if s.store == nil {
		s.store = repository.NewMemoryStore()
	}

	ledgerOpts := []ledger.Option{
		ledger.WithCooldown(s.cooldown),
		ledger.WithGainPolicy(s.perChar, s.minGain, s.maxGain),
		ledger.WithLogger(s.logger.Named("ledger")),
	}
	if s.jitter != nil {
		ledgerOpts = append(ledgerOpts, ledger.WithJitter(s.jitter))
	}
	s.ledger = ledger.New(s.store, ledgerOpts...)
	s.settings = settings.New(s.store, settings.WithLogger(s.logger.Named("settings")))
	s.registry = starboard.NewRegistry(s.store, starboard.WithLogger(s.logger.Named("starboard")))
	s.deduper = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))
	s.msgLocks = keylock.New()
	s.roleLocks = keylock.New()
	if s.mutator != nil {
		s.sync = roles.NewSynchronizer(s.mutator, roles.WithLogger(s.logger.Named("roles")))
	}
	return s
}

// Start loads the persisted configuration, starts the dispatcher and the
// cooldown pruning job.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	s.logger.Info(ctx, "starting xpboard service...")

	if err := s.settings.Load(ctx); err != nil {
		return fmt.Errorf("load settings: %w", err)
	}

	s.pool = worker.NewPool(s.workerCount, worker.HandlerFunc(s.dispatch),
		worker.WithShardCapacity(s.queueSize),
		worker.WithPoolLogger(s.logger.Named("worker-pool")))
	s.pool.Start(ctx)

	s.cron = cron.New()
	if _, err := s.cron.AddFunc(s.pruneSchedule, s.pruneCooldowns); err != nil {
		_ = s.pool.Shutdown(ctx)
		return fmt.Errorf("schedule cooldown pruning %q: %w", s.pruneSchedule, err)
	}
	s.cron.Start()

	s.started = true
	s.logger.Info(ctx, "xpboard service started",
		logger.Int("shards", s.pool.Size()),
		logger.Int("queueSize", s.queueSize),
		logger.Int("dedupeSize", s.dedupeSize),
		logger.Duration("cooldown", s.cooldown),
	)
	return nil
}

// Stop drains the dispatcher, stops the pruning job and closes the store.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	s.logger.Info(ctx, "stopping xpboard service...")

	<-s.cron.Stop().Done()
	if err := s.pool.Shutdown(ctx); err != nil {
		s.logger.Warn(ctx, "dispatcher did not drain", logger.Error(err))
	}
	if err := s.store.Close(); err != nil {
		s.logger.Warn(ctx, "closing store failed", logger.Error(err))
	}

	s.started = false
	s.logger.Info(ctx, "xpboard service stopped")
}

func (s *Service) pruneCooldowns() {
	removed := s.ledger.PruneCooldowns(s.now())
	tracked := s.ledger.TrackedCooldowns()
	metrics.UpdateTrackedUsers(tracked)
	if removed > 0 {
		s.logger.Debug(context.Background(), "pruned cooldowns",
			logger.Int("removed", removed),
			logger.Int("tracked", tracked))
	}
}

// Submit filters, deduplicates and dispatches a gateway event. Events for one
// user (messages) or one source message (reactions) are handled in arrival order.
func (s *Service) Submit(ctx context.Context, e model.GatewayEvent) (Disposition, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.started {
		return "", ErrNotStarted
	}

	if err := validate(e); err != nil {
		metrics.RecordGatewayEvent(string(e.Kind), "invalid")
		return "", err
	}
	if reason := s.filterReason(e); reason != "" {
		metrics.RecordGatewayEvent(string(e.Kind), "filtered")
		s.logger.Debug(ctx, "gateway event filtered",
			logger.String("id", e.ID),
			logger.String("kind", string(e.Kind)),
			logger.String("reason", reason))
		return Filtered, nil
	}
	if s.deduper.SeenAndRecord(ctx, e.ID) {
		metrics.RecordEventDuplicate()
		metrics.RecordGatewayEvent(string(e.Kind), "duplicate")
		return Duplicate, nil
	}

	if e.CorrelationID == "" {
		e.CorrelationID = uuid.NewString()
	}
	if e.TS.IsZero() {
		e.TS = s.now()
	}
	if err := s.pool.Submit(ctx, e); err != nil {
		s.deduper.Unrecord(ctx, e.ID)
		metrics.RecordGatewayEvent(string(e.Kind), "rejected")
		return "", fmt.Errorf("dispatch %s: %w", e.ID, err)
	}
	metrics.RecordGatewayEvent(string(e.Kind), "accepted")
	return Accepted, nil
}

func validate(e model.GatewayEvent) error {
	switch e.Kind {
	case model.KindMessage:
		if e.Message == nil || e.Message.AuthorID == "" {
			return fmt.Errorf("%w: message event needs an author", ErrInvalidEvent)
		}
	case model.KindReaction:
		if e.Reaction == nil || e.Reaction.MessageID == "" {
			return fmt.Errorf("%w: reaction event needs a message id", ErrInvalidEvent)
		}
	default:
		return fmt.Errorf("%w: unknown kind %q", ErrInvalidEvent, e.Kind)
	}
	return nil
}

// filterReason returns why e is dropped, or "" to keep it.
func (s *Service) filterReason(e model.GatewayEvent) string {
	if e.Kind == model.KindMessage {
		m := e.Message
		switch {
		case m.IsBot:
			return "bot_author"
		case s.settings.IsIgnored(m.ChannelID):
			return "ignored_channel"
		}
		return ""
	}

	r := e.Reaction
	cfg := s.settings.Starboard()
	switch {
	case r.ReactorIsBot:
		return "bot_reactor"
	case r.AuthorIsBot:
		return "bot_author"
	case !cfg.Enabled:
		return "starboard_disabled"
	case r.Emoji != cfg.Emoji:
		return "emoji"
	}
	return ""
}

// dispatch is the worker handler.
func (s *Service) dispatch(ctx context.Context, e worker.Event) error { //nolint:gocritic // hugeParam
	return s.Handle(ctx, e)
}

// Handle applies one gateway event synchronously. Collaborator failures are
// returned after the core state has been updated.
func (s *Service) Handle(ctx context.Context, e model.GatewayEvent) error { //nolint:gocritic // hugeParam
	if err := validate(e); err != nil {
		return err
	}
	switch e.Kind {
	case model.KindMessage:
		out, err := s.HandleMessage(ctx, *e.Message)
		if err != nil {
			return err
		}
		return out.CollaboratorErr
	default:
		out, err := s.HandleReaction(ctx, *e.Reaction)
		if err != nil {
			return err
		}
		return out.CollaboratorErr
	}
}

// GetStats returns service statistics for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ctx := context.Background()
	stats := map[string]interface{}{
		"started":          s.started,
		"queueSize":        s.queueSize,
		"dedupeSize":       s.dedupeSize,
		"cooldownMs":       s.cooldown.Milliseconds(),
		"totalUsers":       s.store.Count(ctx),
		"trackedCooldowns": s.ledger.TrackedCooldowns(),
		"seenEvents":       s.deduper.Size(),
		"pendingPromotion": s.registry.Pending(),
	}
	if s.started {
		queueLen := s.pool.Len()
		stats["shards"] = s.pool.Size()
		stats["queueLength"] = queueLen
		metrics.UpdateQueueSize(queueLen)
	}
	return stats
}
