// Package starboard maps source messages to their single promoted post.
package starboard

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/okian/xpboard/internal/domain/keylock"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/pkg/logger"
)

// ActionKind is the transition a reaction count triggers.
type ActionKind int

const (
	NoAction ActionKind = iota
	CreatePromotion
	UpdateCount
)

func (k ActionKind) String() string {
	switch k {
	case CreatePromotion:
		return "create_promotion"
	case UpdateCount:
		return "update_count"
	default:
		return "no_action"
	}
}

// Action tells the caller what to do with the promoted post.
type Action struct {
	Kind              ActionKind
	PromotedMessageID string // set for UpdateCount
	StarCount         int
}

// Store persists starboard entries.
type Store interface {
	// GetEntry returns an error matching model.ErrNotFound for unknown messages.
	GetEntry(ctx context.Context, sourceMessageID string) (model.StarboardEntry, error)
	// InsertEntry inserts only if absent; otherwise it returns the stored entry
	// and an error matching model.ErrAlreadyExists.
	InsertEntry(ctx context.Context, e model.StarboardEntry) (model.StarboardEntry, error)
	UpdateStarCount(ctx context.Context, sourceMessageID string, stars int) error
}

// Registry decides create-or-update for every reaction count. Between a
// CreatePromotion and the matching Register or Abandon the message is
// claimed: further evaluations return NoAction and only remember the highest
// count seen, so a second CreatePromotion is never issued for one message.
// A claim whose post was published but whose entry could not be stored stays
// open; the next evaluation retries the insert instead of promoting again.
type Registry struct {
	store Store
	locks *keylock.Locker
	log   logger.Logger

	mu      sync.Mutex
	pending map[string]*claim
}

// claim is an open promotion for one source message.
type claim struct {
	seen      int
	published *model.StarboardEntry // set once the post exists but is not stored
}

// Option applies a configuration option to the Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(r *Registry) {
		if log != nil {
			r.log = log
		}
	}
}

// NewRegistry constructs a Registry over store.
func NewRegistry(store Store, opts ...Option) *Registry {
	r := &Registry{
		store:   store,
		locks:   keylock.New(),
		log:     logger.Get().Named("starboard"),
		pending: make(map[string]*claim),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Evaluate classifies a reaction count for sourceMessageID.
// For an existing entry the stored count is updated in place before
// UpdateCount is returned; equal counts are not rewritten.
func (r *Registry) Evaluate(ctx context.Context, sourceMessageID string, count int, cfg model.StarboardConfig) (Action, error) {
	if !cfg.Enabled || count < max(cfg.Threshold, 1) {
		return Action{Kind: NoAction, StarCount: count}, nil
	}
	if sourceMessageID == "" {
		return Action{}, fmt.Errorf("%w: source message id is required", model.ErrInvalidArgument)
	}

	unlock := r.locks.Lock(sourceMessageID)
	defer unlock()

	if c, ok := r.notePending(sourceMessageID, count); ok {
		if c.published == nil {
			return Action{Kind: NoAction, StarCount: count}, nil
		}
		return r.storePublished(ctx, *c.published, c.seen)
	}

	entry, err := r.store.GetEntry(ctx, sourceMessageID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		r.mu.Lock()
		r.pending[sourceMessageID] = &claim{seen: count}
		r.mu.Unlock()
		return Action{Kind: CreatePromotion, StarCount: count}, nil
	case err != nil:
		return Action{}, model.PersistenceError("get starboard entry", err)
	}

	if entry.StarCount != count {
		if err := r.store.UpdateStarCount(ctx, sourceMessageID, count); err != nil {
			return Action{}, model.PersistenceError("update star count", err)
		}
	}
	return Action{Kind: UpdateCount, PromotedMessageID: entry.PromotedMessageID, StarCount: count}, nil
}

// notePending records count against an open claim and returns a copy of it.
func (r *Registry) notePending(id string, count int) (claim, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.pending[id]
	if !ok {
		return claim{}, false
	}
	c.seen = max(c.seen, count)
	return *c, true
}

// storePublished retries the insert of an entry whose post already exists.
// The claim is closed once the entry is stored, and the caller is told to
// bring the post up to the highest count seen.
func (r *Registry) storePublished(ctx context.Context, entry model.StarboardEntry, seen int) (Action, error) {
	entry.StarCount = max(entry.StarCount, seen)
	stored, err := r.store.InsertEntry(ctx, entry)
	if err != nil && !errors.Is(err, model.ErrAlreadyExists) {
		return Action{}, model.PersistenceError("insert starboard entry", err)
	}
	r.mu.Lock()
	delete(r.pending, entry.SourceMessageID)
	r.mu.Unlock()
	r.log.Info(ctx, "stored starboard entry after retry",
		logger.String("source_message_id", entry.SourceMessageID),
		logger.String("promoted_message_id", stored.PromotedMessageID))
	return Action{Kind: UpdateCount, PromotedMessageID: stored.PromotedMessageID, StarCount: entry.StarCount}, nil
}

// Register stores the entry created for a CreatePromotion and closes the claim.
// The returned entry carries the highest count observed while the claim was
// open; a caller seeing a count above the one it published should update the post.
// If an entry already existed the stored one is returned with an error
// matching model.ErrAlreadyExists. If the insert fails the claim keeps the
// published entry and a later Evaluate stores it.
func (r *Registry) Register(ctx context.Context, entry model.StarboardEntry) (model.StarboardEntry, error) {
	if entry.SourceMessageID == "" || entry.PromotedMessageID == "" {
		return model.StarboardEntry{}, fmt.Errorf("%w: source and promoted message ids are required", model.ErrInvalidArgument)
	}
	unlock := r.locks.Lock(entry.SourceMessageID)
	defer unlock()

	r.mu.Lock()
	if c, ok := r.pending[entry.SourceMessageID]; ok {
		entry.StarCount = max(entry.StarCount, c.seen)
	}
	r.mu.Unlock()

	stored, err := r.store.InsertEntry(ctx, entry)
	if err != nil && !errors.Is(err, model.ErrAlreadyExists) {
		r.mu.Lock()
		r.pending[entry.SourceMessageID] = &claim{seen: entry.StarCount, published: &entry}
		r.mu.Unlock()
		return model.StarboardEntry{}, model.PersistenceError("insert starboard entry", err)
	}
	r.mu.Lock()
	delete(r.pending, entry.SourceMessageID)
	r.mu.Unlock()
	if errors.Is(err, model.ErrAlreadyExists) {
		r.log.Warn(ctx, "starboard entry already registered",
			logger.String("source_message_id", entry.SourceMessageID),
			logger.String("promoted_message_id", stored.PromotedMessageID))
		return stored, err
	}
	return stored, nil
}

// Abandon releases a claim whose promoted post could not be created, so the
// next qualifying reaction retries the promotion.
func (r *Registry) Abandon(sourceMessageID string) {
	unlock := r.locks.Lock(sourceMessageID)
	defer unlock()
	r.mu.Lock()
	delete(r.pending, sourceMessageID)
	r.mu.Unlock()
}

// Get returns the stored entry for sourceMessageID.
func (r *Registry) Get(ctx context.Context, sourceMessageID string) (model.StarboardEntry, error) {
	return r.store.GetEntry(ctx, sourceMessageID)
}

// Pending returns the number of open claims.
func (r *Registry) Pending() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.pending)
}
