// Package ledger owns per-user XP records and the message cooldown gate.
package ledger

import (
	"context"
	"errors"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/okian/xpboard/internal/domain/keylock"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/progression"
	"github.com/okian/xpboard/pkg/logger"
)

// Defaults for the message gain policy.
const (
	DefaultCooldown = 3 * time.Second
	DefaultPerChar  = 0.5
	DefaultMinGain  = 5
	DefaultMaxGain  = 1000
	maxJitter       = 3
)

// Store is the persistence the ledger writes through to.
type Store interface {
	// GetProgress returns an error matching model.ErrNotFound for unknown users.
	GetProgress(ctx context.Context, userID string) (model.UserProgress, error)
	SaveProgress(ctx context.Context, p model.UserProgress) error
}

// Source labels how XP was applied.
type Source string

const (
	SourceMessage    Source = "message"
	SourceGrant      Source = "grant"
	SourceCorrection Source = "correction"
)

// Result reports the outcome of one ledger operation.
type Result struct {
	Source   Source
	Awarded  bool  // false when the cooldown gate rejected a message
	Gain     int64 // signed for corrections
	Progress model.UserProgress
	Change   *model.LevelChange // nil when the level did not move
}

// Ledger applies XP deltas. Every operation on one user runs under that
// user's lock, so the cooldown check, the XP write and the level derivation
// happen as one step.
type Ledger struct {
	store Store
	locks *keylock.Locker
	log   logger.Logger

	cooldown time.Duration
	perChar  float64
	minGain  int64
	maxGain  int64
	jitter   func() int64

	rngMu sync.Mutex
	rng   *rand.Rand

	cdMu      sync.Mutex
	lastAward map[string]time.Time
}

// New constructs a Ledger over store.
func New(store Store, opts ...Option) *Ledger {
	l := &Ledger{
		store:     store,
		locks:     keylock.New(),
		log:       logger.Get().Named("ledger"),
		cooldown:  DefaultCooldown,
		perChar:   DefaultPerChar,
		minGain:   DefaultMinGain,
		maxGain:   DefaultMaxGain,
		lastAward: make(map[string]time.Time),
		rng:       rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	for _, opt := range opts {
		opt(l)
	}
	if l.jitter == nil {
		l.jitter = l.randomJitter
	}
	return l
}

func (l *Ledger) randomJitter() int64 {
	l.rngMu.Lock()
	defer l.rngMu.Unlock()
	return l.rng.Int63n(maxJitter + 1)
}

// MessageGain returns the XP a message of messageLength characters earns,
// before jitter.
func (l *Ledger) MessageGain(messageLength int) int64 {
	if messageLength < 0 {
		messageLength = 0
	}
	gain := int64(math.Floor(float64(messageLength) * l.perChar))
	return min(max(gain, l.minGain), l.maxGain)
}

// OnMessage awards message XP unless the user is inside the cooldown window.
// A rejected message changes nothing and returns Awarded=false.
// If the write fails the cooldown claim is released, so the next message is
// not penalised for an award that never happened.
func (l *Ledger) OnMessage(ctx context.Context, userID, displayName string, messageLength int, now time.Time) (Result, error) {
	if userID == "" {
		return Result{}, errEmptyUser
	}
	unlock := l.locks.Lock(userID)
	defer unlock()

	prev, hadPrev, ok := l.claim(userID, now)
	if !ok {
		l.log.Debug(ctx, "message inside cooldown",
			logger.String("user_id", userID),
			logger.Duration("since_last", now.Sub(prev)))
		return Result{Source: SourceMessage}, nil
	}

	gain := l.MessageGain(messageLength) + l.jitter()
	res, err := l.apply(ctx, SourceMessage, userID, displayName, func(xp int64) (int64, error) {
		if gain > math.MaxInt64-xp {
			return 0, errOverflow
		}
		return xp + gain, nil
	})
	if err != nil {
		l.release(userID, prev, hadPrev)
		return Result{Source: SourceMessage}, err
	}
	return res, nil
}

// Grant adds amount XP without the cooldown gate. Multi-level jumps are
// reported as one change carrying the full delta.
func (l *Ledger) Grant(ctx context.Context, userID, displayName string, amount int64) (Result, error) {
	if userID == "" {
		return Result{}, errEmptyUser
	}
	if amount <= 0 {
		return Result{Source: SourceGrant}, errNonPositiveGrant
	}
	unlock := l.locks.Lock(userID)
	defer unlock()

	return l.apply(ctx, SourceGrant, userID, displayName, func(xp int64) (int64, error) {
		if amount > math.MaxInt64-xp {
			return 0, errOverflow
		}
		return xp + amount, nil
	})
}

// Correct sets a user's XP to an absolute value. It is the only operation that
// can lower XP, so the reported change may point downward.
func (l *Ledger) Correct(ctx context.Context, userID, displayName string, xp int64) (Result, error) {
	if userID == "" {
		return Result{}, errEmptyUser
	}
	if xp < 0 {
		return Result{Source: SourceCorrection}, errNegativeXP
	}
	unlock := l.locks.Lock(userID)
	defer unlock()

	return l.apply(ctx, SourceCorrection, userID, displayName, func(int64) (int64, error) {
		return xp, nil
	})
}

// Get returns the stored progress of userID.
func (l *Ledger) Get(ctx context.Context, userID string) (model.UserProgress, error) {
	return l.store.GetProgress(ctx, userID)
}

// apply loads, mutates and persists one record. Callers hold the user lock.
func (l *Ledger) apply(ctx context.Context, src Source, userID, displayName string, next func(int64) (int64, error)) (Result, error) {
	cur, err := l.store.GetProgress(ctx, userID)
	switch {
	case errors.Is(err, model.ErrNotFound):
		cur = model.UserProgress{UserID: userID, Level: 1}
	case err != nil:
		return Result{Source: src}, model.PersistenceError("load progress", err)
	}

	xp, err := next(cur.XP)
	if err != nil {
		return Result{Source: src}, err
	}

	updated := model.UserProgress{
		UserID:   userID,
		XP:       xp,
		Level:    progression.LevelFor(xp),
		Username: cur.Username,
	}
	if displayName != "" {
		updated.Username = displayName
	}

	if err := l.store.SaveProgress(ctx, updated); err != nil {
		l.log.Error(ctx, "failed to persist progress",
			logger.String("user_id", userID),
			logger.String("source", string(src)),
			logger.Error(err))
		return Result{Source: src}, model.PersistenceError("save progress", err)
	}

	res := Result{Source: src, Awarded: true, Gain: xp - cur.XP, Progress: updated}
	oldLevel := max(cur.Level, 1)
	if updated.Level != oldLevel {
		res.Change = &model.LevelChange{
			UserID:      userID,
			DisplayName: updated.Username,
			OldLevel:    oldLevel,
			NewLevel:    updated.Level,
			XP:          xp,
		}
	}
	return res, nil
}

// claim checks the cooldown and records now as the last award in one step.
// It returns the previous award time so a failed write can restore it.
func (l *Ledger) claim(userID string, now time.Time) (prev time.Time, hadPrev, ok bool) {
	l.cdMu.Lock()
	defer l.cdMu.Unlock()
	prev, hadPrev = l.lastAward[userID]
	if hadPrev && now.Sub(prev) < l.cooldown {
		return prev, hadPrev, false
	}
	l.lastAward[userID] = now
	return prev, hadPrev, true
}

func (l *Ledger) release(userID string, prev time.Time, hadPrev bool) {
	l.cdMu.Lock()
	defer l.cdMu.Unlock()
	if hadPrev {
		l.lastAward[userID] = prev
		return
	}
	delete(l.lastAward, userID)
}

// PruneCooldowns forgets award times that can no longer gate anything and
// returns how many were removed.
func (l *Ledger) PruneCooldowns(now time.Time) int {
	l.cdMu.Lock()
	defer l.cdMu.Unlock()
	removed := 0
	for id, at := range l.lastAward {
		if now.Sub(at) >= l.cooldown {
			delete(l.lastAward, id)
			removed++
		}
	}
	return removed
}

// TrackedCooldowns returns the number of users inside the cooldown table.
func (l *Ledger) TrackedCooldowns() int {
	l.cdMu.Lock()
	defer l.cdMu.Unlock()
	return len(l.lastAward)
}
