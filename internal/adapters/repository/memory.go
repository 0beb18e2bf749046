package repository

import (
	"context"
	"errors"
	"sync"

	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/types"
)

// MemoryStore keeps every table in process memory. Progress is additionally
// indexed by a treap so Rank is O(log n) and TopN is O(log n + k).
type MemoryStore struct {
	mu       sync.RWMutex
	root     *node
	users    map[string]model.UserProgress
	stars    map[string]model.StarboardEntry
	settings *model.Settings
	seed     []model.UserProgress
	closed   bool
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore constructs an empty in-memory store.
func NewMemoryStore(opts ...Option) *MemoryStore {
	s := &MemoryStore{
		users: make(map[string]model.UserProgress),
		stars: make(map[string]model.StarboardEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	for _, p := range s.seed {
		s.putLocked(p)
	}
	s.seed = nil
	return s
}

// Close marks the store closed; later calls fail with ErrClosed.
func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	return nil
}

func (s *MemoryStore) GetProgress(ctx context.Context, userID string) (model.UserProgress, error) {
	if err := ctx.Err(); err != nil {
		return model.UserProgress{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.UserProgress{}, ErrClosed
	}
	p, ok := s.users[userID]
	if !ok {
		return model.UserProgress{}, ErrNotFound
	}
	return p, nil
}

func (s *MemoryStore) SaveProgress(ctx context.Context, p model.UserProgress) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.UserID == "" {
		return errors.New("user id is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	s.putLocked(p)
	return nil
}

func (s *MemoryStore) putLocked(p model.UserProgress) {
	if old, ok := s.users[p.UserID]; ok {
		s.root = deleteNode(s.root, old.UserID, old.XP)
	}
	s.users[p.UserID] = p
	s.root = insert(s.root, p.UserID, p.XP)
}

func (s *MemoryStore) Rank(ctx context.Context, userID string) (types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return types.Entry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return types.Entry{}, ErrClosed
	}
	p, ok := s.users[userID]
	if !ok {
		return types.Entry{}, ErrNotFound
	}
	return toEntry(position(s.root, p.UserID, p.XP), p), nil
}

func (s *MemoryStore) TopN(ctx context.Context, n int) ([]types.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if n < 1 {
		return nil, ErrInvalidLimit
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return nil, ErrClosed
	}
	nodes := make([]*node, 0, min(n, len(s.users)))
	collectTopN(s.root, n, &nodes)
	out := make([]types.Entry, 0, len(nodes))
	for i, nd := range nodes {
		out = append(out, toEntry(i+1, s.users[nd.id]))
	}
	return out, nil
}

func (s *MemoryStore) Count(context.Context) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.users)
}

func (s *MemoryStore) GetEntry(ctx context.Context, sourceMessageID string) (model.StarboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.StarboardEntry{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.StarboardEntry{}, ErrClosed
	}
	e, ok := s.stars[sourceMessageID]
	if !ok {
		return model.StarboardEntry{}, ErrNotFound
	}
	return e, nil
}

func (s *MemoryStore) InsertEntry(ctx context.Context, e model.StarboardEntry) (model.StarboardEntry, error) {
	if err := ctx.Err(); err != nil {
		return model.StarboardEntry{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return model.StarboardEntry{}, ErrClosed
	}
	if existing, ok := s.stars[e.SourceMessageID]; ok {
		return existing, ErrAlreadyExists
	}
	s.stars[e.SourceMessageID] = e
	return e, nil
}

func (s *MemoryStore) UpdateStarCount(ctx context.Context, sourceMessageID string, stars int) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	e, ok := s.stars[sourceMessageID]
	if !ok {
		return ErrNotFound
	}
	e.StarCount = stars
	s.stars[sourceMessageID] = e
	return nil
}

func (s *MemoryStore) LoadSettings(ctx context.Context) (model.Settings, error) {
	if err := ctx.Err(); err != nil {
		return model.Settings{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return model.Settings{}, ErrClosed
	}
	if s.settings == nil {
		return model.Settings{}, ErrNotFound
	}
	return s.settings.Clone(), nil
}

func (s *MemoryStore) SaveSettings(ctx context.Context, settings model.Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	c := settings.Clone()
	s.settings = &c
	return nil
}

func toEntry(rank int, p model.UserProgress) types.Entry {
	return types.Entry{
		Rank:     rank,
		UserID:   p.UserID,
		Username: p.Username,
		XP:       p.XP,
		Level:    p.Level,
	}
}
