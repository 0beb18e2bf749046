// Package settings owns the mutable configuration shared by the leveling and
// starboard components.
package settings

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/pkg/logger"
)

// Persister loads and saves the configuration record.
type Persister interface {
	// LoadSettings returns an error matching model.ErrNotFound when nothing was saved yet.
	LoadSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error
}

// Store holds the current configuration. Readers get copies; every mutator
// edits a copy, persists it and only then swaps it in, so a failed write
// leaves the visible configuration untouched.
type Store struct {
	persist Persister
	log     logger.Logger

	writeMu sync.Mutex // serializes mutators
	mu      sync.RWMutex
	cur     model.Settings
}

// Option applies a configuration option to the Store.
type Option func(*Store)

// WithLogger sets the logger.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithDefaults replaces the configuration used until Load finds a saved one.
func WithDefaults(defaults model.Settings) Option {
	return func(s *Store) {
		s.cur = defaults.Clone()
	}
}

// New constructs a Store holding the default configuration.
func New(p Persister, opts ...Option) *Store {
	s := &Store{
		persist: p,
		log:     logger.Get().Named("settings"),
		cur:     model.DefaultSettings(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Load replaces the in-memory configuration with the persisted one. A missing
// record keeps the defaults.
func (s *Store) Load(ctx context.Context) error {
	loaded, err := s.persist.LoadSettings(ctx)
	if errors.Is(err, model.ErrNotFound) {
		s.log.Info(ctx, "no saved settings, using defaults")
		return nil
	}
	if err != nil {
		return model.PersistenceError("load settings", err)
	}
	normalize(&loaded)
	s.mu.Lock()
	s.cur = loaded
	s.mu.Unlock()
	return nil
}

func normalize(st *model.Settings) {
	*st = st.Clone()
	if st.Starboard.Emoji == "" {
		st.Starboard.Emoji = model.DefaultStarEmoji
	}
	if st.Starboard.Threshold < 1 {
		st.Starboard.Threshold = model.DefaultStarboardConfig().Threshold
	}
}

// Snapshot returns a copy of the whole configuration.
func (s *Store) Snapshot() model.Settings {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Clone()
}

// IsIgnored reports whether channelID is exempt from XP accrual.
func (s *Store) IsIgnored(channelID string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.IsIgnored(channelID)
}

// Starboard returns the starboard configuration.
func (s *Store) Starboard() model.StarboardConfig {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.cur.Starboard
}

// LevelRoles returns a copy of the level to role mapping.
func (s *Store) LevelRoles() map[int]string {
	return s.Snapshot().LevelRoles
}

// mutate applies fn to a copy, persists it and publishes it.
func (s *Store) mutate(ctx context.Context, op string, fn func(*model.Settings) error) (model.Settings, error) {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	next := s.Snapshot()
	if err := fn(&next); err != nil {
		return model.Settings{}, err
	}
	if err := s.persist.SaveSettings(ctx, next); err != nil {
		s.log.Error(ctx, "failed to persist settings", logger.String("op", op), logger.Error(err))
		return model.Settings{}, model.PersistenceError("save settings", err)
	}
	s.mu.Lock()
	s.cur = next
	s.mu.Unlock()
	s.log.Info(ctx, "settings updated", logger.String("op", op))
	return next.Clone(), nil
}

func defaultRoleName(level int) string {
	return fmt.Sprintf("Level %d Role", level)
}

// AddLevelRole maps level to roleID. Fails with model.ErrAlreadyExists when the
// level is already mapped. An empty name keeps an existing label for the role
// or falls back to "Level N Role".
func (s *Store) AddLevelRole(ctx context.Context, level int, roleID, name string) error {
	roleID = strings.TrimSpace(roleID)
	if level < 1 {
		return fmt.Errorf("%w: level must be at least 1", model.ErrInvalidArgument)
	}
	if roleID == "" {
		return fmt.Errorf("%w: role id is required", model.ErrInvalidArgument)
	}
	_, err := s.mutate(ctx, "add_level_role", func(st *model.Settings) error {
		if _, ok := st.LevelRoles[level]; ok {
			return fmt.Errorf("level %d: %w", level, model.ErrAlreadyExists)
		}
		st.LevelRoles[level] = roleID
		setRoleName(st, roleID, name, level)
		return nil
	})
	return err
}

// UpdateLevelRole changes the role and/or label of a mapped level. An empty
// roleID keeps the current role. A role no longer referenced by any level
// loses its label.
func (s *Store) UpdateLevelRole(ctx context.Context, level int, roleID, name string) error {
	roleID = strings.TrimSpace(roleID)
	_, err := s.mutate(ctx, "update_level_role", func(st *model.Settings) error {
		old, ok := st.LevelRoles[level]
		if !ok {
			return fmt.Errorf("level %d: %w", level, model.ErrNotFound)
		}
		target := old
		if roleID != "" {
			target = roleID
		}
		st.LevelRoles[level] = target
		if target != old && !st.ReferencesRole(old) {
			delete(st.RoleNames, old)
		}
		setRoleName(st, target, name, level)
		return nil
	})
	return err
}

// RemoveLevelRole unmaps level and returns the role it pointed to.
func (s *Store) RemoveLevelRole(ctx context.Context, level int) (string, error) {
	var removed string
	_, err := s.mutate(ctx, "remove_level_role", func(st *model.Settings) error {
		roleID, ok := st.LevelRoles[level]
		if !ok {
			return fmt.Errorf("level %d: %w", level, model.ErrNotFound)
		}
		delete(st.LevelRoles, level)
		if !st.ReferencesRole(roleID) {
			delete(st.RoleNames, roleID)
		}
		removed = roleID
		return nil
	})
	return removed, err
}

func setRoleName(st *model.Settings, roleID, name string, level int) {
	if name = strings.TrimSpace(name); name != "" {
		st.RoleNames[roleID] = name
		return
	}
	if _, ok := st.RoleNames[roleID]; !ok {
		st.RoleNames[roleID] = defaultRoleName(level)
	}
}

// AddIgnoredChannel exempts channelID from XP accrual.
func (s *Store) AddIgnoredChannel(ctx context.Context, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	if channelID == "" {
		return fmt.Errorf("%w: channel id is required", model.ErrInvalidArgument)
	}
	_, err := s.mutate(ctx, "add_ignored_channel", func(st *model.Settings) error {
		if slices.Contains(st.IgnoredChannels, channelID) {
			return fmt.Errorf("channel %s: %w", channelID, model.ErrAlreadyExists)
		}
		st.IgnoredChannels = append(st.IgnoredChannels, channelID)
		return nil
	})
	return err
}

// RemoveIgnoredChannel lets channelID earn XP again.
func (s *Store) RemoveIgnoredChannel(ctx context.Context, channelID string) error {
	channelID = strings.TrimSpace(channelID)
	_, err := s.mutate(ctx, "remove_ignored_channel", func(st *model.Settings) error {
		idx := slices.Index(st.IgnoredChannels, channelID)
		if idx < 0 {
			return fmt.Errorf("channel %s: %w", channelID, model.ErrNotFound)
		}
		st.IgnoredChannels = slices.Delete(st.IgnoredChannels, idx, idx+1)
		return nil
	})
	return err
}

// StarboardPatch is a partial starboard update; nil fields are left as is.
type StarboardPatch struct {
	Enabled   *bool   `json:"enabled,omitempty"`
	ChannelID *string `json:"channel_id,omitempty"`
	Emoji     *string `json:"emoji,omitempty"`
	Threshold *int    `json:"threshold,omitempty"`
}

// UpdateStarboard applies patch and returns the resulting configuration.
func (s *Store) UpdateStarboard(ctx context.Context, patch StarboardPatch) (model.StarboardConfig, error) {
	if patch.Threshold != nil && *patch.Threshold < 1 {
		return model.StarboardConfig{}, fmt.Errorf("%w: threshold must be at least 1", model.ErrInvalidArgument)
	}
	if patch.Emoji != nil && strings.TrimSpace(*patch.Emoji) == "" {
		return model.StarboardConfig{}, fmt.Errorf("%w: emoji must not be empty", model.ErrInvalidArgument)
	}
	next, err := s.mutate(ctx, "update_starboard", func(st *model.Settings) error {
		if patch.Enabled != nil {
			st.Starboard.Enabled = *patch.Enabled
		}
		if patch.ChannelID != nil {
			st.Starboard.ChannelID = strings.TrimSpace(*patch.ChannelID)
		}
		if patch.Emoji != nil {
			st.Starboard.Emoji = strings.TrimSpace(*patch.Emoji)
		}
		if patch.Threshold != nil {
			st.Starboard.Threshold = *patch.Threshold
		}
		return nil
	})
	if err != nil {
		return model.StarboardConfig{}, err
	}
	return next.Starboard, nil
}
