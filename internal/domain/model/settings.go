package model

import (
	"fmt"
	"maps"
	"slices"
)

// Settings is the mutable configuration record shared by the leveling and
// starboard components. The JSON shape is the persisted configuration record.
type Settings struct {
	Starboard       StarboardConfig   `json:"starboard"`
	LevelRoles      map[int]string    `json:"level_roles"`
	RoleNames       map[string]string `json:"role_names"`
	IgnoredChannels []string          `json:"ignored_channels"`
}

// DefaultSettings returns an empty configuration with the default starboard.
func DefaultSettings() Settings {
	return Settings{
		Starboard:       DefaultStarboardConfig(),
		LevelRoles:      map[int]string{},
		RoleNames:       map[string]string{},
		IgnoredChannels: []string{},
	}
}

// Clone returns a deep copy; callers may mutate the result freely.
func (s Settings) Clone() Settings {
	out := Settings{
		Starboard:       s.Starboard,
		LevelRoles:      maps.Clone(s.LevelRoles),
		RoleNames:       maps.Clone(s.RoleNames),
		IgnoredChannels: slices.Clone(s.IgnoredChannels),
	}
	if out.LevelRoles == nil {
		out.LevelRoles = map[int]string{}
	}
	if out.RoleNames == nil {
		out.RoleNames = map[string]string{}
	}
	if out.IgnoredChannels == nil {
		out.IgnoredChannels = []string{}
	}
	return out
}

// IsIgnored reports whether channelID is exempt from XP accrual.
func (s Settings) IsIgnored(channelID string) bool {
	return slices.Contains(s.IgnoredChannels, channelID)
}

// ReferencesRole reports whether any level still maps to roleID.
func (s Settings) ReferencesRole(roleID string) bool {
	for _, id := range s.LevelRoles {
		if id == roleID {
			return true
		}
	}
	return false
}

// RoleName returns the display label for roleID.
func (s Settings) RoleName(roleID string) string {
	if name, ok := s.RoleNames[roleID]; ok {
		return name
	}
	return fmt.Sprintf("Role ID: %s", roleID)
}

// SortedLevels returns the configured levels in ascending order.
func (s Settings) SortedLevels() []int {
	return slices.Sorted(maps.Keys(s.LevelRoles))
}
