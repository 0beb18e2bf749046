// Package model contains domain records passed between layers.
package model

// UserProgress is the persisted XP record of one user.
// Level always equals progression.LevelFor(XP).
type UserProgress struct {
	UserID   string `json:"-"`
	XP       int64  `json:"xp"`
	Level    int    `json:"level"`
	Username string `json:"username"`
}

// LevelChange describes a level transition produced by the ledger.
// Message and grant paths only ever emit upward changes; admin correction
// may emit a downward one.
type LevelChange struct {
	UserID      string
	DisplayName string
	OldLevel    int
	NewLevel    int
	XP          int64
}

// Delta is the number of levels gained (negative when a correction lowered the level).
func (c LevelChange) Delta() int { return c.NewLevel - c.OldLevel }

// IsLevelUp reports whether the change moved the user up.
func (c LevelChange) IsLevelUp() bool { return c.NewLevel > c.OldLevel }
