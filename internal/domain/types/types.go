// Package types contains common types used across the application
package types

// Entry represents a leaderboard entry
type Entry struct {
	Rank     int    `json:"rank"`
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	XP       int64  `json:"xp"`
	Level    int    `json:"level"`
}

// RankView is a user's position plus progress toward the next level.
type RankView struct {
	Entry
	CurrentLevelXP int64   `json:"current_level_xp"`
	NextLevelXP    int64   `json:"next_level_xp"`
	XPNeeded       int64   `json:"xp_needed"`
	Percent        float64 `json:"percent"`
	MaxLevel       bool    `json:"max_level"`
}
