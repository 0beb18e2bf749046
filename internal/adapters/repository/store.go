// Package repository defines the keyed store contracts and an in-memory store.
package repository

import (
	"context"

	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/internal/domain/types"
)

// ProgressStore persists the user progress table.
type ProgressStore interface {
	// GetProgress returns ErrNotFound for users that never earned XP.
	GetProgress(ctx context.Context, userID string) (model.UserProgress, error)
	// SaveProgress upserts the whole record.
	SaveProgress(ctx context.Context, p model.UserProgress) error

	// Rank returns the position of userID ordered by XP desc, then user id asc.
	// Returns ErrNotFound if the user is unknown.
	Rank(ctx context.Context, userID string) (types.Entry, error)
	// TopN returns the top-N entries in rank order.
	TopN(ctx context.Context, n int) ([]types.Entry, error)
	// Count returns the number of users tracked.
	Count(ctx context.Context) int
}

// StarboardStore persists the starboard table.
type StarboardStore interface {
	GetEntry(ctx context.Context, sourceMessageID string) (model.StarboardEntry, error)
	// InsertEntry stores e only when no entry exists for its source message.
	// When one does, the stored entry is returned together with ErrAlreadyExists.
	InsertEntry(ctx context.Context, e model.StarboardEntry) (model.StarboardEntry, error)
	UpdateStarCount(ctx context.Context, sourceMessageID string, stars int) error
}

// SettingsStore persists the configuration record.
type SettingsStore interface {
	// LoadSettings returns ErrNotFound when nothing was saved yet.
	LoadSettings(ctx context.Context) (model.Settings, error)
	SaveSettings(ctx context.Context, s model.Settings) error
}

// Store bundles every table behind one handle.
type Store interface {
	ProgressStore
	StarboardStore
	SettingsStore
	Close() error
}
