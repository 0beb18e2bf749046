package repository

import "github.com/okian/xpboard/internal/domain/model"

// Option applies a configuration option to the MemoryStore.
type Option func(*MemoryStore)

// WithProgress seeds the store with existing progress records.
func WithProgress(records ...model.UserProgress) Option {
	return func(s *MemoryStore) {
		s.seed = append(s.seed, records...)
	}
}

// WithSettings seeds the configuration record.
func WithSettings(settings model.Settings) Option {
	return func(s *MemoryStore) {
		c := settings.Clone()
		s.settings = &c
	}
}
