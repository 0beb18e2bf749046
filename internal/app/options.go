package service

import (
	"time"

	"github.com/okian/xpboard/internal/adapters/repository"
	"github.com/okian/xpboard/pkg/logger"
)

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithStore sets the backing store. The in-memory store is used otherwise.
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithWorkerCount sets the number of dispatcher shards.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithQueueSize sets the capacity of each shard queue.
func WithQueueSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.queueSize = size
		}
	}
}

// WithDedupeSize sets how many gateway event ids are remembered.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithCooldown sets the per-user message cooldown.
func WithCooldown(d time.Duration) Option {
	return func(s *Service) {
		if d > 0 {
			s.cooldown = d
		}
	}
}

// WithGainPolicy sets the message XP formula parameters.
func WithGainPolicy(perChar float64, minGain, maxGain int64) Option {
	return func(s *Service) {
		if perChar > 0 && minGain > 0 && maxGain >= minGain {
			s.perChar, s.minGain, s.maxGain = perChar, minGain, maxGain
		}
	}
}

// WithJitter replaces the random message jitter. Tests use it for determinism.
func WithJitter(fn func() int64) Option {
	return func(s *Service) {
		s.jitter = fn
	}
}

// WithPruneSchedule sets the cron spec of the cooldown pruning job.
func WithPruneSchedule(spec string) Option {
	return func(s *Service) {
		if spec != "" {
			s.pruneSchedule = spec
		}
	}
}

// WithMaxLeaderboard caps the leaderboard size callers may request.
func WithMaxLeaderboard(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxLeaderboard = n
		}
	}
}

// WithRoleMutator sets the collaborator that grants and revokes roles.
func WithRoleMutator(m RoleMutator) Option {
	return func(s *Service) {
		s.mutator = m
	}
}

// WithPublisher sets the collaborator that creates and edits promoted posts.
func WithPublisher(p Publisher) Option {
	return func(s *Service) {
		s.publisher = p
	}
}

// WithAnnouncer sets the collaborator that announces level-ups.
func WithAnnouncer(a Announcer) Option {
	return func(s *Service) {
		s.announcer = a
	}
}

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}
