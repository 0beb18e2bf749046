package replay

import (
	"context"
	"fmt"
	"time"

	"github.com/okian/xpboard/pkg/logger"
)

// Run generates events, submits them, waits cfg.Settle and verifies the
// read views.
func Run(ctx context.Context, cfg Config) (Stats, error) {
	stats := Stats{StartTime: time.Now()}
	if err := cfg.normalize(); err != nil {
		return stats, err
	}
	log := logger.Get().Named("replay")
	log.Info(ctx, "starting replay",
		logger.String("base_url", cfg.BaseURL),
		logger.Int("users", cfg.Users),
		logger.Int("messages_per_user", cfg.MessagesPerUser),
		logger.Int("workers", cfg.Workers))

	c, err := newClient(&cfg)
	if err != nil {
		return stats, err
	}
	if err := c.healthy(ctx); err != nil {
		return stats, fmt.Errorf("service health check failed: %w", err)
	}

	events := generateEvents(&cfg, time.Now().UTC())
	stats.Generated = len(events)
	submitEvents(ctx, c, &cfg, events, &stats)

	if cfg.Settle > 0 {
		select {
		case <-ctx.Done():
			return stats, ctx.Err()
		case <-time.After(cfg.Settle):
		}
	}

	if err := verify(ctx, c, &cfg, &stats); err != nil {
		return stats, err
	}

	stats.Duration = time.Since(stats.StartTime)
	var perSecond float64
	if stats.Duration > 0 {
		perSecond = float64(stats.Submitted) / stats.Duration.Seconds()
	}
	log.Info(ctx, "replay completed",
		logger.Int("generated", stats.Generated),
		logger.Int("submitted", stats.Submitted),
		logger.Int("verified", stats.Verified),
		logger.Duration("duration", stats.Duration),
		logger.Float64("events_per_second", perSecond))
	return stats, nil
}
