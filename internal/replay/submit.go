package replay

import (
	"context"
	"sync"
	"sync/atomic"

	service "github.com/okian/xpboard/internal/app"
	"github.com/okian/xpboard/internal/domain/model"
	"github.com/okian/xpboard/pkg/logger"
)

// submitEvents posts events with cfg.Workers concurrent submitters.
func submitEvents(ctx context.Context, c *client, cfg *Config, events []model.GatewayEvent, stats *Stats) {
	log := logger.Get().Named("replay")
	log.Info(ctx, "submitting events", logger.Int("events", len(events)), logger.Int("workers", cfg.Workers))

	var accepted, duplicate, filtered, failed, submitted atomic.Int64
	ch := make(chan model.GatewayEvent, cfg.Workers*2)
	var wg sync.WaitGroup

	for i := 0; i < cfg.Workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for e := range ch {
				status, err := c.postEvent(ctx, e)
				submitted.Add(1)
				switch {
				case err != nil:
					failed.Add(1)
					if cfg.Verbose {
						log.Warn(ctx, "submit failed", logger.String("event_id", e.ID), logger.Error(err))
					}
				case status == string(service.Accepted):
					accepted.Add(1)
				case status == string(service.Duplicate):
					duplicate.Add(1)
				case status == string(service.Filtered):
					filtered.Add(1)
				}
			}
		}()
	}

	func() {
		defer close(ch)
		for _, e := range events {
			select {
			case <-ctx.Done():
				return
			case ch <- e:
			}
		}
	}()
	wg.Wait()

	stats.Submitted = int(submitted.Load())
	stats.Accepted = int(accepted.Load())
	stats.Duplicate = int(duplicate.Load())
	stats.Filtered = int(filtered.Load())
	stats.Failed = int(failed.Load())

	log.Info(ctx, "event submission completed",
		logger.Int("accepted", stats.Accepted),
		logger.Int("duplicate", stats.Duplicate),
		logger.Int("filtered", stats.Filtered),
		logger.Int("failed", stats.Failed))
}
