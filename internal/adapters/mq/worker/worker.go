// Package worker runs gateway events through a handler, one goroutine per
// shard. Events with the same key always land on the same shard, so they are
// handled one at a time and in arrival order; different keys spread across
// shards and proceed independently.
package worker

import (
	"context"
	"fmt"
	"runtime"
	"strconv"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/okian/xpboard/internal/adapters/mq/queue"
	"github.com/okian/xpboard/pkg/logger"
	"github.com/okian/xpboard/pkg/metrics"
)

// Default worker configuration constants.
const (
	defaultShardMultiplier = 4 // multiplier for runtime.NumCPU()
	defaultShardCapacity   = 1024
	poolShutdownTimeout    = 30 * time.Second
)

// Event abstracts what workers read off the queue.
type Event = queue.Event

// Handler processes one event.
type Handler interface {
	Handle(ctx context.Context, e Event) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, e Event) error

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, e Event) error { return f(ctx, e) } //nolint:gocritic // hugeParam

// Queue defines how workers receive events.
type Queue interface {
	Dequeue(ctx context.Context) <-chan Event
}

// InMemoryWorker drains one queue into the handler.
type InMemoryWorker struct {
	queue   Queue
	handler Handler
	name    string
	done    chan struct{}
	logger  logger.Logger
}

// NewInMemoryWorker creates a new worker with configuration options.
func NewInMemoryWorker(q Queue, h Handler, opts ...Option) *InMemoryWorker {
	w := &InMemoryWorker{
		queue:   q,
		handler: h,
		name:    "worker",
		done:    make(chan struct{}),
		logger:  logger.Get().Named("worker"),
	}
	for _, opt := range opts {
		opt(w)
	}
	if w.name != "worker" {
		w.logger = w.logger.Named(w.name)
	}
	return w
}

// Run handles events until the queue is closed and drained or ctx is canceled.
func (w *InMemoryWorker) Run(ctx context.Context) {
	defer close(w.done)

	events := w.queue.Dequeue(ctx)
	for {
		select {
		case <-ctx.Done():
			return
		case event, ok := <-events:
			if !ok {
				return
			}
			if err := w.processEvent(ctx, event); err != nil {
				w.logger.Error(ctx, "error processing event",
					logger.String("event_id", event.ID),
					logger.String("correlation_id", event.CorrelationID),
					logger.Error(err))
			}
		}
	}
}

// Done is closed when Run returns.
func (w *InMemoryWorker) Done() <-chan struct{} { return w.done }

func (w *InMemoryWorker) processEvent(ctx context.Context, event Event) (err error) { //nolint:gocritic // hugeParam
	start := time.Now()
	defer func() {
		metrics.RecordEventLatency(string(event.Kind), float64(time.Since(start).Milliseconds()))
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return w.handler.Handle(ctx, event)
}

// Pool shards events by key onto per-shard queues, each drained by one worker.
type Pool struct {
	shards  []*queue.InMemoryQueue
	workers []*InMemoryWorker
	handler Handler

	shardCapacity int
	logger        logger.Logger

	mu      sync.RWMutex
	started bool
	stopped bool
	cancel  context.CancelFunc
}

// NewPool creates a pool of shardCount shards. A non-positive count uses a
// multiple of the CPU count.
func NewPool(shardCount int, h Handler, opts ...PoolOption) *Pool {
	if shardCount < 1 {
		shardCount = runtime.NumCPU() * defaultShardMultiplier
	}
	p := &Pool{
		handler:       h,
		shardCapacity: defaultShardCapacity,
		logger:        logger.Get().Named("worker-pool"),
	}
	for _, opt := range opts {
		opt(p)
	}

	p.shards = make([]*queue.InMemoryQueue, shardCount)
	p.workers = make([]*InMemoryWorker, shardCount)
	for i := range shardCount {
		p.shards[i] = queue.NewInMemoryQueue(queue.WithCapacity(p.shardCapacity))
		p.workers[i] = NewInMemoryWorker(p.shards[i], h,
			WithName("worker-"+strconv.Itoa(i)),
			WithLogger(p.logger))
	}
	metrics.UpdateWorkerCount(shardCount)
	return p
}

// Start starts one goroutine per shard. Workers do not stop when ctx is
// canceled: they run until Shutdown has closed and drained their queues, so
// every event Submit accepted is handled. Handlers see ctx's values and are
// canceled only when Shutdown times out.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	p.cancel = cancel
	for _, w := range p.workers {
		go w.Run(runCtx)
	}
}

// ShardFor returns the shard index key maps to.
func (p *Pool) ShardFor(key string) int {
	return int(xxhash.Sum64String(key) % uint64(len(p.shards)))
}

// Submit queues e on the shard owning its key.
func (p *Pool) Submit(ctx context.Context, e Event) error { //nolint:gocritic // hugeParam
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stopped {
		return ErrStopped
	}
	key := e.Key()
	if key == "" {
		return ErrNoKey
	}
	if !p.shards[p.ShardFor(key)].Enqueue(ctx, e) {
		if err := ctx.Err(); err != nil {
			return err
		}
		return ErrQueueFull
	}
	metrics.UpdateQueueSize(p.lenLocked())
	return nil
}

// Len returns the number of queued events across all shards.
func (p *Pool) Len() int {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lenLocked()
}

func (p *Pool) lenLocked() int {
	total := 0
	for _, q := range p.shards {
		total += q.Len(context.Background())
	}
	return total
}

// Size returns the number of shards.
func (p *Pool) Size() int { return len(p.shards) }

// Shutdown stops accepting events and waits for queued ones to be handled.
func (p *Pool) Shutdown(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	started, cancel := p.started, p.cancel
	for _, q := range p.shards {
		if err := q.Close(); err != nil {
			p.logger.Error(ctx, "error closing queue", logger.Error(err))
		}
	}
	p.mu.Unlock()

	if !started {
		return nil
	}
	defer cancel()

	shutdownCtx, stop := context.WithTimeout(ctx, poolShutdownTimeout)
	defer stop()
	for i, w := range p.workers {
		select {
		case <-w.Done():
		case <-shutdownCtx.Done():
			p.logger.Warn(ctx, "worker shutdown timed out", logger.Int("worker_id", i))
			return fmt.Errorf("shutdown timed out: %w", shutdownCtx.Err())
		}
	}
	metrics.UpdateQueueSize(0)
	return nil
}
