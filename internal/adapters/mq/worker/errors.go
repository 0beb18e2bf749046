package worker

import "errors"

// Sentinel kinds for dispatch errors.
var (
	ErrStopped   = errors.New("worker pool stopped")
	ErrQueueFull = errors.New("shard queue full")
	ErrNoKey     = errors.New("event has no serialization key")
)
