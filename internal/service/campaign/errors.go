package campaign

import "errors"

// Sentinel errors for the worker pool.
var (
	ErrQueueFull   = errors.New("send queue is full")
	ErrPoolStopped = errors.New("send pool is stopped")
)
