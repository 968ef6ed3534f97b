// worker_pool.go: Shared background worker pool
//
// Copyright (c) 2025 AGILira - A. Giordano
// Series: an AGILira library
// SPDX-License-Identifier: MPL-2.0

package pluginhost

import (
	"time"

	"github.com/panjf2000/ants/v2"
)

// DefaultPoolSize is used when HostConfig does not set one.
const DefaultPoolSize = 8

// TaskRunner runs named background tasks. Submission never blocks.
type TaskRunner interface {
	Submit(name string, task func()) error
}

// WorkerPool is the single shared pool for work that must leave the event path:
// simulated input, world lookups and event-triggered restarts.
type WorkerPool struct {
	pool    *ants.Pool
	logger  Logger
	metrics *Metrics
}

// NewWorkerPool creates a non-blocking pool of the given size.
func NewWorkerPool(size int, logger Logger, metrics *Metrics) (*WorkerPool, error) {
	if size <= 0 {
		size = DefaultPoolSize
	}
	logger = NewLogger(logger).With("component", "worker_pool")

	pool, err := ants.NewPool(size,
		ants.WithNonblocking(true),
		ants.WithPanicHandler(func(recovered any) {
			logPanic(logger, "pool_task", recovered)
		}),
	)
	if err != nil {
		return nil, NewPoolCreationError(size, err)
	}
	return &WorkerPool{pool: pool, logger: logger, metrics: metrics}, nil
}

// Submit queues task. A full or closed pool rejects it with POOL_6002.
func (w *WorkerPool) Submit(name string, task func()) error {
	if err := w.pool.Submit(task); err != nil {
		w.logger.Warn("Background task rejected", "task", name, "error", err)
		w.metrics.PoolRejected(name)
		return NewPoolRejectedError(name, err)
	}
	return nil
}

// Running returns the number of tasks currently executing.
func (w *WorkerPool) Running() int { return w.pool.Running() }

// Closed reports whether the pool has been released.
func (w *WorkerPool) Closed() bool { return w.pool.IsClosed() }

// Close waits up to timeout for running tasks, then releases the pool.
func (w *WorkerPool) Close(timeout time.Duration) error {
	if w.pool.IsClosed() {
		return nil
	}
	return w.pool.ReleaseTimeout(timeout)
}
