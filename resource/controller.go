// Package resource provides the execution-context controller that bounds
// worker parallelism and serialization IO for index build and persistence.
//
// Index training fans work out across worker slots; entering a single-worker
// scope narrows the slot count to one for the duration of a critical section
// (training, serialization) and restores it on release. The controller is
// per-instance state, so two indexes building concurrently do not interfere
// with each other's worker budget.
package resource

import (
	"context"
	"runtime"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MaxWorkers is the number of concurrent workers available to training
	// and search fan-out. If 0, defaults to GOMAXPROCS.
	MaxWorkers int64

	// IOLimitBytesPerSec is the maximum IO throughput for serialization.
	// If 0, unlimited.
	IOLimitBytesPerSec int64
}

// Controller manages worker slots and serialization IO.
// A nil Controller is valid and applies no limits.
type Controller struct {
	maxWorkers int64
	workers    *semaphore.Weighted
	ioLimiter  *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = int64(runtime.GOMAXPROCS(0))
	}

	c := &Controller{
		maxWorkers: cfg.MaxWorkers,
		workers:    semaphore.NewWeighted(cfg.MaxWorkers),
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// MaxWorkers returns the configured worker slot count.
func (c *Controller) MaxWorkers() int {
	if c == nil {
		return runtime.GOMAXPROCS(0)
	}
	return int(c.maxWorkers)
}

// AcquireWorker blocks until a worker slot is available or ctx is canceled.
func (c *Controller) AcquireWorker(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.workers.Acquire(ctx, 1)
}

// ReleaseWorker returns a worker slot.
func (c *Controller) ReleaseWorker() {
	if c == nil {
		return
	}
	c.workers.Release(1)
}

// SingleWorker narrows the controller to one worker slot by holding all but
// one permit. The returned release func restores the previous capacity; it is
// safe to call exactly once and must be called on every exit path.
//
// Nested single-worker scopes deadlock by construction; the intended
// granularity is one build or one save/load call.
func (c *Controller) SingleWorker(ctx context.Context) (release func(), err error) {
	if c == nil {
		return func() {}, nil
	}
	held := c.maxWorkers - 1
	if held <= 0 {
		return func() {}, nil
	}
	if err := c.workers.Acquire(ctx, held); err != nil {
		return nil, err
	}
	return func() { c.workers.Release(held) }, nil
}

// WaitIO reserves n bytes of serialization IO budget, blocking as needed.
func (c *Controller) WaitIO(ctx context.Context, n int) error {
	if c == nil || c.ioLimiter == nil || n <= 0 {
		return nil
	}
	burst := c.ioLimiter.Burst()
	for n > 0 {
		chunk := n
		if chunk > burst {
			chunk = burst
		}
		if err := c.ioLimiter.WaitN(ctx, chunk); err != nil {
			return err
		}
		n -= chunk
	}
	return nil
}
