// Package resource bounds the resources a block cache consumes: payload
// memory, device I/O throughput and the number of device operations in
// flight.
//
// A nil *Controller is valid and imposes no limits.
package resource

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the memory limit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits. Zero values mean unlimited.
type Config struct {
	// MemoryLimitBytes is the hard limit for buffer pool memory.
	MemoryLimitBytes int64

	// MaxInflightIO is the maximum number of concurrent device operations.
	MaxInflightIO int64

	// IOLimitBytesPerSec is the maximum device throughput in bytes per second.
	IOLimitBytesPerSec int64
}

// Controller tracks and limits resource usage.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	ioSem      *semaphore.Weighted // nil if unlimited
	ioInflight atomic.Int64

	ioLimiter *rate.Limiter
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.MaxInflightIO > 0 {
		c.ioSem = semaphore.NewWeighted(cfg.MaxInflightIO)
	}

	if cfg.IOLimitBytesPerSec > 0 {
		c.ioLimiter = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}

	return c
}

// TryAcquireMemory reserves memory without blocking.
// Returns ErrMemoryLimitExceeded if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved memory in bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireIO waits for an in-flight slot and for the rate limiter to admit
// bytes. On success the caller must call ReleaseIO.
func (c *Controller) AcquireIO(ctx context.Context, bytes int) error {
	if c == nil {
		return nil
	}

	if c.ioSem != nil {
		if err := c.ioSem.Acquire(ctx, 1); err != nil {
			return err
		}
	}

	if c.ioLimiter != nil {
		if err := c.ioLimiter.WaitN(ctx, bytes); err != nil {
			if c.ioSem != nil {
				c.ioSem.Release(1)
			}
			return err
		}
	}

	c.ioInflight.Add(1)
	return nil
}

// TryAcquireIO is the non-blocking form of AcquireIO.
func (c *Controller) TryAcquireIO(bytes int) bool {
	if c == nil {
		return true
	}

	if c.ioSem != nil && !c.ioSem.TryAcquire(1) {
		return false
	}

	if c.ioLimiter != nil && !c.ioLimiter.AllowN(time.Now(), bytes) {
		if c.ioSem != nil {
			c.ioSem.Release(1)
		}
		return false
	}

	c.ioInflight.Add(1)
	return true
}

// ReleaseIO ends a device operation started with AcquireIO.
func (c *Controller) ReleaseIO() {
	if c == nil {
		return
	}
	if c.ioSem != nil {
		c.ioSem.Release(1)
	}
	c.ioInflight.Add(-1)
}

// InflightIO returns the number of device operations in progress.
func (c *Controller) InflightIO() int64 {
	if c == nil {
		return 0
	}
	return c.ioInflight.Load()
}
