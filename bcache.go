package bcache

import (
	"context"
	"fmt"
	"time"

	"github.com/hupe1980/bcache/device"
	"github.com/hupe1980/bcache/internal/lru"
	"github.com/hupe1980/bcache/internal/sleeplock"
	"github.com/hupe1980/bcache/internal/stripe"
	"github.com/hupe1980/bcache/resource"
)

// BlockSize is the size in bytes of every cached block.
const BlockSize = device.BlockSize

// Cache is a fixed pool of block buffers. It is safe for concurrent use.
type Cache struct {
	devices   *device.Table
	numShards int

	slots []slot
	lists *lru.Lists
	locks *stripe.Set

	logger  *Logger
	metrics MetricsCollector
	rc      *resource.Controller
	memory  int64
}

// New creates a cache over the given device table. All buffers start
// unassigned in shard 0.
func New(devices *device.Table, optFns ...Option) (*Cache, error) {
	opts := options{
		numBuffers: DefaultNumBuffers,
		numShards:  DefaultNumShards,
	}

	for _, fn := range optFns {
		fn(&opts)
	}

	if opts.numBuffers < 1 {
		return nil, &ConfigError{Field: "NumBuffers", Value: opts.numBuffers}
	}
	if opts.numShards < 1 {
		return nil, &ConfigError{Field: "NumShards", Value: opts.numShards}
	}
	if devices == nil {
		devices = device.NewTable()
	}
	if opts.logger == nil {
		opts.logger = NoopLogger()
	}
	if opts.metricsCollector == nil {
		opts.metricsCollector = NoopMetricsCollector{}
	}

	memory := int64(opts.numBuffers) * BlockSize
	if err := opts.rc.TryAcquireMemory(memory); err != nil {
		return nil, fmt.Errorf("bcache: reserve %d bytes for %d buffers: %w", memory, opts.numBuffers, err)
	}

	c := &Cache{
		devices:   devices,
		numShards: opts.numShards,
		slots:     make([]slot, opts.numBuffers),
		lists:     lru.New(opts.numBuffers, opts.numShards),
		locks:     stripe.New(opts.numShards),
		logger:    opts.logger,
		metrics:   opts.metricsCollector,
		rc:        opts.rc,
		memory:    memory,
	}

	arena := make([]byte, memory)
	for i := range c.slots {
		off := i * BlockSize
		c.slots[i] = slot{
			dev:  device.NoDevice,
			lock: sleeplock.New[Buf](),
			data: arena[off : off+BlockSize : off+BlockSize],
		}
		// Slot 0 ends up at the tail and is recycled first.
		c.lists.PushFront(0, i)
	}

	return c, nil
}

// NumBuffers returns the pool size.
func (c *Cache) NumBuffers() int { return len(c.slots) }

// NumShards returns the shard count.
func (c *Cache) NumShards() int { return c.numShards }

// Read returns a locked buffer holding block blockno of device dev, reading
// it from the device unless a valid copy is cached. The caller must pass the
// buffer to Release when done.
//
// ctx only bounds the device read; waiting for the buffer itself is not
// cancellable. If the device read fails the buffer is released and the
// error returned.
func (c *Cache) Read(ctx context.Context, dev, blockno uint32) (*Buf, error) {
	if dev == device.NoDevice {
		return nil, fmt.Errorf("bcache: read block %d: %w", blockno, device.ErrReservedDevice)
	}

	start := time.Now()

	b := c.get(ctx, dev, blockno)
	s := b.slot()

	hit := s.valid
	if !hit {
		if err := device.ReadWrite(ctx, c.devices, dev, blockno, s.data, false); err != nil {
			c.Release(b)
			c.metrics.RecordRead(false, time.Since(start), err)
			c.logger.LogRead(ctx, dev, blockno, false, err)
			return nil, fmt.Errorf("bcache: read dev %d block %d: %w", dev, blockno, err)
		}
		s.valid = true
	}

	c.metrics.RecordRead(hit, time.Since(start), nil)
	c.logger.LogRead(ctx, dev, blockno, hit, nil)
	return b, nil
}

// Write persists the payload of b to its device. The caller must hold b.
// Write does not change the buffer's reference count or recency.
func (c *Cache) Write(ctx context.Context, b *Buf) error {
	s := c.held(ctx, b, "bwrite")

	start := time.Now()
	err := device.ReadWrite(ctx, c.devices, b.dev, b.blockno, s.data, true)
	c.metrics.RecordWrite(time.Since(start), err)
	c.logger.LogWrite(ctx, b.dev, b.blockno, err)
	if err != nil {
		return fmt.Errorf("bcache: write dev %d block %d: %w", b.dev, b.blockno, err)
	}
	return nil
}

// Release gives up b. Once its reference count drops to zero the buffer
// becomes the most recently used of its shard and may be recycled. b must
// not be used afterwards.
func (c *Cache) Release(b *Buf) {
	s := c.held(context.Background(), b, "brelse")
	if !s.lock.Release(b) {
		c.fault(context.Background(), "brelse", ErrNotHeld)
	}

	key := c.shardOf(b.blockno)
	c.locks.Lock(key)
	s.refcnt--
	if s.refcnt == 0 {
		c.lists.MoveToFront(b.idx)
	}
	c.locks.Unlock(key)
}

// Pin takes an extra reference on the buffer of b, keeping it resident after
// b is released. b need not be held, but its block must still be referenced.
func (c *Cache) Pin(b *Buf) {
	s, key := c.pinned(b, "bpin", ErrNotHeld)
	s.refcnt++
	c.locks.Unlock(key)
}

// Unpin drops a reference taken by Pin. Dropping the last reference does not
// change the buffer's recency.
func (c *Cache) Unpin(b *Buf) {
	s, key := c.pinned(b, "bunpin", ErrNegativeRef)
	s.refcnt--
	c.locks.Unlock(key)
}

// pinned locks the shard of b and returns its slot, faulting if the slot no
// longer holds b's block, or with unref if it is unreferenced. The shard
// stays locked on return.
func (c *Cache) pinned(b *Buf, op string, unref error) (*slot, int) {
	if b == nil || b.c != c {
		c.fault(context.Background(), op, ErrNotHeld)
	}

	key := c.shardOf(b.blockno)
	s := b.slot()

	c.locks.Lock(key)
	switch {
	case c.lists.Owner(b.idx) != key || s.dev != b.dev || s.blockno != b.blockno:
		c.locks.Unlock(key)
		c.fault(context.Background(), op, ErrNotHeld)
	case s.refcnt <= 0:
		c.locks.Unlock(key)
		c.fault(context.Background(), op, unref)
	}
	return s, key
}

// held returns the slot of b, faulting unless b holds its exclusive lock.
func (c *Cache) held(ctx context.Context, b *Buf, op string) *slot {
	if b == nil || b.c != c || !b.slot().lock.Holding(b) {
		c.fault(ctx, op, ErrNotHeld)
	}
	return b.slot()
}

// fault reports and raises an unrecoverable fault. No shard lock may be held.
func (c *Cache) fault(ctx context.Context, op string, err error) {
	f := &Fault{Op: op, Err: err}
	c.logger.LogFault(ctx, f)
	c.metrics.RecordFault(op)
	panic(f)
}

// Close returns the pool memory to the resource controller. The cache must
// not be used afterwards.
func (c *Cache) Close() error {
	if c == nil || c.memory == 0 {
		return nil
	}
	c.rc.ReleaseMemory(c.memory)
	c.memory = 0
	return nil
}
