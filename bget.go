package bcache

import (
	"context"
)

func (c *Cache) shardOf(blockno uint32) int {
	return int(blockno % uint32(c.numShards))
}

// get returns the buffer for (dev, blockno) with its reference count
// incremented and its exclusive lock held by the returned handle.
//
// The shard of blockno is searched for a cached copy, then for a free buffer
// to recycle. Failing both, one free buffer is stolen from another shard.
// Running out of free buffers everywhere is a fault.
func (c *Cache) get(ctx context.Context, dev, blockno uint32) *Buf {
	key := c.shardOf(blockno)

	c.locks.Lock(key)
	idx, ok := c.lookup(key, dev, blockno)
	if !ok {
		idx, ok = c.recycle(key, dev, blockno)
	}
	c.locks.Unlock(key)

	if !ok {
		idx, ok = c.steal(ctx, key, dev, blockno)
		if !ok {
			c.fault(ctx, "bget", ErrNoBuffers)
		}
	}

	b := &Buf{c: c, idx: idx, dev: dev, blockno: blockno}
	c.slots[idx].lock.Acquire(b)
	return b
}

// lookup finds a cached buffer for (dev, blockno) in shard key and takes a
// reference on it. Shard key must be locked.
func (c *Cache) lookup(key int, dev, blockno uint32) (int, bool) {
	for i := range c.lists.All(key) {
		s := &c.slots[i]
		if s.dev == dev && s.blockno == blockno {
			s.refcnt++
			return i, true
		}
	}
	return 0, false
}

// recycle reassigns the least recently released free buffer of shard key to
// (dev, blockno). The previous contents are dropped. Shard key must be locked.
func (c *Cache) recycle(key int, dev, blockno uint32) (int, bool) {
	i, ok := c.freeFromTail(key)
	if !ok {
		return 0, false
	}

	s := &c.slots[i]
	s.dev = dev
	s.blockno = blockno
	s.valid = false
	s.refcnt = 1
	c.metrics.RecordRecycle()
	return i, true
}

// freeFromTail returns the unreferenced buffer closest to the tail of shard
// key. Shard key must be locked.
func (c *Cache) freeFromTail(key int) (int, bool) {
	for i := range c.lists.Backward(key) {
		if c.slots[i].refcnt == 0 {
			return i, true
		}
	}
	return 0, false
}

// steal moves a free buffer from another shard to the head of shard key and
// assigns it to (dev, blockno).
//
// Between the caller dropping shard key and the steal locking it again,
// another goroutine may have cached (dev, blockno) or released a buffer in
// key. The commit therefore repeats the local lookup and recycle before
// touching the victim, and the claim happens under the lock of shard key so
// the moved buffer cannot be taken by anyone else first.
func (c *Cache) steal(ctx context.Context, key int, dev, blockno uint32) (int, bool) {
	var (
		victim int
		from   = -1
		idx    int
	)

	ok := c.locks.Steal(key,
		func(donor int) bool {
			i, ok := c.freeFromTail(donor)
			victim = i
			return ok
		},
		func(donor int) {
			var hit bool
			if idx, hit = c.lookup(key, dev, blockno); hit {
				return
			}
			if _, free := c.freeFromTail(key); !free {
				c.lists.Move(victim, key)
				from = donor
				c.metrics.RecordSteal(donor, key)
			}
			// Shard key has a free buffer now.
			idx, _ = c.recycle(key, dev, blockno)
		},
	)
	if !ok {
		return 0, false
	}

	if from >= 0 {
		c.logger.LogSteal(ctx, from, key, dev, blockno)
	}
	return idx, true
}
