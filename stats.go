package bcache

import (
	"errors"
	"fmt"

	"github.com/hupe1980/bcache/device"
)

// Stats is a snapshot of pool occupancy.
type Stats struct {
	NumBuffers int
	NumShards  int
	// Referenced counts buffers with a non-zero reference count.
	Referenced int
	// Free counts unreferenced buffers, assigned or not.
	Free int
	// Unassigned counts buffers that never held a block.
	Unassigned int
}

// ShardStats describes one shard.
type ShardStats struct {
	Shard      int
	Len        int
	Referenced int
	Free       int
}

// Stats returns pool-wide occupancy counts.
func (c *Cache) Stats() Stats {
	st := Stats{
		NumBuffers: len(c.slots),
		NumShards:  c.numShards,
	}

	c.locks.Each(func(shard int) {
		for i := range c.lists.All(shard) {
			s := &c.slots[i]
			if s.refcnt > 0 {
				st.Referenced++
			} else {
				st.Free++
			}
			if s.dev == device.NoDevice {
				st.Unassigned++
			}
		}
	})

	return st
}

// ShardStats returns per-shard statistics.
func (c *Cache) ShardStats() []ShardStats {
	stats := make([]ShardStats, c.numShards)

	c.locks.Each(func(shard int) {
		st := ShardStats{Shard: shard, Len: c.lists.Len(shard)}
		for i := range c.lists.All(shard) {
			if c.slots[i].refcnt > 0 {
				st.Referenced++
			} else {
				st.Free++
			}
		}
		stats[shard] = st
	})

	return stats
}

// ErrCorrupt is wrapped by the error Check returns.
var ErrCorrupt = errors.New("cache corrupt")

type identity struct {
	dev, blockno uint32
}

// Check verifies the structural invariants of the pool: every buffer is in
// exactly one shard, assigned buffers sit in the shard of their block, no
// two buffers hold the same block and no reference count is negative.
// It returns nil or an error wrapping ErrCorrupt describing the first
// violation found.
func (c *Cache) Check() error {
	var (
		err  error
		seen = make([]bool, len(c.slots))
		ids  = make(map[identity]int, len(c.slots))
	)

	fail := func(format string, args ...any) {
		if err == nil {
			err = fmt.Errorf("%w: %s", ErrCorrupt, fmt.Sprintf(format, args...))
		}
	}

	c.locks.Each(func(shard int) {
		n := 0
		for i := range c.lists.All(shard) {
			n++
			if seen[i] {
				fail("buffer %d linked twice", i)
				continue
			}
			seen[i] = true

			s := &c.slots[i]
			if s.refcnt < 0 {
				fail("buffer %d has reference count %d", i, s.refcnt)
			}
			if s.dev == device.NoDevice {
				continue
			}
			if home := c.shardOf(s.blockno); home != shard {
				fail("buffer %d for block %d in shard %d, want %d", i, s.blockno, shard, home)
			}
			id := identity{s.dev, s.blockno}
			if j, dup := ids[id]; dup {
				fail("buffers %d and %d both hold dev %d block %d", j, i, s.dev, s.blockno)
			}
			ids[id] = i
		}
		if n != c.lists.Len(shard) {
			fail("shard %d has %d buffers, length says %d", shard, n, c.lists.Len(shard))
		}
	})

	for i, ok := range seen {
		if !ok {
			fail("buffer %d is in no shard", i)
			break
		}
	}

	return err
}
