package bcache

import (
	"context"
	"testing"

	"github.com/hupe1980/bcache/device"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestCache(t *testing.T, numBuffers, numShards int) (*Cache, *BasicMetricsCollector) {
	t.Helper()

	devs := device.NewTable()
	require.NoError(t, devs.Register(1, device.NewMemoryDevice(0)))

	metrics := &BasicMetricsCollector{}
	c, err := New(devs,
		WithNumBuffers(numBuffers),
		WithNumShards(numShards),
		WithMetricsCollector(metrics),
	)
	require.NoError(t, err)
	return c, metrics
}

func TestNew_InitialLayout(t *testing.T) {
	c, _ := newTestCache(t, 5, 3)

	var order []int
	for i := range c.lists.Backward(0) {
		order = append(order, i)
	}
	assert.Equal(t, []int{0, 1, 2, 3, 4}, order, "slot 0 at the tail")

	for i := range c.slots {
		assert.Equal(t, device.NoDevice, c.slots[i].dev)
		assert.Len(t, c.slots[i].data, BlockSize)
		assert.Equal(t, BlockSize, cap(c.slots[i].data))
	}
}

func TestSteal_CommitFindsCachedBlock(t *testing.T) {
	c, metrics := newTestCache(t, 3, 2)
	ctx := context.Background()

	// Block 1 is cached, unreferenced, in shard 1.
	b, err := c.Read(ctx, 1, 1)
	require.NoError(t, err)
	cached := b.idx
	c.Release(b)
	require.Equal(t, int64(1), metrics.Steals.Load())

	// A stealer that missed block 1 before it was cached must not create a
	// second buffer for it.
	idx, ok := c.steal(ctx, 1, 1, 1)
	require.True(t, ok)
	assert.Equal(t, cached, idx)
	assert.Equal(t, 1, c.slots[idx].refcnt)
	assert.Equal(t, 1, c.lists.Len(1))
	assert.Equal(t, int64(1), metrics.Steals.Load())

	c.locks.Lock(1)
	c.slots[idx].refcnt--
	c.locks.Unlock(1)
	require.NoError(t, c.Check())
}

func TestSteal_CommitPrefersLocalFreeBuffer(t *testing.T) {
	c, metrics := newTestCache(t, 3, 2)
	ctx := context.Background()

	b, err := c.Read(ctx, 1, 1)
	require.NoError(t, err)
	local := b.idx
	c.Release(b)

	// A buffer became free in shard 1 after the stealer gave up on it.
	idx, ok := c.steal(ctx, 1, 1, 3)
	require.True(t, ok)
	assert.Equal(t, local, idx)
	assert.Equal(t, uint32(3), c.slots[idx].blockno)
	assert.False(t, c.slots[idx].valid)
	assert.Equal(t, 1, c.lists.Len(1))
	assert.Equal(t, int64(1), metrics.Steals.Load())
}

func TestSteal_MovesVictimToHead(t *testing.T) {
	c, metrics := newTestCache(t, 3, 2)

	idx, ok := c.steal(context.Background(), 1, 1, 5)
	require.True(t, ok)

	assert.Equal(t, 0, idx, "tail of the donor")
	assert.Equal(t, 1, c.lists.Owner(idx))
	assert.Equal(t, idx, c.lists.Front(1))
	assert.Equal(t, 2, c.lists.Len(0))
	assert.Equal(t, int64(1), metrics.Steals.Load())
	assert.Equal(t, int64(1), metrics.Recycles.Load())
}

func TestCheck_DetectsCorruption(t *testing.T) {
	tests := []struct {
		name    string
		corrupt func(c *Cache)
		want    string
	}{
		{
			name: "duplicate identity",
			corrupt: func(c *Cache) {
				c.slots[0].dev, c.slots[0].blockno = 1, 0
				c.slots[1].dev, c.slots[1].blockno = 1, 0
			},
			want: "both hold dev 1 block 0",
		},
		{
			name: "wrong shard",
			corrupt: func(c *Cache) {
				c.slots[2].dev, c.slots[2].blockno = 1, 4
			},
			want: "want 1",
		},
		{
			name: "negative reference count",
			corrupt: func(c *Cache) {
				c.slots[3].refcnt = -1
			},
			want: "reference count -1",
		},
		{
			name: "unlinked buffer",
			corrupt: func(c *Cache) {
				c.lists.Remove(1)
			},
			want: "buffer 1 is in no shard",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, _ := newTestCache(t, 4, 3)
			require.NoError(t, c.Check())

			tt.corrupt(c)

			err := c.Check()
			require.ErrorIs(t, err, ErrCorrupt)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFault_ReleasesShardLocks(t *testing.T) {
	c, _ := newTestCache(t, 1, 1)
	ctx := context.Background()

	b, err := c.Read(ctx, 1, 0)
	require.NoError(t, err)
	c.Release(b)

	assert.Panics(t, func() { c.Unpin(b) })
	assert.Panics(t, func() { c.Release(b) })

	// Would block forever if a fault left shard 0 locked.
	b, err = c.Read(ctx, 1, 0)
	require.NoError(t, err)
	c.Release(b)
	require.NoError(t, c.Check())
}
