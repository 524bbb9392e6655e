package resource

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Memory(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})

	require.NoError(t, c.TryAcquireMemory(50))
	require.NoError(t, c.TryAcquireMemory(40))
	assert.Equal(t, int64(90), c.MemoryUsage())

	assert.ErrorIs(t, c.TryAcquireMemory(20), ErrMemoryLimitExceeded)
	assert.Equal(t, int64(90), c.MemoryUsage())

	c.ReleaseMemory(50)
	assert.Equal(t, int64(40), c.MemoryUsage())

	require.NoError(t, c.TryAcquireMemory(20))
	assert.Equal(t, int64(60), c.MemoryUsage())
	assert.Equal(t, int64(100), c.MemoryLimit())
}

func TestController_UnlimitedMemory(t *testing.T) {
	c := NewController(Config{})

	require.NoError(t, c.TryAcquireMemory(1<<40))
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
}

func TestController_Inflight(t *testing.T) {
	c := NewController(Config{MaxInflightIO: 2})

	require.NoError(t, c.AcquireIO(context.Background(), 1024))
	require.NoError(t, c.AcquireIO(context.Background(), 1024))
	assert.Equal(t, int64(2), c.InflightIO())
	assert.False(t, c.TryAcquireIO(1024))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, c.AcquireIO(ctx, 1024), context.DeadlineExceeded)

	c.ReleaseIO()
	assert.True(t, c.TryAcquireIO(1024))
	c.ReleaseIO()
	c.ReleaseIO()
	assert.Equal(t, int64(0), c.InflightIO())
}

func TestController_RateLimit(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1024})

	// The burst equals one second of throughput.
	assert.True(t, c.TryAcquireIO(1024))
	c.ReleaseIO()
	assert.False(t, c.TryAcquireIO(1024))
}

func TestController_Nil(t *testing.T) {
	var c *Controller

	assert.NoError(t, c.TryAcquireMemory(10))
	c.ReleaseMemory(10)
	assert.Zero(t, c.MemoryUsage())
	assert.NoError(t, c.AcquireIO(context.Background(), 10))
	assert.True(t, c.TryAcquireIO(10))
	c.ReleaseIO()
	assert.Zero(t, c.InflightIO())
}
