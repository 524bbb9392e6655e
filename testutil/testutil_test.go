package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReset(t *testing.T) {
	rng := NewRNG(4711)
	a := rng.Intn(1 << 30)

	rng.Reset()
	b := rng.Intn(1 << 30)

	assert.Equal(t, a, b)
}

func TestZipf(t *testing.T) {
	rng := NewRNG(4711)

	counts := make([]int, 10)
	for range 5000 {
		k := rng.Zipf(10, 1.5)
		require.GreaterOrEqual(t, k, 0)
		require.Less(t, k, 10)
		counts[k]++
	}

	assert.Greater(t, counts[0], counts[9])
	assert.Equal(t, 0, rng.Zipf(1, 1.5))
}

func TestWorkload(t *testing.T) {
	cfg := WorkloadConfig{
		Ops:        1000,
		Devices:    []uint32{1, 7},
		Blocks:     64,
		WriteRatio: 0.25,
		Skew:       1.1,
	}

	ops := NewRNG(1).Workload(cfg)
	require.Len(t, ops, 1000)

	writes := 0
	for _, op := range ops {
		assert.Contains(t, cfg.Devices, op.Dev)
		assert.Less(t, op.Blockno, uint32(64))
		if op.Kind == OpWrite {
			writes++
		}
	}
	assert.InDelta(t, 250, writes, 80)

	// Deterministic for a seed.
	assert.Equal(t, ops, NewRNG(1).Workload(cfg))
}

func TestWorkload_Empty(t *testing.T) {
	rng := NewRNG(1)

	assert.Nil(t, rng.Workload(WorkloadConfig{Ops: 10, Blocks: 4}))
	assert.Nil(t, rng.Workload(WorkloadConfig{Ops: 10, Devices: []uint32{1}}))
}

func TestSplit(t *testing.T) {
	ops := make([]Op, 10)
	for i := range ops {
		ops[i].Blockno = uint32(i)
	}

	parts := Split(ops, 3)
	require.Len(t, parts, 3)
	assert.Len(t, parts[0], 4)
	assert.Len(t, parts[1], 3)
	assert.Len(t, parts[2], 3)
	assert.Equal(t, uint32(4), parts[1][1].Blockno)
}

func TestFillParseBlock(t *testing.T) {
	p := make([]byte, 1024)
	FillBlock(p, 3, 99, 12)

	dev, blockno, version, ok := ParseBlock(p)
	require.True(t, ok)
	assert.Equal(t, uint32(3), dev)
	assert.Equal(t, uint32(99), blockno)
	assert.Equal(t, uint64(12), version)

	p[500] ^= 0xff
	_, _, _, ok = ParseBlock(p)
	assert.False(t, ok)

	_, _, _, ok = ParseBlock(make([]byte, 1024))
	assert.False(t, ok, "unwritten block")
}

func TestOpKindString(t *testing.T) {
	assert.Equal(t, "read", OpRead.String())
	assert.Equal(t, "write", OpWrite.String())
}
