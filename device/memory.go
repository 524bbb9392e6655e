package device

import (
	"context"
	"sync"
	"sync/atomic"
)

// MemoryDevice keeps blocks in memory. Unwritten blocks read as zeros.
// It counts operations, which makes it useful for observing cache behaviour.
type MemoryDevice struct {
	mu      sync.RWMutex
	blocks  map[uint32][]byte
	nblocks uint32

	reads  atomic.Int64
	writes atomic.Int64
}

// NewMemoryDevice creates a device of nblocks blocks (0 = unbounded).
func NewMemoryDevice(nblocks uint32) *MemoryDevice {
	return &MemoryDevice{
		blocks:  make(map[uint32][]byte),
		nblocks: nblocks,
	}
}

// ReadBlock implements BlockDevice.
func (m *MemoryDevice) ReadBlock(_ context.Context, blockno uint32, p []byte) error {
	if err := checkBlock(blockno, m.nblocks, p); err != nil {
		return err
	}
	m.reads.Add(1)

	m.mu.RLock()
	defer m.mu.RUnlock()

	if b, ok := m.blocks[blockno]; ok {
		copy(p, b)
	} else {
		clear(p)
	}
	return nil
}

// WriteBlock implements BlockDevice.
func (m *MemoryDevice) WriteBlock(_ context.Context, blockno uint32, p []byte) error {
	if err := checkBlock(blockno, m.nblocks, p); err != nil {
		return err
	}
	m.writes.Add(1)

	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.blocks[blockno]
	if !ok {
		b = make([]byte, BlockSize)
		m.blocks[blockno] = b
	}
	copy(b, p)
	return nil
}

// Block returns a copy of the stored contents of blockno.
func (m *MemoryDevice) Block(blockno uint32) []byte {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]byte, BlockSize)
	copy(out, m.blocks[blockno])
	return out
}

// Reads returns the number of ReadBlock calls.
func (m *MemoryDevice) Reads() int64 {
	return m.reads.Load()
}

// Writes returns the number of WriteBlock calls.
func (m *MemoryDevice) Writes() int64 {
	return m.writes.Load()
}
