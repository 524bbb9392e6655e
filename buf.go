package bcache

import (
	"github.com/hupe1980/bcache/internal/sleeplock"
)

// slot is one buffer of the fixed pool.
//
// dev, blockno and refcnt are guarded by the lock of the shard whose list
// holds the slot. valid and data belong to the holder of lock; valid is also
// cleared under the shard lock when an unreferenced slot is recycled.
type slot struct {
	dev     uint32
	blockno uint32
	valid   bool
	refcnt  int
	lock    *sleeplock.Lock[Buf]
	data    []byte
}

// Buf is a handle to a cached block, returned by Cache.Read with the
// buffer's exclusive lock held. Each Read returns a new handle; the handle
// stops being the lock holder once it is passed to Cache.Release.
type Buf struct {
	c       *Cache
	idx     int
	dev     uint32
	blockno uint32
}

// Dev returns the device id of the block.
func (b *Buf) Dev() uint32 { return b.dev }

// Blockno returns the block number.
func (b *Buf) Blockno() uint32 { return b.blockno }

// Data returns the block payload, BlockSize bytes. It returns nil if b no
// longer holds the buffer.
func (b *Buf) Data() []byte {
	s := b.slot()
	if !s.lock.Holding(b) {
		return nil
	}
	return s.data
}

// Valid reports whether the payload has been loaded from the device.
// It is always true for a handle returned by a successful Read.
func (b *Buf) Valid() bool {
	s := b.slot()
	return s.lock.Holding(b) && s.valid
}

func (b *Buf) slot() *slot {
	return &b.c.slots[b.idx]
}
