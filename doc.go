// Package bcache provides a disk block cache: a fixed pool of in-memory
// buffers mirroring device blocks, shared by concurrent callers.
//
// # Usage
//
//	devs := device.NewTable()
//	_ = devs.Register(1, device.NewMemoryDevice(0))
//
//	c, _ := bcache.New(devs)
//
//	b, err := c.Read(ctx, 1, 42) // exclusive access to block 42 of device 1
//	if err != nil {
//	    return err
//	}
//	copy(b.Data(), payload)
//	if err := c.Write(ctx, b); err != nil { // write-through; no implicit flush
//	    c.Release(b)
//	    return err
//	}
//	c.Release(b) // b must not be used after this
//
// # Structure
//
// The pool holds NumBuffers buffers, allocated once by New and never grown.
// Buffers are spread over NumShards shards. Each shard has its own lock and
// a recency list (head = most recently released). A block lives in shard
// blockno mod NumShards.
//
// A lookup first scans the block's shard for a cached copy, then recycles the
// least recently released free buffer of that shard. If the shard has no free
// buffer, the cache steals one from another shard: a single global lock
// serializes stealers, so the nested donor-then-destination shard locking
// cannot deadlock.
//
// # Faults
//
// Pool exhaustion and lock-discipline violations (Write or Release without
// holding the buffer) are programming errors. They panic with a *Fault
// rather than returning an error. Device failures are ordinary errors.
//
// # Write-through
//
// The cache has no dirty tracking. Callers that modify Data must call Write
// before Release; an unreferenced buffer may be recycled at any time and its
// contents discarded.
package bcache
