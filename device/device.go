package device

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
)

// BlockSize is the size of one block in bytes.
const BlockSize = 1024

// NoDevice is the device id of a buffer that has never held a block.
// It cannot be registered.
const NoDevice = ^uint32(0)

var (
	// ErrUnknownDevice is returned for a device id with no registered device.
	ErrUnknownDevice = errors.New("unknown device")
	// ErrDeviceExists is returned when registering a device id twice.
	ErrDeviceExists = errors.New("device already registered")
	// ErrReservedDevice is returned when registering NoDevice.
	ErrReservedDevice = errors.New("reserved device id")
	// ErrOutOfRange is returned for a block number beyond the end of a device.
	ErrOutOfRange = errors.New("block out of range")
	// ErrShortBlock is returned when a buffer is not exactly BlockSize bytes.
	ErrShortBlock = errors.New("buffer is not one block")
	// ErrChecksum is returned when a stored block fails verification.
	ErrChecksum = errors.New("block checksum mismatch")
)

// BlockDevice is a synchronous block store.
//
// Implementations must be safe for concurrent use on distinct blocks. The
// cache never issues two concurrent operations on the same block.
type BlockDevice interface {
	// ReadBlock fills p with the contents of block blockno.
	ReadBlock(ctx context.Context, blockno uint32, p []byte) error
	// WriteBlock persists p as the contents of block blockno.
	WriteBlock(ctx context.Context, blockno uint32, p []byte) error
}

// Table maps device ids to devices.
type Table struct {
	mu   sync.RWMutex
	devs map[uint32]BlockDevice
}

// NewTable creates an empty device table.
func NewTable() *Table {
	return &Table{devs: make(map[uint32]BlockDevice)}
}

// Register makes d reachable under id.
func (t *Table) Register(id uint32, d BlockDevice) error {
	if id == NoDevice {
		return ErrReservedDevice
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.devs[id]; ok {
		return fmt.Errorf("%w: %d", ErrDeviceExists, id)
	}
	t.devs[id] = d
	return nil
}

// Lookup returns the device registered under id.
func (t *Table) Lookup(id uint32) (BlockDevice, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	d, ok := t.devs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrUnknownDevice, id)
	}
	return d, nil
}

// IDs returns the registered device ids in ascending order.
func (t *Table) IDs() []uint32 {
	t.mu.RLock()
	defer t.mu.RUnlock()

	ids := make([]uint32, 0, len(t.devs))
	for id := range t.devs {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// ReadWrite moves one block between p and device dev: a write persists p,
// a read fills it.
func ReadWrite(ctx context.Context, t *Table, dev, blockno uint32, p []byte, write bool) error {
	if len(p) != BlockSize {
		return ErrShortBlock
	}

	d, err := t.Lookup(dev)
	if err != nil {
		return err
	}

	if write {
		return d.WriteBlock(ctx, blockno, p)
	}
	return d.ReadBlock(ctx, blockno, p)
}

func checkBlock(blockno, nblocks uint32, p []byte) error {
	if len(p) != BlockSize {
		return ErrShortBlock
	}
	if nblocks > 0 && blockno >= nblocks {
		return fmt.Errorf("%w: %d >= %d", ErrOutOfRange, blockno, nblocks)
	}
	return nil
}
