package device

import (
	"context"
	"fmt"

	"github.com/hupe1980/bcache/internal/mmap"
)

// FileDevice is a fixed-size disk image mapped into memory. Writes are
// synced to the file before WriteBlock returns.
type FileDevice struct {
	m       *mmap.Mapping
	nblocks uint32
}

// OpenFile opens (creating if needed) a disk image of nblocks blocks.
func OpenFile(path string, nblocks uint32) (*FileDevice, error) {
	if nblocks == 0 {
		return nil, fmt.Errorf("device: open %s: %w", path, ErrOutOfRange)
	}
	m, err := mmap.OpenFile(path, int64(nblocks)*BlockSize)
	if err != nil {
		return nil, fmt.Errorf("device: open %s: %w", path, err)
	}
	return &FileDevice{m: m, nblocks: nblocks}, nil
}

// NumBlocks returns the device size in blocks.
func (f *FileDevice) NumBlocks() uint32 {
	return f.nblocks
}

// ReadBlock implements BlockDevice.
func (f *FileDevice) ReadBlock(ctx context.Context, blockno uint32, p []byte) error {
	if err := checkBlock(blockno, f.nblocks, p); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data := f.m.Bytes()
	if data == nil {
		return mmap.ErrClosed
	}
	off := int(blockno) * BlockSize
	copy(p, data[off:off+BlockSize])
	return nil
}

// WriteBlock implements BlockDevice.
func (f *FileDevice) WriteBlock(ctx context.Context, blockno uint32, p []byte) error {
	if err := checkBlock(blockno, f.nblocks, p); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data := f.m.Bytes()
	if data == nil {
		return mmap.ErrClosed
	}
	off := int(blockno) * BlockSize
	copy(data[off:off+BlockSize], p)
	if err := f.m.Sync(off, BlockSize); err != nil {
		return fmt.Errorf("device: sync block %d: %w", blockno, err)
	}
	return nil
}

// Close unmaps the image.
func (f *FileDevice) Close() error {
	return f.m.Close()
}
