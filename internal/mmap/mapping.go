package mmap

import (
	"errors"
	"fmt"
	"os"
	"sync/atomic"
)

var (
	// ErrInvalidSize is returned for negative or zero mapping sizes.
	ErrInvalidSize = errors.New("mmap: invalid size")
	// ErrClosed is returned when using a closed mapping.
	ErrClosed = errors.New("mmap: mapping closed")
	// ErrRange is returned for a sync range outside the mapping.
	ErrRange = errors.New("mmap: range out of bounds")
)

// Mapping is a shared, writable memory mapping of a file.
type Mapping struct {
	f      *os.File
	data   []byte
	closed atomic.Bool
}

// OpenFile maps the file at path read-write, creating it and growing it to
// size bytes if needed. An existing file larger than size is mapped only up
// to size.
func OpenFile(path string, size int64) (*Mapping, error) {
	if size <= 0 {
		return nil, ErrInvalidSize
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, err
	}

	fi, err := f.Stat()
	if err != nil {
		_ = f.Close()
		return nil, err
	}
	if fi.Size() < size {
		if err := f.Truncate(size); err != nil {
			_ = f.Close()
			return nil, fmt.Errorf("mmap: grow %s: %w", path, err)
		}
	}

	data, err := osMap(f, int(size))
	if err != nil {
		_ = f.Close()
		return nil, fmt.Errorf("mmap: map %s: %w", path, err)
	}

	return &Mapping{f: f, data: data}, nil
}

// Bytes returns the mapped region. The slice is valid until Close.
func (m *Mapping) Bytes() []byte {
	if m.closed.Load() {
		return nil
	}
	return m.data
}

// Size returns the mapping length in bytes.
func (m *Mapping) Size() int {
	return len(m.data)
}

// Sync flushes [off, off+n) to the file. The range is widened to page
// boundaries as the kernel requires.
func (m *Mapping) Sync(off, n int) error {
	if m.closed.Load() {
		return ErrClosed
	}
	if off < 0 || n < 0 || off+n > len(m.data) {
		return ErrRange
	}
	if n == 0 {
		return nil
	}
	page := os.Getpagesize()
	start := off - off%page
	return osSync(m.data[start : off+n])
}

// Close unmaps the region and closes the file. It is idempotent.
func (m *Mapping) Close() error {
	if m.closed.Swap(true) {
		return nil
	}
	err := osUnmap(m.data)
	m.data = nil
	if cerr := m.f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	return err
}
