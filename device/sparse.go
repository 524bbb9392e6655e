package device

import (
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
)

// Sparse records which blocks of a remote device have been written, so reads
// of blocks known to be unwritten can return zeros without a round trip.
//
// Until Seed is called the index is incomplete and Unwritten always reports
// false.
type Sparse struct {
	mu      sync.RWMutex
	written *roaring.Bitmap
	seeded  bool
}

// NewSparse returns an empty, unseeded index.
func NewSparse() *Sparse {
	return &Sparse{written: roaring.New()}
}

// Seed marks blocks as written and declares the index complete.
func (s *Sparse) Seed(blocks []uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.written.AddMany(blocks)
	s.seeded = true
}

// MarkWritten records a write of blockno.
func (s *Sparse) MarkWritten(blockno uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.written.Add(blockno)
}

// Unwritten reports whether blockno is known never to have been written.
func (s *Sparse) Unwritten(blockno uint32) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.seeded && !s.written.Contains(blockno)
}

// Count returns the number of blocks known to be written.
func (s *Sparse) Count() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.written.GetCardinality()
}
