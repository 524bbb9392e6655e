package testutil

import (
	"encoding/binary"
	"math"
	"math/rand"
	"sync"
)

// RNG struct encapsulates the random number generator and seed.
// It is thread-safe.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Intn returns, as an int, a non-negative pseudo-random number in [0,n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}

// Float64 returns a pseudo-random number in [0.0,1.0).
func (r *RNG) Float64() float64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Float64()
}

// FillBytes fills dst with random bytes.
func (r *RNG) FillBytes(dst []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(dst)
}

// Zipf returns a Zipfian-distributed value in [0, n).
// P(k) ∝ 1/k^s; s=1.0 gives standard Zipf, larger s concentrates on few values.
func (r *RNG) Zipf(n int, s float64) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.zipfLocked(n, harmonic(n, s), s)
}

func harmonic(n int, s float64) float64 {
	var h float64
	for i := 1; i <= n; i++ {
		h += 1.0 / math.Pow(float64(i), s)
	}
	return h
}

// zipfLocked samples by inverse transform (caller must hold lock).
func (r *RNG) zipfLocked(n int, hns, s float64) int {
	if n <= 1 {
		return 0
	}

	u := r.rand.Float64() * hns
	var cumulative float64
	for k := 1; k <= n; k++ {
		cumulative += 1.0 / math.Pow(float64(k), s)
		if u <= cumulative {
			return k - 1
		}
	}

	return n - 1
}

// OpKind is the kind of a workload operation.
type OpKind uint8

const (
	// OpRead reads a block and releases it.
	OpRead OpKind = iota
	// OpWrite reads a block, rewrites its payload, writes and releases it.
	OpWrite
)

func (k OpKind) String() string {
	if k == OpWrite {
		return "write"
	}
	return "read"
}

// Op is one block access.
type Op struct {
	Kind    OpKind
	Dev     uint32
	Blockno uint32
}

// WorkloadConfig describes a generated access sequence.
type WorkloadConfig struct {
	Ops        int
	Devices    []uint32
	Blocks     int     // block numbers are drawn from [0, Blocks)
	WriteRatio float64 // fraction of writes in [0, 1]
	Skew       float64 // Zipf exponent for block popularity; <= 0 means uniform
}

// Workload generates a deterministic access sequence.
func (r *RNG) Workload(cfg WorkloadConfig) []Op {
	if cfg.Ops <= 0 || len(cfg.Devices) == 0 || cfg.Blocks <= 0 {
		return nil
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	var hns float64
	if cfg.Skew > 0 {
		hns = harmonic(cfg.Blocks, cfg.Skew)
	}

	ops := make([]Op, cfg.Ops)
	for i := range ops {
		var blockno int
		if cfg.Skew > 0 {
			blockno = r.zipfLocked(cfg.Blocks, hns, cfg.Skew)
		} else {
			blockno = r.rand.Intn(cfg.Blocks)
		}

		kind := OpRead
		if r.rand.Float64() < cfg.WriteRatio {
			kind = OpWrite
		}

		ops[i] = Op{
			Kind:    kind,
			Dev:     cfg.Devices[r.rand.Intn(len(cfg.Devices))],
			Blockno: uint32(blockno),
		}
	}

	return ops
}

// Split deals ops round-robin into n slices, one per worker.
func Split(ops []Op, n int) [][]Op {
	if n < 1 {
		n = 1
	}
	out := make([][]Op, n)
	for i, op := range ops {
		out[i%n] = append(out[i%n], op)
	}
	return out
}

const blockHeader = 16

// FillBlock writes a payload identifying (dev, blockno, version) into p: a
// 16-byte header followed by a pattern derived from the header.
func FillBlock(p []byte, dev, blockno uint32, version uint64) {
	if len(p) < blockHeader {
		return
	}
	binary.LittleEndian.PutUint32(p[0:], dev)
	binary.LittleEndian.PutUint32(p[4:], blockno)
	binary.LittleEndian.PutUint64(p[8:], version)

	seed := byte(dev*31 + blockno*17 + uint32(version))
	for i := blockHeader; i < len(p); i++ {
		p[i] = seed + byte(i)
	}
}

// ParseBlock decodes a payload written by FillBlock. ok is false if the
// pattern does not match the header.
func ParseBlock(p []byte) (dev, blockno uint32, version uint64, ok bool) {
	if len(p) < blockHeader {
		return 0, 0, 0, false
	}
	dev = binary.LittleEndian.Uint32(p[0:])
	blockno = binary.LittleEndian.Uint32(p[4:])
	version = binary.LittleEndian.Uint64(p[8:])

	seed := byte(dev*31 + blockno*17 + uint32(version))
	for i := blockHeader; i < len(p); i++ {
		if p[i] != seed+byte(i) {
			return dev, blockno, version, false
		}
	}
	return dev, blockno, version, true
}
