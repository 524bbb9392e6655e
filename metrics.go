package bcache

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like Prometheus.
//
// Collectors are called on the lookup path, sometimes while a shard lock is
// held, and must not call back into the cache.
type MetricsCollector interface {
	// RecordRead is called after each Read. hit reports whether the block
	// was served from a valid cached buffer without device I/O.
	RecordRead(hit bool, duration time.Duration, err error)

	// RecordWrite is called after each Write.
	RecordWrite(duration time.Duration, err error)

	// RecordRecycle is called when a free buffer is reassigned to a new block.
	RecordRecycle()

	// RecordSteal is called when a buffer moves from shard donor to shard dst.
	RecordSteal(donor, dst int)

	// RecordFault is called before the cache panics with a *Fault.
	RecordFault(op string)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
// Use this when metrics collection is not needed.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordRead(bool, time.Duration, error) {}
func (NoopMetricsCollector) RecordWrite(time.Duration, error)      {}
func (NoopMetricsCollector) RecordRecycle()                        {}
func (NoopMetricsCollector) RecordSteal(int, int)                  {}
func (NoopMetricsCollector) RecordFault(string)                    {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and basic monitoring without external dependencies.
type BasicMetricsCollector struct {
	Hits            atomic.Int64
	Misses          atomic.Int64
	ReadErrors      atomic.Int64
	ReadTotalNanos  atomic.Int64
	WriteCount      atomic.Int64
	WriteErrors     atomic.Int64
	WriteTotalNanos atomic.Int64
	Recycles        atomic.Int64
	Steals          atomic.Int64
	Faults          atomic.Int64
}

// RecordRead implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRead(hit bool, duration time.Duration, err error) {
	if hit {
		b.Hits.Add(1)
	} else {
		b.Misses.Add(1)
	}
	b.ReadTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.ReadErrors.Add(1)
	}
}

// RecordWrite implements MetricsCollector.
func (b *BasicMetricsCollector) RecordWrite(duration time.Duration, err error) {
	b.WriteCount.Add(1)
	b.WriteTotalNanos.Add(duration.Nanoseconds())
	if err != nil {
		b.WriteErrors.Add(1)
	}
}

// RecordRecycle implements MetricsCollector.
func (b *BasicMetricsCollector) RecordRecycle() {
	b.Recycles.Add(1)
}

// RecordSteal implements MetricsCollector.
func (b *BasicMetricsCollector) RecordSteal(int, int) {
	b.Steals.Add(1)
}

// RecordFault implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFault(string) {
	b.Faults.Add(1)
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		Hits:          b.Hits.Load(),
		Misses:        b.Misses.Load(),
		ReadErrors:    b.ReadErrors.Load(),
		ReadAvgNanos:  b.getAvgReadNanos(),
		WriteCount:    b.WriteCount.Load(),
		WriteErrors:   b.WriteErrors.Load(),
		WriteAvgNanos: b.getAvgWriteNanos(),
		Recycles:      b.Recycles.Load(),
		Steals:        b.Steals.Load(),
		Faults:        b.Faults.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgReadNanos() int64 {
	count := b.Hits.Load() + b.Misses.Load()
	if count == 0 {
		return 0
	}
	return b.ReadTotalNanos.Load() / count
}

func (b *BasicMetricsCollector) getAvgWriteNanos() int64 {
	count := b.WriteCount.Load()
	if count == 0 {
		return 0
	}
	return b.WriteTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	Hits          int64
	Misses        int64
	ReadErrors    int64
	ReadAvgNanos  int64
	WriteCount    int64
	WriteErrors   int64
	WriteAvgNanos int64
	Recycles      int64
	Steals        int64
	Faults        int64
}

// HitRatio returns hits / (hits + misses), or 0 before the first read.
func (s BasicMetricsStats) HitRatio() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}
