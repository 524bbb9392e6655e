package bcache

import (
	"log/slog"

	"github.com/hupe1980/bcache/resource"
)

const (
	// DefaultNumBuffers is the default pool size.
	DefaultNumBuffers = 30
	// DefaultNumShards is the default shard count. A prime spreads
	// sequential block numbers evenly.
	DefaultNumShards = 13
)

type options struct {
	numBuffers       int
	numShards        int
	logger           *Logger
	metricsCollector MetricsCollector
	rc               *resource.Controller
}

// Option configures New.
type Option func(*options)

// WithNumBuffers sets the fixed number of buffers in the pool.
func WithNumBuffers(n int) Option {
	return func(o *options) {
		o.numBuffers = n
	}
}

// WithNumShards sets the number of shards.
//
// More shards reduce contention on the shard locks. Each shard recycles
// only its own buffers until it runs dry, after which buffers are stolen
// from other shards under the global lock, so a shard count close to the
// pool size makes stealing common.
func WithNumShards(n int) Option {
	return func(o *options) {
		o.numShards = n
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging.
func WithLogger(logger *Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// WithLogLevel creates a text logger with the specified level and sets it.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &bcache.BasicMetricsCollector{}
//	c, _ := bcache.New(devs, bcache.WithMetricsCollector(metrics))
//	// ... use c ...
//	stats := metrics.GetStats()
//	fmt.Printf("hits: %d, misses: %d\n", stats.Hits, stats.Misses)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		o.metricsCollector = mc
	}
}

// WithResourceController charges the pool's payload memory to rc.
// New fails if rc cannot grant NumBuffers*BlockSize bytes.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}
