package bcache

import (
	"errors"
	"fmt"
)

var (
	// ErrNoBuffers means no shard had a free buffer: every buffer in the pool
	// is referenced. It indicates a reference leak or an undersized pool.
	ErrNoBuffers = errors.New("no buffers")

	// ErrNotHeld means a buffer was used without holding its exclusive lock.
	ErrNotHeld = errors.New("buffer lock not held")

	// ErrNegativeRef means Unpin was called on an unreferenced buffer.
	ErrNegativeRef = errors.New("reference count underflow")

	// ErrInvalidConfig is wrapped by *ConfigError.
	ErrInvalidConfig = errors.New("invalid configuration")
)

// Fault is an unrecoverable invariant violation. The cache panics with a
// *Fault; it is never returned as an error.
type Fault struct {
	Op  string
	Err error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s: %v", f.Op, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// IsFault reports whether a value recovered from a panic is a cache fault.
func IsFault(recovered any) (*Fault, bool) {
	f, ok := recovered.(*Fault)
	return f, ok
}

// ConfigError reports an invalid option passed to New.
type ConfigError struct {
	Field string
	Value int
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("%v: %s must be positive, got %d", ErrInvalidConfig, e.Field, e.Value)
}

func (e *ConfigError) Unwrap() error { return ErrInvalidConfig }
