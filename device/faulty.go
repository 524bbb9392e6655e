package device

import (
	"context"
	"errors"
	"sync"
)

// ErrInjected is the default error returned by a Faulty device.
var ErrInjected = errors.New("injected device fault")

// Fault defines when a Faulty device fails.
type Fault struct {
	FailReads  bool
	FailWrites bool
	// FailAfter lets this many matching operations succeed first. -1 fails
	// none, 0 fails immediately.
	FailAfter int
	Err       error
}

// Faulty wraps a device and injects errors for testing failure paths.
type Faulty struct {
	BlockDevice

	mu      sync.Mutex
	rules   map[uint32]*faultState // per block
	Default Fault
}

type faultState struct {
	Fault
	seen int
}

// NewFaulty wraps dev. Without rules it behaves like dev.
func NewFaulty(dev BlockDevice) *Faulty {
	return &Faulty{
		BlockDevice: dev,
		rules:       make(map[uint32]*faultState),
		Default:     Fault{FailAfter: -1},
	}
}

// AddRule installs fault for one block, replacing any previous rule.
func (f *Faulty) AddRule(blockno uint32, fault Fault) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rules[blockno] = &faultState{Fault: fault}
}

// ClearRules removes all block rules.
func (f *Faulty) ClearRules() {
	f.mu.Lock()
	defer f.mu.Unlock()
	clear(f.rules)
}

func (f *Faulty) check(blockno uint32, write bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	st, ok := f.rules[blockno]
	if !ok {
		st = &faultState{Fault: f.Default}
		f.rules[blockno] = st
	}

	if (write && !st.FailWrites) || (!write && !st.FailReads) {
		return nil
	}
	if st.FailAfter < 0 {
		return nil
	}
	if st.seen < st.FailAfter {
		st.seen++
		return nil
	}

	if st.Err != nil {
		return st.Err
	}
	return ErrInjected
}

// ReadBlock implements BlockDevice.
func (f *Faulty) ReadBlock(ctx context.Context, blockno uint32, p []byte) error {
	if err := f.check(blockno, false); err != nil {
		return err
	}
	return f.BlockDevice.ReadBlock(ctx, blockno, p)
}

// WriteBlock implements BlockDevice.
func (f *Faulty) WriteBlock(ctx context.Context, blockno uint32, p []byte) error {
	if err := f.check(blockno, true); err != nil {
		return err
	}
	return f.BlockDevice.WriteBlock(ctx, blockno, p)
}
