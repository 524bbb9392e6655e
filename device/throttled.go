package device

import (
	"context"

	"github.com/hupe1980/bcache/resource"
)

// Throttled limits the throughput and concurrency of a device with a
// resource.Controller.
type Throttled struct {
	dev BlockDevice
	rc  *resource.Controller
}

// NewThrottled wraps dev.
func NewThrottled(dev BlockDevice, rc *resource.Controller) *Throttled {
	return &Throttled{dev: dev, rc: rc}
}

// ReadBlock implements BlockDevice.
func (t *Throttled) ReadBlock(ctx context.Context, blockno uint32, p []byte) error {
	if err := t.rc.AcquireIO(ctx, len(p)); err != nil {
		return err
	}
	defer t.rc.ReleaseIO()
	return t.dev.ReadBlock(ctx, blockno, p)
}

// WriteBlock implements BlockDevice.
func (t *Throttled) WriteBlock(ctx context.Context, blockno uint32, p []byte) error {
	if err := t.rc.AcquireIO(ctx, len(p)); err != nil {
		return err
	}
	defer t.rc.ReleaseIO()
	return t.dev.WriteBlock(ctx, blockno, p)
}
