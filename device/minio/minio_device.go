package minio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/minio/minio-go/v7"

	"github.com/hupe1980/bcache/device"
)

// Device is a block device whose blocks are objects in a MinIO bucket.
type Device struct {
	client *minio.Client
	bucket string
	prefix string
	codec  device.Codec
	sparse *device.Sparse
}

// NewDevice creates a device storing blocks under bucket/prefix.
func NewDevice(client *minio.Client, bucket, prefix string, codec device.Codec) *Device {
	return &Device{
		client: client,
		bucket: bucket,
		prefix: prefix,
		codec:  codec,
		sparse: device.NewSparse(),
	}
}

func (d *Device) key(blockno uint32) string {
	return path.Join(d.prefix, fmt.Sprintf("%010d", blockno))
}

// listPrefix limits listings to this device's keys, so "vol1" does not
// match "vol10/...".
func (d *Device) listPrefix() string {
	if d.prefix == "" || strings.HasSuffix(d.prefix, "/") {
		return d.prefix
	}
	return d.prefix + "/"
}

// Scan lists the stored blocks so that reads of unwritten blocks skip the
// object store.
func (d *Device) Scan(ctx context.Context) error {
	var blocks []uint32

	for obj := range d.client.ListObjects(ctx, d.bucket, minio.ListObjectsOptions{
		Prefix:    d.listPrefix(),
		Recursive: true,
	}) {
		if obj.Err != nil {
			return fmt.Errorf("minio: scan %s/%s: %w", d.bucket, d.prefix, obj.Err)
		}
		name := path.Base(obj.Key)
		if len(name) != 10 {
			continue
		}
		n, err := strconv.ParseUint(name, 10, 32)
		if err != nil {
			continue
		}
		blocks = append(blocks, uint32(n))
	}

	d.sparse.Seed(blocks)
	return nil
}

// ReadBlock implements device.BlockDevice.
func (d *Device) ReadBlock(ctx context.Context, blockno uint32, p []byte) error {
	if len(p) != device.BlockSize {
		return device.ErrShortBlock
	}
	if d.sparse.Unwritten(blockno) {
		clear(p)
		return nil
	}

	obj, err := d.client.GetObject(ctx, d.bucket, d.key(blockno), minio.GetObjectOptions{})
	if err != nil {
		return d.readErr(blockno, p, err)
	}
	defer func() { _ = obj.Close() }()

	// GetObject is lazy; a missing key surfaces on the first read.
	data, err := io.ReadAll(obj)
	if err != nil {
		return d.readErr(blockno, p, err)
	}
	if err := device.DecodeBlock(data, p); err != nil {
		return fmt.Errorf("minio: block %d: %w", blockno, err)
	}
	return nil
}

func (d *Device) readErr(blockno uint32, p []byte, err error) error {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		clear(p)
		return nil
	}
	return fmt.Errorf("minio: get block %d: %w", blockno, err)
}

// WriteBlock implements device.BlockDevice.
func (d *Device) WriteBlock(ctx context.Context, blockno uint32, p []byte) error {
	if len(p) != device.BlockSize {
		return device.ErrShortBlock
	}

	data, err := device.EncodeBlock(d.codec, p)
	if err != nil {
		return err
	}

	if _, err := d.client.PutObject(ctx, d.bucket, d.key(blockno), bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/octet-stream",
	}); err != nil {
		return fmt.Errorf("minio: put block %d: %w", blockno, err)
	}
	d.sparse.MarkWritten(blockno)
	return nil
}
