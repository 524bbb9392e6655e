package s3

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strconv"
	"strings"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/smithy-go"

	"github.com/hupe1980/bcache/device"
)

// Client is the subset of the S3 API used by Device.
type Client interface {
	GetObject(ctx context.Context, params *s3.GetObjectInput, optFns ...func(*s3.Options)) (*s3.GetObjectOutput, error)
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
	ListObjectsV2(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
}

// Device is a block device whose blocks are S3 objects.
type Device struct {
	client Client
	bucket string
	prefix string
	codec  device.Codec
	sparse *device.Sparse
}

// Option configures a Device.
type Option func(*Device)

// WithCodec compresses stored blocks with codec.
func WithCodec(codec device.Codec) Option {
	return func(d *Device) {
		d.codec = codec
	}
}

// NewDevice creates a device storing blocks under bucket/prefix.
func NewDevice(client Client, bucket, prefix string, optFns ...Option) *Device {
	d := &Device{
		client: client,
		bucket: bucket,
		prefix: prefix,
		sparse: device.NewSparse(),
	}
	for _, fn := range optFns {
		fn(d)
	}
	return d
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

// Scan lists the stored blocks so that reads of unwritten blocks skip S3.
func (d *Device) Scan(ctx context.Context) error {
	var blocks []uint32

	paginator := s3.NewListObjectsV2Paginator(d.client, &s3.ListObjectsV2Input{
		Bucket: aws.String(d.bucket),
		Prefix: aws.String(d.listPrefix()),
	})

	for paginator.HasMorePages() {
		page, err := paginator.NextPage(ctx)
		if err != nil {
			return fmt.Errorf("s3: scan %s/%s: %w", d.bucket, d.prefix, err)
		}
		for _, obj := range page.Contents {
			if n, ok := parseKey(aws.ToString(obj.Key)); ok {
				blocks = append(blocks, n)
			}
		}
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

	resp, err := d.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(d.bucket),
		Key:    aws.String(d.key(blockno)),
	})
	if err != nil {
		if isNotFound(err) {
			clear(p)
			return nil
		}
		return fmt.Errorf("s3: get block %d: %w", blockno, err)
	}
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("s3: read block %d: %w", blockno, err)
	}
	if err := device.DecodeBlock(data, p); err != nil {
		return fmt.Errorf("s3: block %d: %w", blockno, err)
	}
	return nil
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

	_, err = d.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(d.bucket),
		Key:           aws.String(d.key(blockno)),
		Body:          bytes.NewReader(data),
		ContentLength: aws.Int64(int64(len(data))),
	})
	if err != nil {
		return fmt.Errorf("s3: put block %d: %w", blockno, err)
	}
	d.sparse.MarkWritten(blockno)
	return nil
}

// parseKey extracts the block number from an object key written by Device.
func parseKey(key string) (uint32, bool) {
	name := path.Base(key)
	if len(name) != 10 || strings.TrimLeft(name, "0123456789") != "" {
		return 0, false
	}
	n, err := strconv.ParseUint(name, 10, 32)
	if err != nil {
		return 0, false
	}
	return uint32(n), true
}

func isNotFound(err error) bool {
	var nsk *types.NoSuchKey
	if errors.As(err, &nsk) {
		return true
	}
	var nf *types.NotFound
	if errors.As(err, &nf) {
		return true
	}
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		switch apiErr.ErrorCode() {
		case "NoSuchKey", "NotFound":
			return true
		}
	}
	return false
}
