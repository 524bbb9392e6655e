package s3

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/bcache/device"
)

// fakeS3 is an in-memory S3 bucket.
type fakeS3 struct {
	mu      sync.Mutex
	objects map[string][]byte
	gets    int
	fail    error
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: make(map[string][]byte)}
}

func (f *fakeS3) GetObject(_ context.Context, in *s3.GetObjectInput, _ ...func(*s3.Options)) (*s3.GetObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.gets++
	if f.fail != nil {
		return nil, f.fail
	}
	data, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NoSuchKey{}
	}
	return &s3.GetObjectOutput{Body: io.NopCloser(bytes.NewReader(data))}, nil
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects[aws.ToString(in.Key)] = data
	return &s3.PutObjectOutput{}, nil
}

func (f *fakeS3) ListObjectsV2(_ context.Context, in *s3.ListObjectsV2Input, _ ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var keys []string
	for k := range f.objects {
		if strings.HasPrefix(k, aws.ToString(in.Prefix)) {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)

	out := &s3.ListObjectsV2Output{}
	for _, k := range keys {
		out.Contents = append(out.Contents, types.Object{Key: aws.String(k)})
	}
	return out, nil
}

func TestDevice_WriteRead(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	d := NewDevice(fake, "bucket", "vol1", WithCodec(device.CodecZstd))

	data := bytes.Repeat([]byte("superblock"), device.BlockSize/10+1)[:device.BlockSize]
	require.NoError(t, d.WriteBlock(ctx, 42, data))

	stored := fake.objects["vol1/0000000042"]
	require.NotNil(t, stored)
	assert.Less(t, len(stored), device.BlockSize)

	p := make([]byte, device.BlockSize)
	require.NoError(t, d.ReadBlock(ctx, 42, p))
	assert.Equal(t, data, p)
}

func TestDevice_MissingBlockReadsZero(t *testing.T) {
	d := NewDevice(newFakeS3(), "bucket", "vol1")

	p := bytes.Repeat([]byte{1}, device.BlockSize)
	require.NoError(t, d.ReadBlock(context.Background(), 7, p))
	assert.Equal(t, make([]byte, device.BlockSize), p)
}

func TestDevice_ScanSkipsUnwritten(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	d := NewDevice(fake, "bucket", "vol1")
	require.NoError(t, d.WriteBlock(ctx, 3, make([]byte, device.BlockSize)))

	fake.objects["vol1/not-a-block"] = []byte("x")

	d2 := NewDevice(fake, "bucket", "vol1")
	require.NoError(t, d2.Scan(ctx))

	p := make([]byte, device.BlockSize)
	require.NoError(t, d2.ReadBlock(ctx, 9, p))
	assert.Equal(t, 0, fake.gets, "unwritten block must not hit S3")

	require.NoError(t, d2.ReadBlock(ctx, 3, p))
	assert.Equal(t, 1, fake.gets)
}

func TestDevice_Errors(t *testing.T) {
	ctx := context.Background()
	fake := newFakeS3()
	d := NewDevice(fake, "bucket", "vol1")

	assert.ErrorIs(t, d.ReadBlock(ctx, 0, make([]byte, 3)), device.ErrShortBlock)

	boom := errors.New("boom")
	fake.fail = boom
	assert.ErrorIs(t, d.ReadBlock(ctx, 0, make([]byte, device.BlockSize)), boom)
	fake.fail = nil

	fake.objects["vol1/0000000001"] = []byte("garbage")
	assert.ErrorIs(t, d.ReadBlock(ctx, 1, make([]byte, device.BlockSize)), device.ErrBadEnvelope)
}

func TestParseKey(t *testing.T) {
	tests := []struct {
		key  string
		want uint32
		ok   bool
	}{
		{"vol/0000000042", 42, true},
		{"0000000000", 0, true},
		{"vol/4294967295", 4294967295, true},
		{"vol/9999999999", 0, false},
		{"vol/00000000x1", 0, false},
		{"vol/42", 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			got, ok := parseKey(tt.key)
			assert.Equal(t, tt.ok, ok)
			assert.Equal(t, tt.want, got)
		})
	}
}
