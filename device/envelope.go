package device

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/hupe1980/bcache/internal/compress"
	"github.com/hupe1980/bcache/internal/hash"
)

// Codec selects the compression of blocks stored in an envelope.
type Codec = compress.Codec

// Envelope codecs.
const (
	CodecNone = compress.None
	CodecLZ4  = compress.LZ4
	CodecZstd = compress.Zstd
)

// ParseCodec parses "none", "lz4" or "zstd".
func ParseCodec(s string) (Codec, error) {
	return compress.ParseCodec(s)
}

// Envelope layout (little endian):
//
//	[0:4]   magic "BCK1"
//	[4]     codec
//	[5:8]   reserved
//	[8:12]  CRC32C of the raw block
//	[12:16] raw length
//	[16:]   payload
const envelopeHeaderSize = 16

var envelopeMagic = [4]byte{'B', 'C', 'K', '1'}

// ErrBadEnvelope is returned for stored data that is not a block envelope.
var ErrBadEnvelope = errors.New("malformed block envelope")

// EncodeBlock wraps p in an envelope, compressing it with codec when that
// shrinks it.
func EncodeBlock(codec compress.Codec, p []byte) ([]byte, error) {
	payload, used, err := compress.Compress(codec, p)
	if err != nil {
		return nil, fmt.Errorf("encode block: %w", err)
	}

	out := make([]byte, envelopeHeaderSize+len(payload))
	copy(out[0:4], envelopeMagic[:])
	out[4] = byte(used)
	binary.LittleEndian.PutUint32(out[8:], hash.CRC32C(p))
	binary.LittleEndian.PutUint32(out[12:], uint32(len(p)))
	copy(out[envelopeHeaderSize:], payload)
	return out, nil
}

// DecodeBlock unwraps an envelope into p and verifies its checksum.
func DecodeBlock(data, p []byte) error {
	if len(data) < envelopeHeaderSize || [4]byte(data[0:4]) != envelopeMagic {
		return ErrBadEnvelope
	}
	if raw := binary.LittleEndian.Uint32(data[12:]); int(raw) != len(p) {
		return fmt.Errorf("%w: raw length %d, want %d", ErrBadEnvelope, raw, len(p))
	}

	codec := compress.Codec(data[4])
	if err := compress.Decompress(codec, data[envelopeHeaderSize:], p); err != nil {
		return fmt.Errorf("%w: %w", ErrBadEnvelope, err)
	}
	if !hash.Verify(p, binary.LittleEndian.Uint32(data[8:])) {
		return ErrChecksum
	}
	return nil
}
