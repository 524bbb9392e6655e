// Package compress encodes block payloads for remote storage.
//
// LZ4 favours speed, Zstandard favours ratio. Compress falls back to storing
// the payload raw when compression does not pay off, and reports which codec
// it actually used so the reader can decode it.
package compress

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Codec identifies a payload encoding.
type Codec uint8

const (
	// None stores the payload raw.
	None Codec = 0
	// LZ4 uses LZ4 block compression.
	LZ4 Codec = 1
	// Zstd uses Zstandard compression.
	Zstd Codec = 2
)

var (
	// ErrUnknownCodec is returned for an unrecognised codec id or name.
	ErrUnknownCodec = errors.New("compress: unknown codec")
	// ErrSizeMismatch is returned when a payload does not decode to the expected length.
	ErrSizeMismatch = errors.New("compress: decompressed size mismatch")
)

// String implements fmt.Stringer.
func (c Codec) String() string {
	switch c {
	case None:
		return "none"
	case LZ4:
		return "lz4"
	case Zstd:
		return "zstd"
	default:
		return fmt.Sprintf("codec(%d)", uint8(c))
	}
}

// ParseCodec maps a codec name to a Codec. The empty string means None.
func ParseCodec(name string) (Codec, error) {
	switch strings.ToLower(name) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd":
		return Zstd, nil
	default:
		return None, fmt.Errorf("%w: %q", ErrUnknownCodec, name)
	}
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

// Compress encodes data with c. If the result is not at least 10% smaller
// than data, it returns data unchanged and None.
func Compress(c Codec, data []byte) ([]byte, Codec, error) {
	if c == None || len(data) == 0 {
		return data, None, nil
	}

	var out []byte
	switch c {
	case LZ4:
		buf := make([]byte, lz4.CompressBlockBound(len(data)))
		n, err := lz4.CompressBlock(data, buf, nil)
		if err != nil {
			return nil, None, err
		}
		out = buf[:n]
	case Zstd:
		enc := getZstdEncoder()
		out = enc.EncodeAll(data, nil)
		zstdEncoderPool.Put(enc)
	default:
		return nil, None, fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(c))
	}

	// n == 0 means LZ4 found the block incompressible.
	if len(out) == 0 || float64(len(out)) > float64(len(data))*0.9 {
		return data, None, nil
	}
	return out, c, nil
}

// Decompress decodes src, encoded with c, into dst. dst must have exactly
// the uncompressed length.
func Decompress(c Codec, src, dst []byte) error {
	switch c {
	case None:
		if len(src) != len(dst) {
			return ErrSizeMismatch
		}
		copy(dst, src)
		return nil
	case LZ4:
		n, err := lz4.UncompressBlock(src, dst)
		if err != nil {
			return err
		}
		if n != len(dst) {
			return ErrSizeMismatch
		}
		return nil
	case Zstd:
		dec := getZstdDecoder()
		defer zstdDecoderPool.Put(dec)

		out, err := dec.DecodeAll(src, dst[:0])
		if err != nil {
			return err
		}
		if len(out) != len(dst) {
			return ErrSizeMismatch
		}
		return nil
	default:
		return fmt.Errorf("%w: %d", ErrUnknownCodec, uint8(c))
	}
}
