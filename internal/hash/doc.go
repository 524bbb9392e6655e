// Package hash provides the checksum used to protect stored blocks.
//
// All block envelopes carry a CRC32-Castagnoli (CRC32C) checksum of the raw
// payload. Go's crc32 package uses SSE4.2 / ARM CRC instructions when they
// are available.
package hash
