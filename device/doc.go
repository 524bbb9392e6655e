// Package device defines the block-device boundary of the buffer cache.
//
// A BlockDevice reads and writes whole blocks of BlockSize bytes,
// synchronously. The cache never retries or recovers a failed device
// operation; it reports the error to its caller.
//
// # Built-in Implementations
//
//   - MemoryDevice: in-memory blocks, for tests and benchmarks
//   - FileDevice: a fixed-size disk image mapped read-write
//   - Throttled: wraps any device with a resource.Controller
//   - s3.Device, s3.DynamoDevice: blocks as S3 objects or DynamoDB items
//   - minio.Device: blocks as objects in MinIO or any S3-compatible store
//
// Object-store backends store each block as an envelope (see EncodeBlock)
// carrying a CRC32C checksum and an optionally compressed payload. Blocks
// that were never written read as zeros.
package device
