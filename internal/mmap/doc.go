// Package mmap maps fixed-size files into memory for shared read-write
// access. Writes through the mapping reach the file; Sync flushes a byte
// range to stable storage.
package mmap
