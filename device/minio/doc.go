// Package minio provides a block device backed by MinIO or any
// S3-compatible object store.
package minio
