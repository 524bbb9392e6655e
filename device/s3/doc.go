// Package s3 provides block devices backed by Amazon S3 and DynamoDB.
//
// Device stores each block as one object under a key prefix. DynamoDevice
// stores each block as one item keyed by (volume, blockno). Both store block
// envelopes (see device.EncodeBlock) and read never-written blocks as zeros.
//
// UploadImage pushes a whole disk image with the multipart uploader.
package s3
