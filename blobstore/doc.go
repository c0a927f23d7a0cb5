// Package blobstore provides storage abstraction for serialized index
// artifacts.
//
// Store is the interface for reading and writing artifacts. Implementations
// must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - LocalStore: local filesystem with atomic writes
//   - MemoryStore: in-memory store for tests
//   - s3.Store: Amazon S3 with multipart uploads
//   - minio.Store: MinIO and other S3-compatible storage
package blobstore
