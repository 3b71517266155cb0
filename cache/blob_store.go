package cache

import "time"

// BlobInfo describes one stored blob.
type BlobInfo struct {
	Size    int64
	ModTime time.Time
}

// BlobStore is the persistence boundary of the disk tier. Implementations
// can use different mechanisms (filesystem, app container storage, etc.) as
// long as keys map to durable byte blobs with a size and modification time.
type BlobStore interface {
	// Read returns the blob for key, or an error if it does not exist.
	Read(key string) ([]byte, error)

	// Write stores the blob under key, replacing any previous value.
	Write(key string, data []byte) error

	// ListKeys returns every stored key, in no particular order.
	ListKeys() ([]string, error)

	// Delete removes the blob for key. Deleting a missing key is not an error.
	Delete(key string) error

	// Stat returns size and modification time for key.
	Stat(key string) (BlobInfo, error)
}
