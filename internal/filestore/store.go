// Package filestore is where export files wait to be imported and where they
// are filed away afterwards. The local and minio subpackages implement Store;
// errors come back as *errs.Error kinds (NotFound, PermissionDenied, ...).
//
//	store, err := local.New(filestore.LocalConfig("/srv/ffi"))
//	objs, err := store.ListObjects(ctx, "exports", filestore.ListOptions{Prefix: "incoming/", Recursive: true})
package filestore

import (
	"context"
)

// Store is implemented by every provider.
type Store interface {
	// Ping verifies the storage backend is reachable.
	Ping(ctx context.Context) error

	// Close releases any held resources.
	Close() error

	// ListObjects returns the objects in bucket that match opts, ordered by key.
	ListObjects(ctx context.Context, bucket string, opts ListOptions) ([]ObjectInfo, error)

	// GetObject opens the object at key for reading.
	GetObject(ctx context.Context, bucket, key string) (Object, error)

	// MoveObject renames src to dst inside bucket, replacing dst.
	MoveObject(ctx context.Context, bucket, src, dst string) error
}
