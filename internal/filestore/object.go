package filestore

import (
	"io"
	"path"
	"time"
)

// ObjectInfo describes one entry of a listing.
type ObjectInfo struct {
	// Key is the slash-separated path inside the bucket, e.g.
	// "incoming/unit-a.xml". Directory entries end in "/".
	Key          string
	Size         int64
	LastModified time.Time
	IsDir        bool
}

// Name is the last element of Key.
func (o ObjectInfo) Name() string {
	return path.Base(o.Key)
}

// Object streams one export file. Callers close it after reading.
type Object interface {
	io.ReadCloser
	Info() *ObjectInfo
}

// ListOptions filters ListObjects.
type ListOptions struct {
	// Prefix keeps keys starting with it; "" keeps everything.
	Prefix string

	// Recursive lists every object below Prefix. Otherwise only the level
	// Prefix names is listed and subdirectories come back as IsDir entries.
	Recursive bool

	// Limit caps the result after ordering; 0 means no cap.
	Limit int
}
