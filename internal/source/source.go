// Package source lists pending export files in a filestore bucket and moves
// them aside once imported.
package source

import (
	"context"
	"io"
	"path"
	"strings"

	"github.com/koustreak/ffiload/internal/filestore"
	"github.com/koustreak/ffiload/internal/filestore/local"
	"github.com/koustreak/ffiload/internal/filestore/minio"
)

// DefaultProcessedPrefix is where imported files are moved, relative to the
// source prefix.
const DefaultProcessedPrefix = "processed/"

// Options locates the exports inside a store.
type Options struct {
	Bucket string

	// Prefix restricts the source to keys below it, e.g. "incoming/".
	Prefix string

	// Processed is the sub-prefix imported files are moved under.
	// Empty means DefaultProcessedPrefix.
	Processed string
}

// File is one pending export.
type File struct {
	Key  string
	Name string
	Size int64
}

// Source is a set of export files in one bucket.
type Source struct {
	store filestore.Store
	opts  Options
}

// Open connects the store described by cfg.
func Open(ctx context.Context, cfg *filestore.Config) (filestore.Store, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Provider == filestore.ProviderMinIO {
		return unwrap(minio.New(ctx, cfg))
	}
	return unwrap(local.New(cfg))
}

// unwrap keeps a failed constructor from yielding a non-nil interface
// holding a nil driver.
func unwrap[T filestore.Store](s T, err error) (filestore.Store, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// New returns a Source reading from store.
func New(store filestore.Store, opts Options) *Source {
	if opts.Processed == "" {
		opts.Processed = DefaultProcessedPrefix
	}
	if !strings.HasSuffix(opts.Processed, "/") {
		opts.Processed += "/"
	}
	if opts.Prefix != "" && !strings.HasSuffix(opts.Prefix, "/") {
		opts.Prefix += "/"
	}
	return &Source{store: store, opts: opts}
}

// List returns the pending .xml exports ordered by key. Files already moved
// under the processed prefix are not pending.
func (s *Source) List(ctx context.Context) ([]File, error) {
	infos, err := s.store.ListObjects(ctx, s.opts.Bucket, filestore.ListOptions{
		Prefix:    s.opts.Prefix,
		Recursive: true,
	})
	if err != nil {
		return nil, err
	}

	done := s.opts.Prefix + s.opts.Processed
	var out []File
	for _, info := range infos {
		if info.IsDir || strings.HasPrefix(info.Key, done) {
			continue
		}
		if !strings.EqualFold(path.Ext(info.Key), ".xml") {
			continue
		}
		out = append(out, File{Key: info.Key, Name: info.Name(), Size: info.Size})
	}
	return out, nil
}

// Open returns the content of the export at key.
func (s *Source) Open(ctx context.Context, key string) (io.ReadCloser, error) {
	return s.store.GetObject(ctx, s.opts.Bucket, key)
}

// MarkProcessed moves the export at key under the processed prefix and
// returns its new key.
func (s *Source) MarkProcessed(ctx context.Context, key string) (string, error) {
	rel := strings.TrimPrefix(key, s.opts.Prefix)
	dst := s.opts.Prefix + s.opts.Processed + rel
	if err := s.store.MoveObject(ctx, s.opts.Bucket, key, dst); err != nil {
		return "", err
	}
	return dst, nil
}

// Ping checks the underlying store is reachable.
func (s *Source) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// Close releases the underlying store.
func (s *Source) Close() error {
	return s.store.Close()
}
