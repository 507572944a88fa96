// Package local implements filestore.Store on a directory tree, so exports
// dropped on a share are handled like objects in a bucket.
package local

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"

	"github.com/koustreak/ffiload/internal/errs"
	"github.com/koustreak/ffiload/internal/filestore"
)

// Driver serves keys as slash-separated paths below Root/bucket.
type Driver struct {
	root string
}

var _ filestore.Store = (*Driver)(nil)

// New returns a Driver rooted at cfg.Root, which must be a directory.
func New(cfg *filestore.Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	d := &Driver{root: cfg.Root}
	if err := d.Ping(context.Background()); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping checks that the root directory exists.
func (d *Driver) Ping(_ context.Context) error {
	fi, err := os.Stat(d.root)
	if err != nil {
		return mapError(err, "ping failed")
	}
	if !fi.IsDir() {
		return errs.Newf(errs.ErrKindInvalidInput, "%s is not a directory", d.root)
	}
	return nil
}

// Close is a no-op.
func (d *Driver) Close() error {
	return nil
}

// ListObjects returns the entries whose key starts with opts.Prefix, ordered
// by key. Without Recursive only the level named by the prefix is listed and
// subdirectories come back as IsDir entries ending in "/".
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	base := filepath.Join(d.root, filepath.FromSlash(bucket))

	var (
		out []filestore.ObjectInfo
		err error
	)
	if opts.Recursive {
		out, err = walk(ctx, base, opts.Prefix)
	} else {
		out, err = readLevel(base, opts.Prefix)
	}
	if err != nil {
		return nil, mapError(err, "failed to list objects")
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

func walk(ctx context.Context, base, prefix string) ([]filestore.ObjectInfo, error) {
	var out []filestore.ObjectInfo
	err := filepath.WalkDir(base, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(base, p)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return err
		}
		out = append(out, filestore.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
		return nil
	})
	return out, err
}

func readLevel(base, prefix string) ([]filestore.ObjectInfo, error) {
	dir := ""
	if i := strings.LastIndex(prefix, "/"); i >= 0 {
		dir = prefix[:i+1]
	}
	entries, err := os.ReadDir(filepath.Join(base, filepath.FromSlash(dir)))
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) && dir != "" {
			return nil, nil
		}
		return nil, err
	}

	var out []filestore.ObjectInfo
	for _, e := range entries {
		key := dir + e.Name()
		if !strings.HasPrefix(key, prefix) {
			continue
		}
		if e.IsDir() {
			out = append(out, filestore.ObjectInfo{Key: key + "/", IsDir: true})
			continue
		}
		info, err := e.Info()
		if err != nil {
			return nil, err
		}
		out = append(out, filestore.ObjectInfo{Key: key, Size: info.Size(), LastModified: info.ModTime()})
	}
	return out, nil
}

// GetObject opens the file at key.
func (d *Driver) GetObject(_ context.Context, bucket, key string) (filestore.Object, error) {
	p, err := d.path(bucket, key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(p)
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	fi, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, mapError(err, "failed to stat object after get")
	}
	return &object{File: f, info: &filestore.ObjectInfo{Key: key, Size: fi.Size(), LastModified: fi.ModTime()}}, nil
}

// MoveObject renames src to dst, creating dst's directory.
func (d *Driver) MoveObject(_ context.Context, bucket, src, dst string) error {
	from, err := d.path(bucket, src)
	if err != nil {
		return err
	}
	to, err := d.path(bucket, dst)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(to), 0o755); err != nil {
		return mapError(err, "failed to create target directory")
	}
	if err := os.Rename(from, to); err != nil {
		return mapError(err, "failed to move object")
	}
	return nil
}

// path resolves a key, rejecting keys that escape the bucket.
func (d *Driver) path(bucket, key string) (string, error) {
	clean := path.Clean("/" + key)
	if clean == "/" || strings.Contains(key, "..") {
		return "", errs.Newf(errs.ErrKindInvalidInput, "invalid object key %q", key)
	}
	return filepath.Join(d.root, filepath.FromSlash(bucket), filepath.FromSlash(clean)), nil
}

func mapError(err error, msg string) error {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return errs.Wrap(errs.ErrKindTimeout, msg, err)
	case errors.Is(err, fs.ErrNotExist):
		return errs.Wrap(errs.ErrKindNotFound, msg, err)
	case errors.Is(err, fs.ErrPermission):
		return errs.Wrap(errs.ErrKindPermissionDenied, msg, err)
	default:
		return errs.Wrap(errs.ErrKindQueryFailed, msg, err)
	}
}

type object struct {
	*os.File
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
