// Package minio serves export files from a MinIO or other S3-compatible
// bucket.
package minio

import (
	"context"
	"io"
	"sort"
	"strings"

	"github.com/koustreak/ffiload/internal/errs"
	"github.com/koustreak/ffiload/internal/filestore"
	miniogo "github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

var _ filestore.Store = (*Driver)(nil)

// Driver is a filestore.Store over one MinIO client. Safe for concurrent use.
type Driver struct {
	client *miniogo.Client
}

// New creates the client and pings the server before returning.
func New(ctx context.Context, cfg *filestore.Config) (*Driver, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	client, err := miniogo.New(cfg.Endpoint, &miniogo.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
		Region: cfg.Region,
	})
	if err != nil {
		return nil, errs.Wrap(errs.ErrKindConnectionFailed, "failed to create minio client", err)
	}

	d := &Driver{client: client}
	if err := d.Ping(ctx); err != nil {
		return nil, err
	}
	return d, nil
}

// Ping lists buckets, which needs both a reachable server and valid keys.
func (d *Driver) Ping(ctx context.Context) error {
	if _, err := d.client.ListBuckets(ctx); err != nil {
		return mapError(err, "ping failed")
	}
	return nil
}

// Close is a no-op; the client keeps no session.
func (d *Driver) Close() error {
	return nil
}

// ListObjects lists bucket below opts.Prefix. Zero-byte directory markers
// written by S3 consoles are dropped from recursive listings.
func (d *Driver) ListObjects(ctx context.Context, bucket string, opts filestore.ListOptions) ([]filestore.ObjectInfo, error) {
	var out []filestore.ObjectInfo
	for obj := range d.client.ListObjects(ctx, bucket, miniogo.ListObjectsOptions{
		Prefix:    opts.Prefix,
		Recursive: opts.Recursive,
	}) {
		if obj.Err != nil {
			return nil, mapError(obj.Err, "failed to list objects")
		}
		dir := strings.HasSuffix(obj.Key, "/")
		if dir && opts.Recursive {
			continue
		}
		out = append(out, filestore.ObjectInfo{
			Key:          obj.Key,
			Size:         obj.Size,
			LastModified: obj.LastModified,
			IsDir:        dir,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

// GetObject opens key. The SDK opens lazily, so the object is stat'ed here
// to surface a missing key before the first read.
func (d *Driver) GetObject(ctx context.Context, bucket, key string) (filestore.Object, error) {
	obj, err := d.client.GetObject(ctx, bucket, key, miniogo.GetObjectOptions{})
	if err != nil {
		return nil, mapError(err, "failed to get object")
	}
	stat, err := obj.Stat()
	if err != nil {
		obj.Close()
		return nil, mapError(err, "failed to stat object")
	}
	return &object{
		ReadCloser: obj,
		info:       &filestore.ObjectInfo{Key: key, Size: stat.Size, LastModified: stat.LastModified},
	}, nil
}

// MoveObject copies src to dst server-side and removes src. S3 has no rename.
func (d *Driver) MoveObject(ctx context.Context, bucket, src, dst string) error {
	if src == dst {
		return nil
	}
	if _, err := d.client.CopyObject(ctx,
		miniogo.CopyDestOptions{Bucket: bucket, Object: dst},
		miniogo.CopySrcOptions{Bucket: bucket, Object: src},
	); err != nil {
		return mapError(err, "failed to copy object")
	}
	if err := d.client.RemoveObject(ctx, bucket, src, miniogo.RemoveObjectOptions{}); err != nil {
		return mapError(err, "failed to remove moved object")
	}
	return nil
}

type object struct {
	io.ReadCloser
	info *filestore.ObjectInfo
}

func (o *object) Info() *filestore.ObjectInfo {
	return o.info
}
