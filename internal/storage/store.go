// Package storage provides the object-storage layer for metalake.
//
// All access goes through gocloud.dev blob buckets, so the same Store works
// against S3-compatible services, GCS, a local directory, or an in-memory
// bucket for tests. The package also owns the sidecar naming convention.
package storage

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"gocloud.dev/blob"
	"gocloud.dev/blob/fileblob"
	"gocloud.dev/blob/memblob"

	_ "gocloud.dev/blob/gcsblob" // GCS driver
	_ "gocloud.dev/blob/s3blob"  // S3 driver

	"github.com/lakeops/metalake/internal/logging"
)

// SidecarSuffix is the fixed suffix appended to an object key to name its
// metadata sidecar. A sidecar body is the raw attribute JSON object itself,
// with no wrapper.
const SidecarSuffix = ".metadata.json"

// SidecarKey returns the sidecar key for an original object key.
func SidecarKey(originalKey string) string {
	return originalKey + SidecarSuffix
}

// OriginalKey returns the original object key for a sidecar key.
func OriginalKey(sidecarKey string) string {
	return strings.TrimSuffix(sidecarKey, SidecarSuffix)
}

// IsSidecarKey reports whether key names a sidecar object.
func IsSidecarKey(key string) bool {
	return strings.HasSuffix(key, SidecarSuffix)
}

// Config selects and parameterizes a storage backend.
type Config struct {
	Backend  string // "s3" | "gcs" | "local" | "mem"
	Bucket   string
	Prefix   string // default listing root, e.g. "uploads/"
	Region   string
	Endpoint string // custom S3-compatible endpoint (MinIO, R2, B2)
	LocalDir string
}

// Store is a bucket-scoped object store.
type Store struct {
	bucket     *blob.Bucket
	name       string
	rootPrefix string
	log        *slog.Logger
}

// Open creates a Store for the configured backend and verifies the bucket is
// reachable, so a missing or unauthorized bucket fails at construction rather
// than on first use.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	var (
		bucket *blob.Bucket
		name   string
		err    error
	)

	switch cfg.Backend {
	case "s3":
		bucket, err = openS3(ctx, cfg)
		name = cfg.Bucket
	case "gcs":
		bucket, err = blob.OpenBucket(ctx, "gs://"+cfg.Bucket)
		name = cfg.Bucket
	case "local":
		bucket, err = fileblob.OpenBucket(cfg.LocalDir, &fileblob.Options{CreateDir: true})
		name = cfg.LocalDir
	case "mem":
		bucket = memblob.OpenBucket(nil)
		name = cfg.Bucket
		if name == "" {
			name = "mem"
		}
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Backend)
	}
	if err != nil {
		return nil, fmt.Errorf("open %s bucket %s: %w", cfg.Backend, name, err)
	}

	accessible, err := bucket.IsAccessible(ctx)
	if err != nil {
		bucket.Close()
		return nil, fmt.Errorf("probe bucket %s: %w", name, err)
	}
	if !accessible {
		bucket.Close()
		return nil, fmt.Errorf("bucket %s is not accessible", name)
	}

	return &Store{
		bucket:     bucket,
		name:       name,
		rootPrefix: cfg.Prefix,
		log:        logging.Component("storage"),
	}, nil
}

func openS3(ctx context.Context, cfg Config) (*blob.Bucket, error) {
	bucketURL := "s3://" + cfg.Bucket

	params := url.Values{}
	if cfg.Region != "" {
		params.Set("region", cfg.Region)
	}
	if cfg.Endpoint != "" {
		params.Set("endpoint", cfg.Endpoint)
		params.Set("s3ForcePathStyle", "true")
	}
	if len(params) > 0 {
		bucketURL += "?" + params.Encode()
	}

	return blob.OpenBucket(ctx, bucketURL)
}

// Bucket returns the bucket name the store is scoped to.
func (s *Store) Bucket() string {
	return s.name
}

// Close releases the underlying bucket.
func (s *Store) Close() error {
	return s.bucket.Close()
}
