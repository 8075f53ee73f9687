package storage

import (
	"context"
	"fmt"
	"io"
	"time"

	"gocloud.dev/blob"
)

// ObjectInfo describes one listed object.
type ObjectInfo struct {
	Key          string
	LastModified time.Time
	SizeBytes    int64
}

// ListQuery bounds a sidecar listing. Zero time values leave that side of the
// window open. An empty Prefix falls back to the store's configured root
// prefix.
type ListQuery struct {
	Prefix    string
	NotBefore time.Time
	NotAfter  time.Time
}

// ListSidecars enumerates sidecar objects under the query prefix whose
// last-modified time falls inside the window. Pagination is handled by the
// underlying iterator; the full set is returned in listing order.
func (s *Store) ListSidecars(ctx context.Context, q ListQuery) ([]ObjectInfo, error) {
	prefix := q.Prefix
	if prefix == "" {
		prefix = s.rootPrefix
	}

	var out []ObjectInfo

	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.name, prefix, err)
		}
		if obj.IsDir {
			continue
		}
		if !IsSidecarKey(obj.Key) {
			continue
		}
		if !q.NotBefore.IsZero() && obj.ModTime.Before(q.NotBefore) {
			continue
		}
		if !q.NotAfter.IsZero() && obj.ModTime.After(q.NotAfter) {
			continue
		}

		out = append(out, ObjectInfo{
			Key:          obj.Key,
			LastModified: obj.ModTime,
			SizeBytes:    obj.Size,
		})
	}

	return out, nil
}

// ListKeys enumerates all object keys under prefix, sidecars included.
func (s *Store) ListKeys(ctx context.Context, prefix string) ([]string, error) {
	var keys []string

	iter := s.bucket.List(&blob.ListOptions{Prefix: prefix})
	for {
		obj, err := iter.Next(ctx)
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("list %s/%s: %w", s.name, prefix, err)
		}
		if obj.IsDir {
			continue
		}
		keys = append(keys, obj.Key)
	}

	return keys, nil
}
