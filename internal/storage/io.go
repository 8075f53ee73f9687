package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"gocloud.dev/blob"
)

// FetchSidecar downloads and decodes one sidecar object. It returns
// (attributes, true) on success and (nil, false) for any failure — missing
// object, read error, or malformed JSON. Failures are logged, never raised:
// a single broken sidecar must not abort a collection run.
func (s *Store) FetchSidecar(ctx context.Context, key string) (map[string]any, bool) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		s.log.Warn("sidecar fetch failed", "bucket", s.name, "key", key, "error", err)
		return nil, false
	}

	var attrs map[string]any
	if err := json.Unmarshal(data, &attrs); err != nil {
		s.log.Warn("sidecar decode failed", "bucket", s.name, "key", key, "error", err)
		return nil, false
	}

	return attrs, true
}

// ReadAll returns the full contents of an object.
func (s *Store) ReadAll(ctx context.Context, key string) ([]byte, error) {
	data, err := s.bucket.ReadAll(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", s.name, key, err)
	}
	return data, nil
}

// ReadAtMost returns up to limit bytes of an object. Oversized objects are
// truncated, not rejected.
func (s *Store) ReadAtMost(ctx context.Context, key string, limit int64) ([]byte, error) {
	r, err := s.bucket.NewReader(ctx, key, nil)
	if err != nil {
		return nil, fmt.Errorf("open %s/%s: %w", s.name, key, err)
	}
	defer r.Close()

	data, err := io.ReadAll(io.LimitReader(r, limit))
	if err != nil {
		return nil, fmt.Errorf("read %s/%s: %w", s.name, key, err)
	}
	return data, nil
}

// WriteBytes stores data at key with the given content type.
func (s *Store) WriteBytes(ctx context.Context, key string, data []byte, contentType string) error {
	opts := &blob.WriterOptions{ContentType: contentType}
	if err := s.bucket.WriteAll(ctx, key, data, opts); err != nil {
		return fmt.Errorf("write %s/%s: %w", s.name, key, err)
	}
	return nil
}

// WriteJSON stores v as indented JSON at key.
func (s *Store) WriteJSON(ctx context.Context, key string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal %s: %w", key, err)
	}
	return s.WriteBytes(ctx, key, data, "application/json")
}

/// WriteSidecar stores the canonical sidecar for originalKey: the raw
// attribute object itself, no wrapper.
func (s *Store) WriteSidecar(ctx context.Context, originalKey string, attrs map[string]any) error {
	return s.WriteJSON(ctx, SidecarKey(originalKey), attrs)
}

// Exists reports whether an object is present.
func (s *Store) Exists(ctx context.Context, key string) (bool, error) {
	ok, err := s.bucket.Exists(ctx, key)
	if err != nil {
		return false, fmt.Errorf("stat %s/%s: %w", s.name, key, err)
	}
	return ok, nil
}

// NewWriter opens a streaming writer for key, used for large artifacts
// (parquet exports, compressed snapshots). The caller must Close it.
func (s *Store) NewWriter(ctx context.Context, key, contentType string) (io.WriteCloser, error) {
	w, err := s.bucket.NewWriter(ctx, key, &blob.WriterOptions{ContentType: contentType})
	if err != nil {
		return nil, fmt.Errorf("create writer for %s/%s: %w", s.name, key, err)
	}
	return w, nil
}
