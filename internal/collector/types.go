// Package collector gathers metadata sidecars from object storage and
// derives schema and aggregate statistics from their contents. The set of
// attribute keys is fully dynamic: nothing about the attribute shape is
// known ahead of a run.
package collector

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/lakeops/metalake/internal/storage"
)

// DefaultParallelism bounds concurrent sidecar fetches when the caller does
// not say otherwise.
const DefaultParallelism = 10

var (
	// ErrBucketRequired is returned when CollectionParams has no bucket.
	ErrBucketRequired = errors.New("collector: bucket name is required")
)

// Lister enumerates sidecar objects in storage.
type Lister interface {
	ListSidecars(ctx context.Context, q storage.ListQuery) ([]storage.ObjectInfo, error)
}

// Fetcher retrieves and decodes a single sidecar. A false return means the
// sidecar could not be read or parsed; the collector skips it.
type Fetcher interface {
	FetchSidecar(ctx context.Context, key string) (map[string]any, bool)
}

// MetadataEntry is one collected sidecar: where it lives in storage plus its
// decoded attribute map.
type MetadataEntry struct {
	Bucket          string         `json:"bucket"`
	OriginalFileKey string         `json:"original_file_key"`
	MetadataFileKey string         `json:"metadata_file_key"`
	LastModified    time.Time      `json:"last_modified"`
	FileSize        int64          `json:"file_size"`
	Metadata        map[string]any `json:"metadata"`
}

// FileExtension returns the lowercased text after the final dot of the
// original file key, or "" when the key contains no dot.
func (e MetadataEntry) FileExtension() string {
	idx := strings.LastIndex(e.OriginalFileKey, ".")
	if idx < 0 {
		return ""
	}
	return strings.ToLower(e.OriginalFileKey[idx+1:])
}

// CollectionParams describes one collection run.
type CollectionParams struct {
	// Bucket is the bucket entries are attributed to. Required.
	Bucket string

	// Prefix narrows the listing. Empty means the store's root prefix.
	Prefix string

	// StartTime and EndTime bound the sidecar last-modified window,
	// inclusive on both ends. Zero values leave that side open.
	StartTime time.Time
	EndTime   time.Time

	// AttributeFilters keeps only entries whose attribute values match.
	// Each key maps to the set of accepted rendered values; an entry must
	// satisfy every key to survive. List-valued attributes match when any
	// element is accepted.
	AttributeFilters map[string][]string

	// MaxResults caps how many listed sidecars are fetched. Zero means
	// no cap. Applied after listing, before fetching.
	MaxResults int

	// Parallelism bounds concurrent fetches. Zero or negative falls back
	// to DefaultParallelism.
	Parallelism int
}

func (p CollectionParams) validate() error {
	if p.Bucket == "" {
		return ErrBucketRequired
	}
	return nil
}

func (p CollectionParams) workers() int {
	if p.Parallelism < 1 {
		return DefaultParallelism
	}
	return p.Parallelism
}

// CollectionResult is what one run produced. Entries are in completion
// order, not listing order.
type CollectionResult struct {
	Entries           []MetadataEntry
	TotalScanned      int
	ExecutionTime     time.Duration
	DataTransferBytes int64
}

// TotalCollected is the number of entries that survived fetch and filtering.
func (r *CollectionResult) TotalCollected() int {
	return len(r.Entries)
}
