package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/lakeops/metalake/internal/logging"
	"github.com/lakeops/metalake/internal/metrics"
	"github.com/lakeops/metalake/internal/storage"
)

// Collector drives the list → fetch → filter flow. Listing and filtering are
// sequential; fetches run on a bounded worker pool.
type Collector struct {
	lister  Lister
	fetcher Fetcher
	log     *slog.Logger
}

// New creates a Collector over the given storage collaborators.
func New(lister Lister, fetcher Fetcher) *Collector {
	return &Collector{
		lister:  lister,
		fetcher: fetcher,
		log:     logging.Component("collector"),
	}
}

// Collect lists sidecars in the requested window, fetches them in parallel
// and applies attribute filters. Sidecars that fail to fetch or parse are
// skipped, not fatal. TotalScanned counts the full listing before any
// MaxResults cap.
func (c *Collector) Collect(ctx context.Context, params CollectionParams) (*CollectionResult, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}

	start := time.Now()

	c.log.Info("starting collection",
		"bucket", params.Bucket,
		"prefix", params.Prefix,
		"start_time", params.StartTime,
		"end_time", params.EndTime,
	)

	infos, err := c.lister.ListSidecars(ctx, storage.ListQuery{
		Prefix:    params.Prefix,
		NotBefore: params.StartTime,
		NotAfter:  params.EndTime,
	})
	if err != nil {
		return nil, fmt.Errorf("listing sidecars: %w", err)
	}

	totalScanned := len(infos)
	c.log.Info("found sidecars", "count", totalScanned)

	if m := metrics.Get(); m != nil {
		m.IncScanned(params.Bucket, float64(totalScanned))
	}

	if params.MaxResults > 0 && len(infos) > params.MaxResults {
		infos = infos[:params.MaxResults]
		c.log.Info("capped listing", "max_results", params.MaxResults)
	}

	entries := c.fetchAll(ctx, params, infos)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	entries = applyFilters(entries, params.AttributeFilters, c.log)

	var transferred int64
	for _, e := range entries {
		transferred += e.FileSize
	}

	elapsed := time.Since(start)
	c.log.Info("collection complete",
		"collected", len(entries),
		"scanned", totalScanned,
		"duration_ms", elapsed.Milliseconds(),
	)

	if m := metrics.Get(); m != nil {
		m.IncCollected(params.Bucket, float64(len(entries)))
		m.ObserveCollectionDuration(params.Bucket, elapsed.Seconds())
		m.AddBytesTransferred(params.Bucket, float64(transferred))
	}

	return &CollectionResult{
		Entries:           entries,
		TotalScanned:      totalScanned,
		ExecutionTime:     elapsed,
		DataTransferBytes: transferred,
	}, nil
}

// fetchAll downloads and decodes sidecars on a worker pool. Results arrive
// in completion order. Fetch failures are counted and dropped.
func (c *Collector) fetchAll(ctx context.Context, params CollectionParams, infos []storage.ObjectInfo) []MetadataEntry {
	if len(infos) == 0 {
		return nil
	}

	workers := params.workers()
	if workers > len(infos) {
		workers = len(infos)
	}

	tasks := make(chan storage.ObjectInfo, workers*2)
	results := make(chan MetadataEntry, workers*2)

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			c.workerLoop(ctx, workerID, params.Bucket, tasks, results)
		}(i)
	}

	// Dispatcher
	go func() {
		defer close(tasks)
		for _, info := range infos {
			select {
			case <-ctx.Done():
				return
			case tasks <- info:
			}
		}
	}()

	// Close results when workers finish
	go func() {
		wg.Wait()
		close(results)
	}()

	entries := make([]MetadataEntry, 0, len(infos))
	for e := range results {
		entries = append(entries, e)
	}
	return entries
}

// workerLoop fetches sidecars until the task channel closes or the context
// is canceled.
func (c *Collector) workerLoop(ctx context.Context, workerID int, bucket string, tasks <-chan storage.ObjectInfo, results chan<- MetadataEntry) {
	log := logging.WorkerLogger(workerID)

	for info := range tasks {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if m := metrics.Get(); m != nil {
			m.FetchInFlight.Inc()
		}
		attrs, ok := c.fetcher.FetchSidecar(ctx, info.Key)
		if m := metrics.Get(); m != nil {
			m.FetchInFlight.Dec()
		}
		if !ok {
			if m := metrics.Get(); m != nil {
				m.IncFetchFailures(bucket)
			}
			continue
		}

		log.Debug("fetched sidecar", "key", info.Key, "size", info.SizeBytes)

		results <- MetadataEntry{
			Bucket:          bucket,
			OriginalFileKey: storage.OriginalKey(info.Key),
			MetadataFileKey: info.Key,
			LastModified:    info.LastModified,
			FileSize:        info.SizeBytes,
			Metadata:        attrs,
		}
	}
}
