package report

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/klauspost/compress/zstd"
	"github.com/parquet-go/parquet-go"

	"github.com/lakeops/metalake/internal/collector"
)

// entryRow is the flat Parquet schema for one collected entry. Attribute
// maps are carried as compact JSON so the schema stays stable across runs
// with different attribute keys.
type entryRow struct {
	Bucket         string    `parquet:"bucket"`
	SidecarKey     string    `parquet:"sidecar_key"`
	OriginalKey    string    `parquet:"original_key"`
	Extension      string    `parquet:"extension"`
	LastModified   time.Time `parquet:"last_modified,timestamp(millisecond)"`
	SizeBytes      int64     `parquet:"size_bytes"`
	AttributesJSON string    `parquet:"attributes_json"`
}

func newEntryRow(e collector.MetadataEntry) (entryRow, error) {
	attrs, err := json.Marshal(e.Metadata)
	if err != nil {
		return entryRow{}, fmt.Errorf("encode attributes of %s: %w", e.MetadataFileKey, err)
	}
	return entryRow{
		Bucket:         e.Bucket,
		SidecarKey:     e.MetadataFileKey,
		OriginalKey:    e.OriginalFileKey,
		Extension:      e.FileExtension(),
		LastModified:   e.LastModified,
		SizeBytes:      e.FileSize,
		AttributesJSON: string(attrs),
	}, nil
}

// exportJSONL streams entries as zstd-compressed JSON lines, one entry per
// line in the collector's entry encoding.
func (a *Assembler) exportJSONL(ctx context.Context, key string, entries []collector.MetadataEntry) error {
	w, err := a.store.NewWriter(ctx, key, "application/zstd")
	if err != nil {
		return err
	}

	zw, err := zstd.NewWriter(w)
	if err != nil {
		w.Close()
		return fmt.Errorf("create zstd writer: %w", err)
	}

	enc := json.NewEncoder(zw)
	for i := range entries {
		if err := enc.Encode(&entries[i]); err != nil {
			zw.Close()
			w.Close()
			return fmt.Errorf("encode entry %s: %w", entries[i].MetadataFileKey, err)
		}
	}

	if err := zw.Close(); err != nil {
		w.Close()
		return fmt.Errorf("flush zstd writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}

// exportParquet writes entries as a Parquet dataset with the entryRow
// schema. An empty run still produces a valid zero-row file.
func (a *Assembler) exportParquet(ctx context.Context, key string, entries []collector.MetadataEntry) error {
	rows := make([]entryRow, 0, len(entries))
	for _, e := range entries {
		row, err := newEntryRow(e)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}

	w, err := a.store.NewWriter(ctx, key, "application/vnd.apache.parquet")
	if err != nil {
		return err
	}

	pw := parquet.NewGenericWriter[entryRow](w)
	if len(rows) > 0 {
		if _, err := pw.Write(rows); err != nil {
			pw.Close()
			w.Close()
			return fmt.Errorf("write parquet rows: %w", err)
		}
	}
	if err := pw.Close(); err != nil {
		w.Close()
		return fmt.Errorf("close parquet writer: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("commit %s: %w", key, err)
	}
	return nil
}
