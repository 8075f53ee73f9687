package analytics

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestStateSaveLoad(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewStateManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateManager: %v", err)
	}

	want := &RunState{
		LastWindowEnd: time.Date(2026, 3, 5, 9, 0, 0, 0, time.UTC),
		LastRunID:     "run-1",
		UpdatedAt:     time.Date(2026, 3, 5, 9, 0, 1, 0, time.UTC),
	}
	if err := mgr.Save(ctx, want); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := mgr.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !got.LastWindowEnd.Equal(want.LastWindowEnd) || got.LastRunID != want.LastRunID {
		t.Errorf("loaded state = %+v, want %+v", got, want)
	}
}

func TestStateLoadMissing(t *testing.T) {
	mgr, err := NewStateManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateManager: %v", err)
	}

	if _, err := mgr.Load(context.Background()); !errors.Is(err, ErrNoState) {
		t.Errorf("err = %v, want ErrNoState", err)
	}
}

func TestStateSaveOverwrites(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewStateManager(t.TempDir())
	if err != nil {
		t.Fatalf("NewStateManager: %v", err)
	}

	first := &RunState{LastRunID: "run-1", LastWindowEnd: time.Now().UTC()}
	second := &RunState{LastRunID: "run-2", LastWindowEnd: time.Now().UTC().Add(time.Hour)}
	if err := mgr.Save(ctx, first); err != nil {
		t.Fatalf("first Save: %v", err)
	}
	if err := mgr.Save(ctx, second); err != nil {
		t.Fatalf("second Save: %v", err)
	}

	got, err := mgr.Load(ctx)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.LastRunID != "run-2" {
		t.Errorf("last run id = %q, want run-2", got.LastRunID)
	}
}

func TestStateSaveLeavesNoTempFile(t *testing.T) {
	dir := t.TempDir()
	mgr, err := NewStateManager(dir)
	if err != nil {
		t.Fatalf("NewStateManager: %v", err)
	}
	if err := mgr.Save(context.Background(), &RunState{LastRunID: "run-1"}); err != nil {
		t.Fatalf("Save: %v", err)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) == ".tmp" {
			t.Errorf("temp file %s left behind", entry.Name())
		}
	}
	if len(entries) != 1 || entries[0].Name() != stateFilename {
		t.Errorf("state dir entries = %v, want only %s", entries, stateFilename)
	}
}

func TestStateDisabled(t *testing.T) {
	ctx := context.Background()
	mgr, err := NewStateManager("")
	if err != nil {
		t.Fatalf("NewStateManager: %v", err)
	}

	if err := mgr.Save(ctx, &RunState{LastRunID: "run-1"}); err != nil {
		t.Errorf("noop Save: %v", err)
	}
	if _, err := mgr.Load(ctx); !errors.Is(err, ErrNoState) {
		t.Errorf("noop Load err = %v, want ErrNoState", err)
	}
}
