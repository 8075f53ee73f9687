package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// ErrNoState is returned when no run state has been saved yet.
var ErrNoState = errors.New("analytics: no run state found")

const stateFilename = "analytics_state.json"

// RunState records where the last scheduled run ended, so a restarted
// scheduler resumes the collection window instead of starting a fresh one.
type RunState struct {
	LastWindowEnd time.Time `json:"last_window_end"`
	LastRunID     string    `json:"last_run_id"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// StateManager persists run state across scheduler restarts.
type StateManager interface {
	// Load reads the saved state, or ErrNoState when none exists.
	Load(ctx context.Context) (*RunState, error)

	// Save persists the state.
	Save(ctx context.Context, st *RunState) error
}

// NewStateManager creates a file-backed state manager rooted at dir. An empty
// dir disables persistence: every tick gets the default window.
func NewStateManager(dir string) (StateManager, error) {
	if dir == "" {
		return &noopState{}, nil
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("create state directory %s: %w", dir, err)
	}

	return &fileState{path: filepath.Join(dir, stateFilename)}, nil
}

// fileState persists run state to a single JSON file.
type fileState struct {
	path string
}

func (m *fileState) Load(ctx context.Context) (*RunState, error) {
	data, err := os.ReadFile(m.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNoState
		}
		return nil, fmt.Errorf("read state file: %w", err)
	}

	var st RunState
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("parse state file: %w", err)
	}
	return &st, nil
}

// Save writes atomically via a temp file and rename, so a crash mid-write
// never leaves a truncated state file behind.
func (m *fileState) Save(ctx context.Context, st *RunState) error {
	data, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal state: %w", err)
	}

	tempPath := m.path + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("write state temp file: %w", err)
	}

	if err := os.Rename(tempPath, m.path); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("rename state file: %w", err)
	}

	return nil
}

// noopState is used when no state directory is configured.
type noopState struct{}

func (m *noopState) Load(ctx context.Context) (*RunState, error) {
	return nil, ErrNoState
}

func (m *noopState) Save(ctx context.Context, st *RunState) error {
	return nil
}
