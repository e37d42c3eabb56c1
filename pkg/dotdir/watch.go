package dotdir

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

const (
	watchFile = "watch.json"
)

// WatchState records which document each watched file was ingested as, so a
// changed file replaces its chunks instead of creating a new document.
type WatchState struct {
	// Files is keyed by absolute file path.
	Files map[string]WatchedFile `json:"files"`
}

// WatchedFile is the last ingested version of one file.
type WatchedFile struct {
	DocumentID string    `json:"document_id"`
	ModTime    time.Time `json:"mod_time"`
	Size       int64     `json:"size"`
}

// Changed reports whether info describes a different version of the file.
func (w WatchedFile) Changed(info os.FileInfo) bool {
	return !w.ModTime.Equal(info.ModTime()) || w.Size != info.Size()
}

// LoadWatchState loads the watch state from a target .folio/watch.json.
// Returns an empty state if no file exists.
func (m *Manager) LoadWatchState(overrideDir string) (*WatchState, error) {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return nil, err
	}

	state := &WatchState{Files: make(map[string]WatchedFile)}

	data, err := os.ReadFile(filepath.Join(dir, watchFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return state, nil
		}
		return nil, fmt.Errorf("reading watch state: %w", err)
	}

	if err := json.Unmarshal(data, state); err != nil {
		return nil, fmt.Errorf("parsing watch state: %w", err)
	}
	if state.Files == nil {
		state.Files = make(map[string]WatchedFile)
	}

	return state, nil
}

// SaveWatchState persists the watch state to a target .folio/watch.json.
func (m *Manager) SaveWatchState(state *WatchState, overrideDir string) error {
	if state == nil {
		return errors.New("cannot save nil watch state")
	}

	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	data, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling watch state: %w", err)
	}

	if err := os.WriteFile(filepath.Join(dir, watchFile), data, 0o600); err != nil {
		return fmt.Errorf("writing watch state: %w", err)
	}

	return nil
}

// ClearWatchState removes the watch state file. Returns nil if the file
// doesn't exist.
func (m *Manager) ClearWatchState(overrideDir string) error {
	dir, err := m.Target(overrideDir)
	if err != nil {
		return err
	}

	if err := os.Remove(filepath.Join(dir, watchFile)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("removing watch state: %w", err)
	}

	return nil
}
