// Package jsonfile persists the alert snapshot as a small JSON document.
package jsonfile

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	alerts "andon-cloud/internal/alerts/domain"
)

// StateStore keeps the alert state in a JSON file.
type StateStore struct {
	mu   sync.Mutex
	path string
}

// NewStateStore constructs a file-backed store.
func NewStateStore(path string) (*StateStore, error) {
	if path == "" {
		return nil, errors.New("alert state store: empty path")
	}
	return &StateStore{path: path}, nil
}

// Load reads the saved state. A missing file yields the idle state.
func (s *StateStore) Load(ctx context.Context) (alerts.State, error) {
	_ = ctx
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return alerts.IdleState(), nil
	}
	if err != nil {
		return alerts.State{}, err
	}
	var state alerts.State
	if err := json.Unmarshal(data, &state); err != nil {
		return alerts.State{}, fmt.Errorf("alert state store: %s: %w", s.path, err)
	}
	if state.Phase != alerts.PhaseActive {
		return alerts.IdleState(), nil
	}
	return state, nil
}

// Save replaces the saved state atomically.
func (s *StateStore) Save(ctx context.Context, state alerts.State) error {
	_ = ctx
	payload, err := json.MarshalIndent(state, "", "  ")
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".alert-*.json")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(payload); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
