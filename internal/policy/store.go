package policy

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Store persists policy state per (participant, condition) pair. The two
// keys are independent: progress under one condition never leaks into
// another.
type Store interface {
	Load(participant, condition string) (*State, error)
	Save(participant, condition string, st State) error
}

// FileStore keeps one JSON file per (participant, condition) under a base
// directory. Survives process restarts.
type FileStore struct {
	dir string
}

// NewFileStore creates the base directory if needed.
func NewFileStore(dir string) (*FileStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create state dir: %w", err)
	}
	return &FileStore{dir: dir}, nil
}

func (s *FileStore) path(participant, condition string) string {
	name := sanitize(participant) + "_" + sanitize(condition) + ".json"
	return filepath.Join(s.dir, name)
}

// Load returns the saved state, or nil if the pair has no state yet.
func (s *FileStore) Load(participant, condition string) (*State, error) {
	data, err := os.ReadFile(s.path(participant, condition))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read state: %w", err)
	}
	var st State
	if err := json.Unmarshal(data, &st); err != nil {
		return nil, fmt.Errorf("decode state: %w", err)
	}
	return &st, nil
}

// Save writes the state atomically via a temp file rename.
func (s *FileStore) Save(participant, condition string, st State) error {
	data, err := json.Marshal(st)
	if err != nil {
		return fmt.Errorf("encode state: %w", err)
	}
	target := s.path(participant, condition)
	tmp := target + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write state: %w", err)
	}
	if err := os.Rename(tmp, target); err != nil {
		return fmt.Errorf("rename state: %w", err)
	}
	return nil
}

func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		default:
			return '-'
		}
	}, s)
}

// MemoryStore is an in-process Store for tests and ephemeral runs.
type MemoryStore struct {
	states map[string]State
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{states: make(map[string]State)}
}

func (s *MemoryStore) Load(participant, condition string) (*State, error) {
	st, ok := s.states[participant+"/"+condition]
	if !ok {
		return nil, nil
	}
	clone := cloneState(st)
	return &clone, nil
}

// Save stores a snapshot detached from the caller's State, so later
// engine mutations never leak into stored or previously loaded copies.
func (s *MemoryStore) Save(participant, condition string, st State) error {
	s.states[participant+"/"+condition] = cloneState(st)
	return nil
}

func cloneState(st State) State {
	out := State{Active: st.Active}
	if st.Completed != nil {
		out.Completed = append([]string(nil), st.Completed...)
	}
	if st.HighWater != nil {
		out.HighWater = make(map[string]float64, len(st.HighWater))
		for k, v := range st.HighWater {
			out.HighWater[k] = v
		}
	}
	return out
}
