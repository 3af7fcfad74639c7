// Package history persists the outcome of reproduction runs, one JSON file
// per installation. The watch dashboard reads it back to show past runs.
package history

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Run kinds, matching how a reproduction was triggered.
const (
	KindManual     = "manual"
	KindSanity     = "sanity"
	KindContinuous = "continuous"
)

// fileVersion guards the on-disk layout.
const fileVersion = "1.0"

// RunRecord is one finished reproduction.
type RunRecord struct {
	TestcaseID string        `json:"testcase_id"`
	Kind       string        `json:"kind"`
	Version    string        `json:"version"`
	OK         bool          `json:"ok"`
	Duration   time.Duration `json:"duration"`
	Timestamp  time.Time     `json:"timestamp"`
}

type historyFile struct {
	Version string      `json:"version"`
	Runs    []RunRecord `json:"runs"`
}

// Store owns the run history file. All methods are safe for concurrent use.
type Store struct {
	path string
	mu   sync.RWMutex
	runs []RunRecord
}

// NewStore opens the history at path, loading existing records. A missing
// file starts an empty history.
func NewStore(path string) (*Store, error) {
	s := &Store{path: path}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create history directory: %w", err)
	}

	if err := s.load(); err != nil {
		if !os.IsNotExist(err) {
			return nil, err
		}
		s.runs = []RunRecord{}
	}

	return s, nil
}

func (s *Store) load() error {
	data, err := os.ReadFile(s.path)
	if err != nil {
		return err
	}

	var file historyFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("failed to parse run history: %w", err)
	}

	s.runs = file.Runs
	return nil
}

// Append records a run and persists the history atomically.
func (s *Store) Append(record RunRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs = append(s.runs, record)
	return s.save()
}

// save writes through a temporary file so a crash mid-write never truncates
// the history. Callers hold the lock.
func (s *Store) save() error {
	file := historyFile{Version: fileVersion, Runs: s.runs}

	data, err := json.MarshalIndent(file, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal run history: %w", err)
	}

	tmpPath := s.path + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("failed to write temporary file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to rename temporary file: %w", err)
	}

	return nil
}

// List returns every recorded run, oldest first.
func (s *Store) List() []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]RunRecord, len(s.runs))
	copy(result, s.runs)
	return result
}

// Recent returns up to n of the latest runs, newest first.
func (s *Store) Recent(n int) []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if n > len(s.runs) {
		n = len(s.runs)
	}

	result := make([]RunRecord, 0, n)
	for i := len(s.runs) - 1; i >= len(s.runs)-n; i-- {
		result = append(result, s.runs[i])
	}
	return result
}

// Len returns the number of recorded runs.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.runs)
}
