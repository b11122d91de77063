package daemon

import (
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/jfmyers9/scrobbledb/internal/ingest"
)

// RunRecord is the outcome of the most recent run for one user.
type RunRecord struct {
	User       string    `json:"user"`
	RunID      string    `json:"run_id"`
	Direction  string    `json:"direction"`
	Started    time.Time `json:"started"`
	Finished   time.Time `json:"finished"`
	Batches    int       `json:"batches"`
	Inserted   int       `json:"inserted"`
	Duplicates int       `json:"duplicates"`
	Failed     int       `json:"failed"`
	Error      string    `json:"error,omitempty"`
}

// State keeps the last run of every user with thread-safe access and
// persists it to disk after every change.
type State struct {
	mu       sync.RWMutex
	runs     map[string]RunRecord
	filePath string // Path to state file for persistence
}

// persistedState is the JSON representation of state for disk storage
type persistedState struct {
	Runs []RunRecord `json:"runs"`
}

// NewState creates a new State instance
// If filePath is provided, attempts to restore state from disk
func NewState(filePath string) (*State, error) {
	s := &State{
		runs:     make(map[string]RunRecord),
		filePath: filePath,
	}

	if filePath != "" {
		if err := s.restore(); err != nil && !os.IsNotExist(err) {
			// Start fresh; the caller decides whether to log it.
			return s, err
		}
	}

	return s, nil
}

// Record stores the outcome of a run and persists the state.
func (s *State) Record(summary ingest.RunSummary, runErr error) error {
	rec := RunRecord{
		User:       summary.User,
		RunID:      summary.RunID,
		Direction:  string(summary.Direction),
		Started:    summary.Started,
		Finished:   summary.Finished,
		Batches:    summary.Batches,
		Inserted:   summary.Inserted,
		Duplicates: summary.Duplicates,
		Failed:     summary.Failed,
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[rec.User] = rec
	return s.persist()
}

// Get returns the last run recorded for user.
func (s *State) Get(user string) (RunRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rec, ok := s.runs[user]
	return rec, ok
}

// All returns every recorded run ordered by user.
func (s *State) All() []RunRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunRecord, 0, len(s.runs))
	for _, rec := range s.runs {
		out = append(out, rec)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].User < out[j].User })
	return out
}

// persist saves the current state to disk
// Must be called with lock held
func (s *State) persist() error {
	if s.filePath == "" {
		return nil
	}

	ps := persistedState{Runs: make([]RunRecord, 0, len(s.runs))}
	for _, rec := range s.runs {
		ps.Runs = append(ps.Runs, rec)
	}
	sort.Slice(ps.Runs, func(i, j int) bool { return ps.Runs[i].User < ps.Runs[j].User })

	data, err := json.MarshalIndent(ps, "", "  ")
	if err != nil {
		return err
	}

	dir := filepath.Dir(s.filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}

	// Write atomically via temp file + rename
	tmpPath := s.filePath + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0644); err != nil {
		return err
	}

	return os.Rename(tmpPath, s.filePath)
}

// restore loads state from disk
func (s *State) restore() error {
	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var ps persistedState
	if err := json.Unmarshal(data, &ps); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, rec := range ps.Runs {
		s.runs[rec.User] = rec
	}

	return nil
}
