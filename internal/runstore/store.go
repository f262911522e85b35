package runstore

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"
)

var (
	ErrNotFound     = errors.New("run not found")
	ErrInvalidInput = errors.New("invalid input")
)

// Run is one persisted synchronization run summary.
type Run struct {
	ID             string    `json:"id"`
	Mode           string    `json:"mode"`
	StartedAt      time.Time `json:"startedAt"`
	FinishedAt     time.Time `json:"finishedAt"`
	Status         string    `json:"status"`
	SuccessCount   int       `json:"successCount"`
	ErrorCount     int       `json:"errorCount"`
	UnchangedCount int       `json:"unchangedCount"`
	Warning        string    `json:"warning,omitempty"`
	Error          string    `json:"error,omitempty"`
}

// Store persists run summaries. Backends are selected by DSN scheme; see
// FromDSN.
type Store interface {
	Save(ctx context.Context, run Run) error
	Get(ctx context.Context, id string) (Run, error)
	List(ctx context.Context, limit int) ([]Run, error)
}

type memoryStore struct {
	mu   sync.RWMutex
	runs map[string]Run
}

// NewMemoryStore keeps runs in process memory. Used for tests and the
// memory:// profile.
func NewMemoryStore() Store {
	return &memoryStore{runs: map[string]Run{}}
}

func (s *memoryStore) Save(_ context.Context, run Run) error {
	if run.ID == "" {
		return ErrInvalidInput
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = run
	return nil
}

func (s *memoryStore) Get(_ context.Context, id string) (Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	run, ok := s.runs[id]
	if !ok {
		return Run{}, ErrNotFound
	}
	return run, nil
}

func (s *memoryStore) List(_ context.Context, limit int) ([]Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	runs := make([]Run, 0, len(s.runs))
	for _, run := range s.runs {
		runs = append(runs, run)
	}
	sortRuns(runs)
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// sortRuns orders newest first, ID as tiebreaker for determinism.
func sortRuns(runs []Run) {
	sort.Slice(runs, func(i, j int) bool {
		if !runs[i].StartedAt.Equal(runs[j].StartedAt) {
			return runs[i].StartedAt.After(runs[j].StartedAt)
		}
		return runs[i].ID > runs[j].ID
	})
}
