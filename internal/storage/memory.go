package storage

import (
	"context"
	"errors"
	"slices"
	"sync"

	"goalreach/internal/model"
)

var errNotInitialized = errors.New("store is not initialized")

type MemoryStore struct {
	mu          sync.RWMutex
	initialized bool
	runs        map[string]model.SolveRun
	solutions   map[string][]model.SolutionRecord
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.initialized = true
	s.runs = make(map[string]model.SolveRun)
	s.solutions = make(map[string][]model.SolutionRecord)
	return nil
}

func (s *MemoryStore) SaveRun(_ context.Context, run model.SolveRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	run.Numbers = slices.Clone(run.Numbers)
	s.runs[run.ID] = run
	return nil
}

func (s *MemoryStore) GetRun(_ context.Context, id string) (model.SolveRun, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return model.SolveRun{}, false, nil
	}
	run.Numbers = slices.Clone(run.Numbers)
	return run, true, nil
}

func (s *MemoryStore) ListRuns(_ context.Context) ([]model.SolveRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	runs := make([]model.SolveRun, 0, len(s.runs))
	for _, run := range s.runs {
		run.Numbers = slices.Clone(run.Numbers)
		runs = append(runs, run)
	}
	sortRuns(runs)
	return runs, nil
}

func (s *MemoryStore) DeleteRun(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.runs, id)
	delete(s.solutions, id)
	return nil
}

func (s *MemoryStore) SaveSolutions(_ context.Context, runID string, solutions []model.SolutionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.initialized {
		return errNotInitialized
	}
	s.solutions[runID] = copySolutions(solutions)
	return nil
}

func (s *MemoryStore) GetSolutions(_ context.Context, runID string) ([]model.SolutionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	solutions, ok := s.solutions[runID]
	if !ok {
		return nil, false, nil
	}
	return copySolutions(solutions), true, nil
}

func copySolutions(in []model.SolutionRecord) []model.SolutionRecord {
	out := make([]model.SolutionRecord, len(in))
	for i, record := range in {
		record.Trace = slices.Clone(record.Trace)
		out[i] = record
	}
	return out
}

// sortRuns orders runs newest first, breaking ties by id.
func sortRuns(runs []model.SolveRun) {
	slices.SortFunc(runs, func(a, b model.SolveRun) int {
		if c := b.StartedAt.Compare(a.StartedAt); c != 0 {
			return c
		}
		switch {
		case a.ID < b.ID:
			return -1
		case a.ID > b.ID:
			return 1
		}
		return 0
	})
}
