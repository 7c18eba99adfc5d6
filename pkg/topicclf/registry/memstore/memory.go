package memstore

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/cognicore/topicclf/pkg/topicclf/internalerr"
	"github.com/cognicore/topicclf/pkg/topicclf/registry"
)

// Store is an in-memory implementation of registry.Store, used in tests and
// when no registry path is configured.
type Store struct {
	mu         sync.RWMutex
	runs       map[string]registry.Run
	candidates map[string][]registry.Candidate
}

// New creates an empty in-memory registry.
func New() *Store {
	return &Store{
		runs:       make(map[string]registry.Run),
		candidates: make(map[string][]registry.Candidate),
	}
}

// Close implements registry.Store.
func (s *Store) Close() error { return nil }

// RecordRun stores a run and replaces its candidates.
func (s *Store) RecordRun(ctx context.Context, run registry.Run, candidates []registry.Candidate) error {
	if run.ID == "" {
		return fmt.Errorf("%w: run id is empty", internalerr.ErrInvalidInput)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	s.runs[run.ID] = run
	cs := make([]registry.Candidate, len(candidates))
	for i, c := range candidates {
		c.RunID = run.ID
		c.Position = i
		cs[i] = c
	}
	s.candidates[run.ID] = cs
	return nil
}

// GetRun returns a run by ID.
func (s *Store) GetRun(ctx context.Context, id string) (registry.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if r, ok := s.runs[id]; ok {
		return r, nil
	}
	return registry.Run{}, internalerr.ErrNotFound
}

// LatestRun returns the newest run by start time, then ID.
func (s *Store) LatestRun(ctx context.Context, status string) (registry.Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		best  registry.Run
		found bool
	)
	for _, r := range s.runs {
		if status != "" && r.Status != status {
			continue
		}
		if !found || r.StartedAt.After(best.StartedAt) ||
			(r.StartedAt.Equal(best.StartedAt) && r.ID > best.ID) {
			best, found = r, true
		}
	}
	if !found {
		return registry.Run{}, internalerr.ErrNotFound
	}
	return best, nil
}

// Candidates returns a copy of the run's candidates in search order.
func (s *Store) Candidates(ctx context.Context, runID string) ([]registry.Candidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.candidates[runID]), nil
}

var _ registry.Store = (*Store)(nil)
