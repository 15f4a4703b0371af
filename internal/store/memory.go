package store

import (
	"context"
	"encoding/json"
	"fmt"
	"maps"
	"sync"
)

// InMemoryRunStore implements RunStore for testing and one-off runs.
type InMemoryRunStore struct {
	mu   sync.RWMutex
	runs map[string]*Run
}

// NewInMemoryRunStore creates a new in-memory store.
func NewInMemoryRunStore() *InMemoryRunStore {
	return &InMemoryRunStore{runs: make(map[string]*Run)}
}

// SaveRun stores a copy of run.
func (s *InMemoryRunStore) SaveRun(ctx context.Context, run *Run) error {
	if err := run.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.runs[run.ID]; exists {
		return fmt.Errorf("%w: %s", ErrExists, run.ID)
	}
	s.runs[run.ID] = cloneRun(run)
	return nil
}

// GetRun returns a copy of the stored run.
func (s *InMemoryRunStore) GetRun(ctx context.Context, id string) (*Run, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	run, ok := s.runs[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return cloneRun(run), nil
}

// ListRuns returns every run, newest first.
func (s *InMemoryRunStore) ListRuns(ctx context.Context) ([]RunSummary, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]RunSummary, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r.Summary())
	}
	sortSummaries(out)
	return out, nil
}

// DeleteRun removes a run.
func (s *InMemoryRunStore) DeleteRun(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.runs[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.runs, id)
	return nil
}

// Close is a no-op.
func (s *InMemoryRunStore) Close() error {
	return nil
}

// cloneRun deep-copies r so callers cannot mutate stored state.
func cloneRun(r *Run) *Run {
	out := *r
	out.Config = append(json.RawMessage(nil), r.Config...)
	out.StockNames = append([]string(nil), r.StockNames...)
	out.FlowNames = append([]string(nil), r.FlowNames...)
	out.FinalCounts = maps.Clone(r.FinalCounts)
	out.Days = make([]Day, len(r.Days))
	for i, d := range r.Days {
		d.Stocks = append([]float64(nil), d.Stocks...)
		d.Counts = append([]int(nil), d.Counts...)
		out.Days[i] = d
	}
	return &out
}
