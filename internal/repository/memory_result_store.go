package repository

import (
	"context"
	"sort"
	"sync"

	"PatternLab/internal/domain/models"
	domrepo "PatternLab/internal/domain/repository"
)

// MemoryResultStore is the ResultStore used when ClickHouse is disabled.
// Results are lost on restart.
type MemoryResultStore struct {
	mu      sync.RWMutex
	results map[string]*models.BacktestResult
}

func NewMemoryResultStore() *MemoryResultStore {
	return &MemoryResultStore{results: make(map[string]*models.BacktestResult)}
}

func (s *MemoryResultStore) Init(context.Context) error { return nil }

func (s *MemoryResultStore) SaveResult(_ context.Context, r *models.BacktestResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.results[r.RunID] = r
	return nil
}

func (s *MemoryResultStore) GetResult(_ context.Context, runID string) (*models.BacktestResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.results[runID]
	if !ok {
		return nil, domrepo.ErrNotFound
	}
	return r, nil
}

func (s *MemoryResultStore) ListResults(_ context.Context, symbol string, limit int) ([]models.BacktestSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	s.mu.RLock()
	out := make([]models.BacktestSummary, 0, len(s.results))
	for _, r := range s.results {
		if symbol == "" || r.Symbol == symbol {
			out = append(out, r.Summary())
		}
	}
	s.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].RunID < out[j].RunID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryResultStore) Health(context.Context) error { return nil }

func (s *MemoryResultStore) Close() error { return nil }
