package repository

import (
	"context"
	"sync"

	"go-omr-scanner/pkg/models"
)

// MemoryResultRepository keeps scan results in memory. Useful for operator
// review of recent scans; results do not survive a restart.
type MemoryResultRepository struct {
	mu      sync.RWMutex
	results map[string]*models.SheetResult
}

// NewMemoryResultRepository creates an in-memory result repository
func NewMemoryResultRepository() *MemoryResultRepository {
	return &MemoryResultRepository{
		results: make(map[string]*models.SheetResult),
	}
}

// SaveResult stores a scan result under the given id
func (r *MemoryResultRepository) SaveResult(ctx context.Context, id string, result *models.SheetResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[id] = result
	return nil
}

// GetResult retrieves a stored scan result
func (r *MemoryResultRepository) GetResult(ctx context.Context, id string) (*models.SheetResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	result, ok := r.results[id]
	if !ok {
		return nil, ErrResultNotFound
	}
	return result, nil
}
