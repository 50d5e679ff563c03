package mapview

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps saved views in process memory. Used when
// PostgreSQL is disabled and in tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	views map[string]SavedView
}

// NewInMemoryRepository creates an empty repository.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{views: make(map[string]SavedView)}
}

// Save creates or replaces a saved view.
func (r *InMemoryRepository) Save(_ context.Context, v SavedView) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.views[v.SessionID] = v
	return nil
}

// Get returns a copy of a saved view.
func (r *InMemoryRepository) Get(_ context.Context, sessionID string) (*SavedView, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	v, ok := r.views[sessionID]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &v, nil
}

// Delete removes a saved view.
func (r *InMemoryRepository) Delete(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.views[sessionID]; !ok {
		return ErrSessionNotFound
	}
	delete(r.views, sessionID)
	return nil
}

// DeleteBefore removes views last updated before t.
func (r *InMemoryRepository) DeleteBefore(_ context.Context, t time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	removed := 0
	for id, v := range r.views {
		if v.UpdatedAt.Before(t) {
			delete(r.views, id)
			removed++
		}
	}
	return removed, nil
}

var _ Repository = (*InMemoryRepository)(nil)
