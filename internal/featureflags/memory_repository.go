package featureflags

import (
	"context"
	"sync"
	"time"
)

// InMemoryRepository keeps flags in process memory. Used when PostgreSQL is
// disabled and in tests.
type InMemoryRepository struct {
	mu    sync.RWMutex
	flags map[string]*Flag
}

// NewInMemoryRepository creates an empty repository; the service falls back to defaults.
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{flags: make(map[string]*Flag)}
}

// NewInMemoryRepositoryWithFlags creates a repository seeded with copies of flags.
func NewInMemoryRepositoryWithFlags(flags map[string]*Flag) *InMemoryRepository {
	repo := NewInMemoryRepository()
	for k, v := range flags {
		repo.flags[k] = v.clone()
	}
	return repo
}

// GetFlag retrieves a copy of a flag.
func (r *InMemoryRepository) GetFlag(_ context.Context, key string) (*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	flag, ok := r.flags[key]
	if !ok {
		return nil, ErrFlagNotFound
	}
	return flag.clone(), nil
}

// GetAllFlags retrieves copies of all stored flags.
func (r *InMemoryRepository) GetAllFlags(_ context.Context) (map[string]*Flag, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make(map[string]*Flag, len(r.flags))
	for k, v := range r.flags {
		result[k] = v.clone()
	}
	return result, nil
}

// SetFlag creates or updates a flag.
func (r *InMemoryRepository) SetFlag(_ context.Context, flag *Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := flag.clone()
	stored.UpdatedAt = time.Now()
	r.flags[flag.Key] = stored
	return nil
}

// SetFlags creates or updates several flags at once.
func (r *InMemoryRepository) SetFlags(_ context.Context, flags []*Flag) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	for _, flag := range flags {
		stored := flag.clone()
		stored.UpdatedAt = now
		r.flags[flag.Key] = stored
	}
	return nil
}

// DeleteFlag removes a flag.
func (r *InMemoryRepository) DeleteFlag(_ context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.flags[key]; !ok {
		return ErrFlagNotFound
	}
	delete(r.flags, key)
	return nil
}

var _ Repository = (*InMemoryRepository)(nil)
