package collection

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Source fetches the current collections from the backend.
type Source interface {
	FetchCollections(ctx context.Context) ([]Collection, error)
}

// ServiceConfig holds configuration for the collection service.
type ServiceConfig struct {
	Source Source
	Logger zerolog.Logger

	// CacheTTL is how long a listing is served without refetching (default: 1 minute).
	CacheTTL time.Duration

	// StaleIfErrorTTL allows serving an old listing while the backend fails (default: 15 minutes).
	StaleIfErrorTTL time.Duration
}

// Service serves collection listings with caching.
type Service struct {
	source          Source
	logger          zerolog.Logger
	cacheTTL        time.Duration
	staleIfErrorTTL time.Duration

	mu          sync.RWMutex
	listing     *Listing
	cacheExpiry time.Time
}

// NewService creates a collection service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}
	staleIfErrorTTL := cfg.StaleIfErrorTTL
	if staleIfErrorTTL == 0 {
		staleIfErrorTTL = 15 * time.Minute
	}

	return &Service{
		source:          cfg.Source,
		logger:          cfg.Logger,
		cacheTTL:        cacheTTL,
		staleIfErrorTTL: staleIfErrorTTL,
	}
}

// List returns the collections, from cache when fresh.
func (s *Service) List(ctx context.Context) ([]Collection, error) {
	s.mu.RLock()
	if s.listing != nil && time.Now().Before(s.cacheExpiry) {
		cols := s.listing.Collections
		s.mu.RUnlock()
		return cols, nil
	}
	s.mu.RUnlock()

	listing, err := s.refresh(ctx)
	if err != nil {
		return nil, err
	}
	return listing.Collections, nil
}

// Get returns the collection with the given handle.
func (s *Service) Get(ctx context.Context, handle string) (Collection, error) {
	cols, err := s.List(ctx)
	if err != nil {
		return Collection{}, err
	}
	for _, c := range cols {
		if c.Handle == handle {
			return c, nil
		}
	}
	return Collection{}, ErrNotFound
}

// Invalidate expires the cached listing. The old listing is still served
// if the next fetch fails within the stale-if-error window.
func (s *Service) Invalidate() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cacheExpiry = time.Time{}
}

func (s *Service) refresh(ctx context.Context) (*Listing, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.listing != nil && time.Now().Before(s.cacheExpiry) {
		return s.listing, nil
	}

	cols, err := s.source.FetchCollections(ctx)
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to fetch collections")

		if s.listing != nil && time.Now().Before(s.listing.FetchedAt.Add(s.staleIfErrorTTL)) {
			s.logger.Warn().
				Time("fetched_at", s.listing.FetchedAt).
				Msg("serving stale collections due to backend error")
			return s.listing, nil
		}
		return nil, ErrSourceUnavailable
	}

	s.listing = &Listing{Collections: cols, FetchedAt: time.Now()}
	s.cacheExpiry = time.Now().Add(s.cacheTTL)
	s.logger.Debug().Int("collections", len(cols)).Msg("collections refreshed")

	return s.listing, nil
}
