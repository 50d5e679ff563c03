package featureflags

import (
	"context"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// ServiceConfig holds configuration for the feature flag service.
type ServiceConfig struct {
	Repository   Repository
	Logger       zerolog.Logger
	CacheTTL     time.Duration
	DefaultFlags map[string]*Flag
}

// Service evaluates feature flags. Flags are read on every marker fetch, so
// the whole set is loaded at once and served from memory for CacheTTL. When
// a reload fails the previous set stays in use.
type Service struct {
	repo         Repository
	logger       zerolog.Logger
	cacheTTL     time.Duration
	defaultFlags map[string]*Flag

	reloadMu sync.Mutex

	mu       sync.RWMutex
	flags    map[string]*Flag
	loadedAt time.Time
}

// NewService creates a new feature flag service.
func NewService(cfg ServiceConfig) *Service {
	cacheTTL := cfg.CacheTTL
	if cacheTTL == 0 {
		cacheTTL = time.Minute
	}

	defaultFlags := cfg.DefaultFlags
	if defaultFlags == nil {
		defaultFlags = DefaultFlags()
	}

	return &Service{
		repo:         cfg.Repository,
		logger:       cfg.Logger,
		cacheTTL:     cacheTTL,
		defaultFlags: defaultFlags,
	}
}

// GetFlag returns the flag for key, or nil when it is neither stored nor a
// default. A nil service answers with the defaults.
func (s *Service) GetFlag(ctx context.Context, key string) *Flag {
	if s == nil {
		return DefaultFlags()[key]
	}
	return s.snapshot(ctx)[key]
}

// GetAllFlags returns the stored flags merged over the defaults.
func (s *Service) GetAllFlags(ctx context.Context) map[string]*Flag {
	return maps.Clone(s.snapshot(ctx))
}

// SetFlag updates a well-known feature flag.
func (s *Service) SetFlag(ctx context.Context, flag *Flag) error {
	return s.SetFlags(ctx, []*Flag{flag})
}

// SetFlags updates several well-known flags atomically. No flag is written
// when any key is unknown.
func (s *Service) SetFlags(ctx context.Context, flags []*Flag) error {
	for _, flag := range flags {
		if _, ok := s.defaultFlags[flag.Key]; !ok {
			return fmt.Errorf("%w: %s", ErrUnknownFlag, flag.Key)
		}
	}

	now := time.Now()
	for _, flag := range flags {
		flag.UpdatedAt = now
	}

	if err := s.repo.SetFlags(ctx, flags); err != nil {
		return err
	}

	s.mu.Lock()
	if s.flags != nil {
		next := maps.Clone(s.flags)
		for _, flag := range flags {
			next[flag.Key] = flag
		}
		s.flags = next
	}
	s.mu.Unlock()

	return nil
}

// InvalidateCache drops the loaded set; the next read goes to the repository.
func (s *Service) InvalidateCache() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = nil
	s.loadedAt = time.Time{}
}

// IsEnabled reports whether a boolean flag is on. Unset flags use their
// default value, unknown flags are off.
func (s *Service) IsEnabled(ctx context.Context, key string) bool {
	def := DefaultFlags()[key].BoolValue(false)
	return s.GetFlag(ctx, key).BoolValue(def)
}

// IsDisabled is the inverse of IsEnabled.
func (s *Service) IsDisabled(ctx context.Context, key string) bool {
	return !s.IsEnabled(ctx, key)
}

// snapshot returns the current flag set, reloading it once it is older than
// the cache TTL. The returned map must not be modified.
func (s *Service) snapshot(ctx context.Context) map[string]*Flag {
	if flags, fresh := s.cached(); fresh {
		return flags
	}

	s.reloadMu.Lock()
	defer s.reloadMu.Unlock()

	// Another caller may have reloaded while we waited.
	flags, fresh := s.cached()
	if fresh {
		return flags
	}

	stored, err := s.repo.GetAllFlags(ctx)
	if err != nil {
		if flags == nil {
			s.logger.Warn().Err(err).Msg("failed to load feature flags, using defaults")
			flags = s.defaultFlags
		} else {
			s.logger.Warn().Err(err).Msg("failed to reload feature flags, keeping previous values")
		}
		// Retry after a full TTL rather than on every read.
		s.store(flags)
		return flags
	}

	merged := maps.Clone(s.defaultFlags)
	maps.Copy(merged, stored)
	s.store(merged)
	return merged
}

func (s *Service) cached() (map[string]*Flag, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.flags, s.flags != nil && time.Since(s.loadedAt) < s.cacheTTL
}

func (s *Service) store(flags map[string]*Flag) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.flags = flags
	s.loadedAt = time.Now()
}

// Convenience methods for well-known flags.

// DiscardStaleResponses reports whether superseded marker fetches are dropped.
func (s *Service) DiscardStaleResponses(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagDiscardStaleResponses)
}

// ExplicitMediaFalse reports whether tieneMultimedia=false is sent.
func (s *Service) ExplicitMediaFalse(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagExplicitMediaFalse)
}

// RefreshOnIncidentChange reports whether change notifications refresh sessions.
func (s *Service) RefreshOnIncidentChange(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagRefreshOnIncidentChange)
}

// GeoJSONExportEnabled reports whether markers.geojson is served.
func (s *Service) GeoJSONExportEnabled(ctx context.Context) bool {
	return s.IsEnabled(ctx, FlagGeoJSONExport)
}
