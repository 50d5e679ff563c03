package mapview

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/incident"
	"github.com/metamapa/mapgateway/internal/metrics"
	"github.com/metamapa/mapgateway/internal/worker"
)

// Manager defaults.
const (
	DefaultIdleTTL   = 30 * time.Minute
	DefaultRetention = 7 * 24 * time.Hour
)

// ManagerConfig holds configuration for the session manager.
type ManagerConfig struct {
	// Session options shared by every session.
	Session Options

	// Repository stores saved views. Defaults to an in-memory repository.
	Repository Repository

	// IdleTTL is how long an untouched session stays in memory.
	IdleTTL time.Duration

	// Retention is how long saved views are kept after their last change.
	Retention time.Duration

	// Refresh bounds incident-change refreshes.
	Refresh worker.RefreshConfig

	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// Manager owns the live sessions of the gateway.
type Manager struct {
	mu       sync.RWMutex
	sessions map[string]*Session

	opts      Options
	repo      Repository
	idleTTL   time.Duration
	retention time.Duration
	refresher *worker.RefreshJob
	metrics   *metrics.Metrics
	logger    zerolog.Logger
}

// NewManager creates a session manager.
func NewManager(cfg ManagerConfig) *Manager {
	opts := cfg.Session
	if opts.Metrics == nil {
		opts.Metrics = cfg.Metrics
	}
	opts.Logger = cfg.Logger
	opts = opts.withDefaults()

	repo := cfg.Repository
	if repo == nil {
		repo = NewInMemoryRepository()
	}
	idleTTL := cfg.IdleTTL
	if idleTTL <= 0 {
		idleTTL = DefaultIdleTTL
	}
	retention := cfg.Retention
	if retention <= 0 {
		retention = DefaultRetention
	}

	return &Manager{
		sessions:  make(map[string]*Session),
		opts:      opts,
		repo:      repo,
		idleTTL:   idleTTL,
		retention: retention,
		refresher: worker.NewRefreshJob(cfg.Refresh, cfg.Logger),
		metrics:   cfg.Metrics,
		logger:    cfg.Logger,
	}
}

// Create starts a new session for owner (empty for anonymous) and saves it.
func (m *Manager) Create(ctx context.Context, owner string) (*Session, error) {
	s := NewSession(uuid.NewString(), owner, m.opts)
	if err := m.repo.Save(ctx, s.Saved()); err != nil {
		return nil, fmt.Errorf("save new session: %w", err)
	}

	m.mu.Lock()
	m.sessions[s.ID()] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	m.logger.Info().Str("session_id", s.ID()).Bool("anonymous", owner == "").Msg("map session created")
	return s, nil
}

// Get returns a live session, restoring it from its saved view when it was
// evicted. Sessions owned by someone else are reported as not found.
func (m *Manager) Get(ctx context.Context, id, owner string) (*Session, error) {
	m.mu.RLock()
	s, ok := m.sessions[id]
	m.mu.RUnlock()
	if ok {
		return authorize(s, owner)
	}

	saved, err := m.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	m.mu.Lock()
	if existing, ok := m.sessions[id]; ok {
		m.mu.Unlock()
		return authorize(existing, owner)
	}
	s = RestoreSession(*saved, m.opts)
	m.sessions[id] = s
	n := len(m.sessions)
	m.mu.Unlock()

	m.metrics.SetActiveSessions(n)
	m.logger.Debug().Str("session_id", id).Msg("map session restored")
	return authorize(s, owner)
}

// Update runs fn on a session and saves its view afterwards. Save failures
// are logged; the live session stays authoritative.
func (m *Manager) Update(ctx context.Context, id, owner string, fn func(*Session) error) (*Session, error) {
	s, err := m.Get(ctx, id, owner)
	if err != nil {
		return nil, err
	}
	if err := fn(s); err != nil {
		return s, err
	}
	if err := m.repo.Save(ctx, s.Saved()); err != nil {
		m.logger.Warn().Err(err).Str("session_id", id).Msg("failed to save map view")
	}
	return s, nil
}

// Delete ends a session and removes its saved view.
func (m *Manager) Delete(ctx context.Context, id, owner string) error {
	s, err := m.Get(ctx, id, owner)
	if err != nil {
		return err
	}

	m.mu.Lock()
	delete(m.sessions, id)
	n := len(m.sessions)
	m.mu.Unlock()
	s.Close()

	m.metrics.SetActiveSessions(n)
	if err := m.repo.Delete(ctx, id); err != nil && !errors.Is(err, ErrSessionNotFound) {
		return fmt.Errorf("delete saved view: %w", err)
	}
	return nil
}

// Len returns the number of live sessions.
func (m *Manager) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

// Sweep evicts sessions idle for longer than the idle TTL and purges saved
// views past retention. It returns the number of evicted sessions.
func (m *Manager) Sweep(ctx context.Context) int {
	now := m.opts.Now()

	m.mu.Lock()
	var evicted []*Session
	for id, s := range m.sessions {
		if now.Sub(s.LastActive()) > m.idleTTL {
			evicted = append(evicted, s)
			delete(m.sessions, id)
		}
	}
	n := len(m.sessions)
	m.mu.Unlock()

	for _, s := range evicted {
		s.Close()
	}

	purged, err := m.repo.DeleteBefore(ctx, now.Add(-m.retention))
	if err != nil {
		m.logger.Warn().Err(err).Msg("failed to purge saved map views")
	}

	m.metrics.SetActiveSessions(n)
	m.metrics.AddEvicted(len(evicted))
	if len(evicted) > 0 || purged > 0 {
		m.logger.Info().
			Int("evicted", len(evicted)).
			Int("purged", purged).
			Int("active", n).
			Msg("map sessions swept")
	}
	return len(evicted)
}

// HandleChange refreshes every live session whose view contains the changed
// incident or whose marker set includes it. Changes without coordinates
// match by id only.
func (m *Manager) HandleChange(ctx context.Context, change incident.Change) (int, error) {
	if change.ID == "" {
		return 0, incident.ErrInvalidChange
	}

	m.mu.RLock()
	var targets []worker.Target
	for _, s := range m.sessions {
		covered := change.HasLocation() && s.Covers(*change.Latitude, *change.Longitude)
		if covered || s.HasMarker(change.ID) {
			targets = append(targets, changeTarget{s})
		}
	}
	m.mu.RUnlock()

	if len(targets) == 0 {
		return 0, nil
	}

	result := m.refresher.Run(ctx, targets)
	if result.Failed > result.Successful {
		return result.Successful, fmt.Errorf("too many refresh failures: %d/%d", result.Failed, result.Total)
	}
	return result.Successful, nil
}

// RefreshStats returns the incident-change refresh counters.
func (m *Manager) RefreshStats() map[string]interface{} {
	return m.refresher.MetricsSnapshot()
}

// Close cancels in-flight fetches of every live session.
func (m *Manager) Close() {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, s := range m.sessions {
		s.Close()
	}
}

func authorize(s *Session, owner string) (*Session, error) {
	if s.Owner() != "" && s.Owner() != owner {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// changeTarget refreshes a session on behalf of an incident change.
type changeTarget struct {
	*Session
}

func (t changeTarget) Refresh(ctx context.Context) error {
	return t.refreshOnChange(ctx)
}
