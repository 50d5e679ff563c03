package resilience

import (
	"sort"
	"sync"
	"time"

	"github.com/sony/gobreaker/v2"
)

// BackendHealth is the health snapshot of one upstream backend.
type BackendHealth struct {
	Name          string
	CircuitState  gobreaker.State
	Counts        gobreaker.Counts
	LastSuccessAt *time.Time
	LastFailureAt *time.Time
	LastError     string
}

// IsHealthy reports a closed circuit.
func (h *BackendHealth) IsHealthy() bool {
	return h.CircuitState == gobreaker.StateClosed
}

// IsDegraded reports a half-open circuit.
func (h *BackendHealth) IsDegraded() bool {
	return h.CircuitState == gobreaker.StateHalfOpen
}

// IsUnhealthy reports an open circuit.
func (h *BackendHealth) IsUnhealthy() bool {
	return h.CircuitState == gobreaker.StateOpen
}

// Status maps the circuit state to "ok", "degraded" or "down".
func (h *BackendHealth) Status() string {
	switch {
	case h.IsUnhealthy():
		return "down"
	case h.IsDegraded():
		return "degraded"
	default:
		return "ok"
	}
}

// Registry tracks the backend clients of the gateway and their last outcomes.
type Registry struct {
	mu       sync.RWMutex
	backends map[string]*registeredBackend
}

type registeredBackend struct {
	client        *Client
	lastSuccessAt *time.Time
	lastFailureAt *time.Time
	lastError     string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		backends: make(map[string]*registeredBackend),
	}
}

// Register adds or replaces a backend client.
func (r *Registry) Register(name string, client *Client) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.backends[name] = &registeredBackend{client: client}
}

// Unregister removes a backend.
func (r *Registry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.backends, name)
}

// RecordSuccess stamps the last successful call of a backend.
func (r *Registry) RecordSuccess(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[name]; ok {
		now := time.Now()
		b.lastSuccessAt = &now
	}
}

// RecordFailure stamps the last failed call of a backend and keeps its error.
func (r *Registry) RecordFailure(name string, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.backends[name]; ok {
		now := time.Now()
		b.lastFailureAt = &now
		if err != nil {
			b.lastError = err.Error()
		}
	}
}

// Health returns the snapshot of one backend, or nil when unknown.
func (r *Registry) Health(name string) *BackendHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	b, ok := r.backends[name]
	if !ok {
		return nil
	}
	return b.snapshot(name)
}

// AllHealth returns every backend snapshot ordered by name.
func (r *Registry) AllHealth() []*BackendHealth {
	r.mu.RLock()
	defer r.mu.RUnlock()

	health := make([]*BackendHealth, 0, len(r.backends))
	for name, b := range r.backends {
		health = append(health, b.snapshot(name))
	}
	sort.Slice(health, func(i, j int) bool { return health[i].Name < health[j].Name })
	return health
}

// Names returns the registered backend names in order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.backends))
	for name := range r.backends {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Count returns the number of registered backends.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.backends)
}

func (b *registeredBackend) snapshot(name string) *BackendHealth {
	return &BackendHealth{
		Name:          name,
		CircuitState:  b.client.CircuitBreakerState(),
		Counts:        b.client.CircuitBreakerCounts(),
		LastSuccessAt: b.lastSuccessAt,
		LastFailureAt: b.lastFailureAt,
		LastError:     b.lastError,
	}
}
