package resilience_test

import (
	"testing"
	"time"

	"github.com/sony/gobreaker/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamapa/mapgateway/internal/backend/resilience"
)

func newRegistered(t *testing.T, registry *resilience.Registry, name string) *resilience.Client {
	t.Helper()
	cfg := resilience.DefaultClientConfig(name)
	cfg.Registry = registry
	return resilience.NewClient(cfg)
}

func TestRegistry_RegisterAndHealth(t *testing.T) {
	registry := resilience.NewRegistry()
	client := newRegistered(t, registry, "metamapa-graphql")

	assert.Equal(t, 1, registry.Count())
	assert.Equal(t, "metamapa-graphql", client.Name())

	health := registry.Health("metamapa-graphql")
	require.NotNil(t, health)
	assert.Equal(t, "metamapa-graphql", health.Name)
	assert.Equal(t, gobreaker.StateClosed, health.CircuitState)
	assert.True(t, health.IsHealthy())
	assert.Equal(t, "ok", health.Status())
}

func TestRegistry_Unregister(t *testing.T) {
	registry := resilience.NewRegistry()
	_ = newRegistered(t, registry, "metamapa-core")

	registry.Unregister("metamapa-core")

	assert.Equal(t, 0, registry.Count())
	assert.Nil(t, registry.Health("metamapa-core"))
}

func TestRegistry_RecordOutcomes(t *testing.T) {
	registry := resilience.NewRegistry()
	_ = newRegistered(t, registry, "metamapa-core")

	health := registry.Health("metamapa-core")
	require.NotNil(t, health)
	assert.Nil(t, health.LastSuccessAt)
	assert.Nil(t, health.LastFailureAt)

	registry.RecordSuccess("metamapa-core")
	registry.RecordFailure("metamapa-core", assert.AnError)

	health = registry.Health("metamapa-core")
	require.NotNil(t, health.LastSuccessAt)
	require.NotNil(t, health.LastFailureAt)
	assert.WithinDuration(t, time.Now(), *health.LastSuccessAt, time.Second)
	assert.Equal(t, assert.AnError.Error(), health.LastError)
}

func TestRegistry_UnknownBackendIsIgnored(t *testing.T) {
	registry := resilience.NewRegistry()

	assert.NotPanics(t, func() {
		registry.RecordSuccess("nope")
		registry.RecordFailure("nope", assert.AnError)
	})
	assert.Nil(t, registry.Health("nope"))
}

func TestRegistry_AllHealthSortedByName(t *testing.T) {
	registry := resilience.NewRegistry()
	for _, name := range []string{"metamapa-stats", "metamapa-core", "metamapa-graphql"} {
		_ = newRegistered(t, registry, name)
	}

	var names []string
	for _, h := range registry.AllHealth() {
		names = append(names, h.Name)
	}
	assert.Equal(t, []string{"metamapa-core", "metamapa-graphql", "metamapa-stats"}, names)
	assert.Equal(t, names, registry.Names())
}

func TestBackendHealth_Status(t *testing.T) {
	tests := []struct {
		state gobreaker.State
		want  string
	}{
		{gobreaker.StateClosed, "ok"},
		{gobreaker.StateHalfOpen, "degraded"},
		{gobreaker.StateOpen, "down"},
	}

	for _, tt := range tests {
		t.Run(tt.state.String(), func(t *testing.T) {
			h := &resilience.BackendHealth{CircuitState: tt.state}
			assert.Equal(t, tt.want, h.Status())
		})
	}
}
