package handler_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamapa/mapgateway/internal/api/handler"
	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/backend/resilience"
	"github.com/metamapa/mapgateway/internal/featureflags"
	"github.com/metamapa/mapgateway/internal/mapview"
)

func TestHealthCheck(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{Version: "1.4.0", BuildTime: "2026-10-19T10:00:00Z"})

	rec := httptest.NewRecorder()
	h.HealthCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/health", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var health models.Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, models.HealthStatusOK, health.Status)
	assert.Equal(t, "1.4.0", health.Details["version"])
}

func TestReadinessCheck(t *testing.T) {
	tests := []struct {
		name   string
		checks []handler.ReadinessCheck
		status int
	}{
		{"no dependencies", nil, http.StatusOK},
		{
			"all ready",
			[]handler.ReadinessCheck{{Name: "postgres", Check: func(context.Context) error { return nil }}},
			http.StatusOK,
		},
		{
			"database down",
			[]handler.ReadinessCheck{{Name: "postgres", Check: func(context.Context) error { return errors.New("connection refused") }}},
			http.StatusServiceUnavailable,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := handler.NewOpsHandler(handler.OpsConfig{Checks: tt.checks})

			rec := httptest.NewRecorder()
			h.ReadinessCheck(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/ready", http.NoBody))

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestSystemStatus(t *testing.T) {
	registry := resilience.NewRegistry()
	registry.Register("graphql", resilience.NewClient(resilience.DefaultClientConfig("graphql")))
	registry.RecordFailure("graphql", errors.New("timeout"))

	flags := featureflags.NewService(featureflags.ServiceConfig{
		Repository: featureflags.NewInMemoryRepository(),
		Logger:     zerolog.Nop(),
	})

	manager := mapview.NewManager(mapview.ManagerConfig{Logger: zerolog.Nop()})
	t.Cleanup(manager.Close)
	_, err := manager.Create(context.Background(), "")
	require.NoError(t, err)

	h := handler.NewOpsHandler(handler.OpsConfig{
		Registry: registry,
		Flags:    flags,
		Sessions: manager,
		Checks:   []handler.ReadinessCheck{{Name: "postgres", Check: func(context.Context) error { return nil }}},
	})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusOK, status.Status)
	assert.Equal(t, 1, status.LiveSessions)
	require.Len(t, status.Subsystems, 1)
	assert.Equal(t, "postgres", status.Subsystems[0].Name)

	require.Len(t, status.Backends, 1)
	b := status.Backends[0]
	assert.Equal(t, "graphql", b.Backend)
	assert.Equal(t, "closed", b.CircuitState)
	require.NotNil(t, b.LastFailureAt)
	require.NotNil(t, b.Message)
	assert.Equal(t, "timeout", *b.Message)

	assert.Contains(t, status.ActiveFlags, featureflags.FlagDiscardStaleResponses)
	assert.NotContains(t, status.ActiveFlags, featureflags.FlagExplicitMediaFalse)
}

func TestSystemStatus_FailingSubsystem(t *testing.T) {
	h := handler.NewOpsHandler(handler.OpsConfig{
		Checks: []handler.ReadinessCheck{{Name: "postgres", Check: func(context.Context) error { return errors.New("down") }}},
	})

	rec := httptest.NewRecorder()
	h.SystemStatus(rec, httptest.NewRequest(http.MethodGet, "/v1/ops/status", http.NoBody))

	require.Equal(t, http.StatusOK, rec.Code)
	var status models.SystemStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.Equal(t, models.HealthStatusFail, status.Status)
	require.NotNil(t, status.Subsystems[0].Detail)
	assert.Equal(t, "down", *status.Subsystems[0].Detail)
}
