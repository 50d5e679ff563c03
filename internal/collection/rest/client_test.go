package rest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamapa/mapgateway/internal/backend/resilience"
	"github.com/metamapa/mapgateway/internal/collection"
	"github.com/metamapa/mapgateway/internal/collection/rest"
)

func serve(t *testing.T, status int, body string) *rest.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/colecciones", r.URL.Path)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)

	return rest.NewClient(rest.ClientConfig{
		BaseURL:    srv.URL + "/",
		HTTPClient: resilience.NewClient(resilience.ClientConfig{Name: "test-core", MaxRetries: resilience.NoRetries}),
	})
}

func TestFetchCollections_Shapes(t *testing.T) {
	want := []collection.Collection{
		{Handle: "incendios-2025", Title: "Incendios 2025", Description: "Temporada", Algorithm: "MAYORIA_SIMPLE"},
		{Handle: "7", Title: "Sin handle"},
	}

	tests := map[string]string{
		"envelope": `{"colecciones":[
			{"handle":"incendios-2025","titulo":"Incendios 2025","descripcion":"Temporada","algoritmoConsenso":"MAYORIA_SIMPLE"},
			{"id":7,"titulo":"Sin handle"},
			{"titulo":"descartada"},
			{"id":null,"titulo":"id nulo"},
			{"id":{"n":1},"titulo":"id objeto"},
			{"id":"  ","titulo":"id en blanco"}]}`,
		"bare array": `[
			{"handle":"incendios-2025","titulo":"Incendios 2025","descripcion":"Temporada","algoritmoConsenso":"MAYORIA_SIMPLE"},
			{"id":"7","titulo":"Sin handle"}]`,
	}

	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			cols, err := serve(t, http.StatusOK, body).FetchCollections(context.Background())
			require.NoError(t, err)
			assert.Equal(t, want, cols)
		})
	}
}

func TestFetchCollections_Empty(t *testing.T) {
	for name, tc := range map[string]struct {
		status int
		body   string
	}{
		"no content":     {http.StatusNoContent, ""},
		"empty body":     {http.StatusOK, ""},
		"empty array":    {http.StatusOK, "[]"},
		"empty envelope": {http.StatusOK, `{"colecciones":[]}`},
	} {
		t.Run(name, func(t *testing.T) {
			cols, err := serve(t, tc.status, tc.body).FetchCollections(context.Background())
			require.NoError(t, err)
			assert.Empty(t, cols)
		})
	}
}

func TestFetchCollections_Errors(t *testing.T) {
	_, err := serve(t, http.StatusForbidden, "prohibido").FetchCollections(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "403")
	assert.Contains(t, err.Error(), "prohibido")

	_, err = serve(t, http.StatusOK, "{nope").FetchCollections(context.Background())
	assert.Error(t, err)
}
