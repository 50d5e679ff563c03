package response_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/metamapa/mapgateway/internal/api/middleware"
	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/api/response"
)

// requestWithContext returns a request that went through the RequestID middleware.
func requestWithContext(t *testing.T, method, path string) (*http.Request, *httptest.ResponseRecorder) {
	t.Helper()
	req := httptest.NewRequest(method, path, http.NoBody)

	var processed *http.Request
	middleware.RequestID(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		processed = r
	})).ServeHTTP(httptest.NewRecorder(), req)

	return processed, httptest.NewRecorder()
}

func TestJSON_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/collections")

	response.JSON(rec, req, http.StatusOK, map[string]string{"message": "hola"})

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
	if got := rec.Header().Get("X-Request-Id"); got != middleware.GetRequestID(req.Context()) || got == "" {
		t.Errorf("expected X-Request-Id %q, got %q", middleware.GetRequestID(req.Context()), got)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected application/json, got %q", ct)
	}
}

func TestJSON_WithoutRequestID(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	response.JSON(rec, req, http.StatusOK, nil)

	if got := rec.Header().Get("X-Request-Id"); got != "" {
		t.Errorf("expected no X-Request-Id, got %q", got)
	}
	if rec.Body.Len() != 0 {
		t.Errorf("expected empty body for nil data, got %q", rec.Body.String())
	}
}

func TestGeoJSON_ContentType(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodGet, "/v1/map/sessions/s/markers.geojson")

	response.GeoJSON(rec, req, map[string]interface{}{"type": "FeatureCollection", "features": []interface{}{}})

	if ct := rec.Header().Get("Content-Type"); ct != "application/geo+json" {
		t.Errorf("expected application/geo+json, got %q", ct)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("invalid body: %v", err)
	}
	if body["type"] != "FeatureCollection" {
		t.Errorf("unexpected body %v", body)
	}
}

func TestCreated_SetsLocation(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodPost, "/v1/map/sessions")

	response.Created(rec, req, "/v1/map/sessions/abc", map[string]string{"id": "abc"})

	if rec.Code != http.StatusCreated {
		t.Errorf("expected status 201, got %d", rec.Code)
	}
	if loc := rec.Header().Get("Location"); loc != "/v1/map/sessions/abc" {
		t.Errorf("unexpected Location %q", loc)
	}
}

func TestNoContent_IncludesRequestID(t *testing.T) {
	req, rec := requestWithContext(t, http.MethodDelete, "/v1/map/sessions/abc")

	response.NoContent(rec, req)

	if rec.Code != http.StatusNoContent {
		t.Errorf("expected status 204, got %d", rec.Code)
	}
	if rec.Header().Get("X-Request-Id") == "" {
		t.Error("expected X-Request-Id header")
	}
}

func TestProblemHelpers(t *testing.T) {
	tests := []struct {
		name   string
		write  func(http.ResponseWriter, *http.Request)
		status int
		typ    string
	}{
		{"bad request", func(w http.ResponseWriter, r *http.Request) {
			response.BadRequest(w, r, "invalid bounds", []models.FieldError{{Field: "bounds", Message: "required"}})
		}, http.StatusBadRequest, models.ProblemTypeValidation},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) { response.Unauthorized(w, r, "d") }, http.StatusUnauthorized, models.ProblemTypeUnauthorized},
		{"forbidden", func(w http.ResponseWriter, r *http.Request) { response.Forbidden(w, r, "d") }, http.StatusForbidden, models.ProblemTypeForbidden},
		{"not found", func(w http.ResponseWriter, r *http.Request) { response.NotFound(w, r, "d") }, http.StatusNotFound, models.ProblemTypeNotFound},
		{"conflict", func(w http.ResponseWriter, r *http.Request) { response.Conflict(w, r, "d") }, http.StatusConflict, models.ProblemTypeConflict},
		{"internal", func(w http.ResponseWriter, r *http.Request) { response.InternalError(w, r, "d") }, http.StatusInternalServerError, models.ProblemTypeInternal},
		{"unavailable", func(w http.ResponseWriter, r *http.Request) { response.ServiceUnavailable(w, r, "d") }, http.StatusServiceUnavailable, models.ProblemTypeUnavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req, rec := requestWithContext(t, http.MethodGet, "/v1/map/sessions/abc")

			tt.write(rec, req)

			if rec.Code != tt.status {
				t.Errorf("expected status %d, got %d", tt.status, rec.Code)
			}
			if ct := rec.Header().Get("Content-Type"); ct != "application/problem+json" {
				t.Errorf("expected application/problem+json, got %q", ct)
			}

			var p models.Problem
			if err := json.Unmarshal(rec.Body.Bytes(), &p); err != nil {
				t.Fatalf("invalid problem body: %v", err)
			}
			if p.Type != tt.typ {
				t.Errorf("expected type %q, got %q", tt.typ, p.Type)
			}
			if p.Instance != "/v1/map/sessions/abc" {
				t.Errorf("expected instance to be the request path, got %q", p.Instance)
			}
			if p.TraceID != middleware.GetRequestID(req.Context()) {
				t.Errorf("expected traceId %q, got %q", middleware.GetRequestID(req.Context()), p.TraceID)
			}
		})
	}
}
