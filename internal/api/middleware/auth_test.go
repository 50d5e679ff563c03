package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamapa/mapgateway/internal/api/middleware"
	"github.com/metamapa/mapgateway/internal/auth"
)

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-secret-key-for-testing-only",
		Issuer:     "metamapa",
		Audience:   "metamapa-web",
	})
}

func createTestAuthService(t *testing.T) *auth.Service {
	t.Helper()
	return auth.NewService(auth.ServiceConfig{JWTService: testJWTService()})
}

func issueToken(t *testing.T, subject string, roles ...string) string {
	t.Helper()
	token, _, err := testJWTService().GenerateAccessToken(subject, "ana", roles)
	require.NoError(t, err)
	return token
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuth_MissingAuthorizationHeader(t *testing.T) {
	handler := middleware.Auth(createTestAuthService(t))(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), "missing authorization header")
	assert.NotEmpty(t, rec.Header().Get("WWW-Authenticate"))
}

func TestAuth_InvalidAuthorizationFormat(t *testing.T) {
	handler := middleware.Auth(createTestAuthService(t))(okHandler())

	tests := []struct {
		name   string
		header string
	}{
		{"no bearer prefix", "token123"},
		{"basic auth", "Basic dXNlcjpwYXNz"},
		{"empty bearer", "Bearer "},
		{"just bearer", "Bearer"},
		{"garbage token", "Bearer invalid.jwt.token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", tt.header)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusUnauthorized, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestAuth_ValidToken(t *testing.T) {
	token := issueToken(t, "42", "CONTRIBUYENTE")

	var captured *auth.Session
	handler := middleware.Auth(createTestAuthService(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured = middleware.GetSession(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	handler.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, captured)
	assert.Equal(t, "42", captured.Subject)
	assert.Equal(t, "ana", captured.Username)
	assert.True(t, captured.HasRole("contribuyente"))
}

func TestAuth_CaseInsensitiveBearer(t *testing.T) {
	token := issueToken(t, "42")
	handler := middleware.Auth(createTestAuthService(t))(okHandler())

	for _, prefix := range []string{"Bearer ", "bearer ", "BEARER "} {
		t.Run(prefix, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", prefix+token)
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, http.StatusOK, rec.Code)
		})
	}
}

func TestOptionalAuth(t *testing.T) {
	var subject string
	handler := middleware.OptionalAuth(createTestAuthService(t))(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = middleware.GetUserID(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("anonymous", func(t *testing.T) {
		subject = "unset"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/test", http.NoBody))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Empty(t, subject)
	})

	t.Run("authenticated", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Authorization", "Bearer "+issueToken(t, "7"))
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "7", subject)
	})

	t.Run("invalid token is rejected", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
		req.Header.Set("Authorization", "Bearer nope")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	svc := createTestAuthService(t)
	handler := middleware.Auth(svc)(middleware.RequireRole("ADMIN")(okHandler()))

	tests := []struct {
		name   string
		roles  []string
		status int
	}{
		{"admin", []string{"admin"}, http.StatusOK},
		{"contributor", []string{"CONTRIBUYENTE"}, http.StatusForbidden},
		{"no roles", nil, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
			req.Header.Set("Authorization", "Bearer "+issueToken(t, "1", tt.roles...))
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
		})
	}
}

func TestGetUserID_NoAuth(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/test", http.NoBody)
	assert.Empty(t, middleware.GetUserID(req.Context()))
	assert.Nil(t, middleware.GetSession(req.Context()))
}
