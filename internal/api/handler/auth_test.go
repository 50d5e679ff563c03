package handler_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/metamapa/mapgateway/internal/api/handler"
	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/auth"
)

func newJWT() *auth.JWTService {
	return auth.NewJWTService(auth.JWTConfig{
		SigningKey: "test-signing-key-with-enough-entropy",
		Issuer:     "metamapa",
		Audience:   "metamapa-web",
	})
}

func newAuthHandler(t *testing.T, core http.HandlerFunc) *handler.AuthHandler {
	t.Helper()
	server := httptest.NewServer(core)
	t.Cleanup(server.Close)

	svc := auth.NewService(auth.ServiceConfig{
		JWTService: newJWT(),
		LoginClient: auth.NewLoginClient(auth.LoginConfig{
			BaseURL:    server.URL,
			HTTPClient: server.Client(),
		}),
	})
	return handler.NewAuthHandler(svc, zerolog.Nop())
}

func postJSON(h http.HandlerFunc, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	h(rec, req)
	return rec
}

func TestLogin_Success(t *testing.T) {
	token, _, err := newJWT().GenerateAccessToken("42", "ana", []string{"USER"})
	require.NoError(t, err)

	h := newAuthHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"token":"` + token + `"}`))
	})

	rec := postJSON(h.Login, "/v1/auth/login", `{"username":"ana","password":"secreto"}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp auth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, token, resp.AccessToken)
	assert.Equal(t, "Bearer", resp.TokenType)
	require.NotNil(t, resp.Session)
	assert.Equal(t, "42", resp.Session.Subject)
}

func TestLogin_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		status int
		core   int
	}{
		{"invalid json", `{`, http.StatusBadRequest, http.StatusOK},
		{"missing password", `{"username":"ana"}`, http.StatusBadRequest, http.StatusOK},
		{"rejected credentials", `{"username":"ana","password":"mal"}`, http.StatusUnauthorized, http.StatusUnauthorized},
		{"core backend down", `{"username":"ana","password":"x"}`, http.StatusServiceUnavailable, http.StatusBadGateway},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newAuthHandler(t, func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(tt.core)
			})

			rec := postJSON(h.Login, "/v1/auth/login", tt.body)

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, "application/problem+json", rec.Header().Get("Content-Type"))
		})
	}
}

func TestLogin_ValidationErrorsListFields(t *testing.T) {
	h := newAuthHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("core backend must not be called")
	})

	rec := postJSON(h.Login, "/v1/auth/login", `{}`)

	require.Equal(t, http.StatusBadRequest, rec.Code)
	var p models.Problem
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &p))
	fields := make([]string, 0, len(p.Errors))
	for _, e := range p.Errors {
		fields = append(fields, e.Field)
	}
	assert.ElementsMatch(t, []string{"username", "password"}, fields)
}

func TestDevLogin(t *testing.T) {
	h := newAuthHandler(t, func(w http.ResponseWriter, _ *http.Request) {
		t.Error("dev login must not call the core backend")
	})

	rec := postJSON(h.DevLogin, "/v1/auth/dev", `{"username":"tester","roles":["ADMIN"]}`)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp auth.TokenResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.AccessToken)
	assert.Equal(t, "tester", resp.Session.Username)
	assert.True(t, resp.Session.HasRole("ADMIN"))

	empty := httptest.NewRequest(http.MethodPost, "/v1/auth/dev", http.NoBody)
	emptyRec := httptest.NewRecorder()
	h.DevLogin(emptyRec, empty)
	assert.Equal(t, http.StatusOK, emptyRec.Code)
}
