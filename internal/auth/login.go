package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/metamapa/mapgateway/internal/backend/resilience"
	"github.com/metamapa/mapgateway/internal/telemetry"
)

// LoginBackendName identifies the core backend when the login client builds its own HTTP client.
const LoginBackendName = "metamapa-core"

// Predefined login errors.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrLoginUnavailable   = errors.New("login backend unavailable")
)

// HTTPDoer is an interface for making HTTP requests.
// Both *http.Client and *resilience.Client satisfy this interface.
type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// LoginClient exchanges credentials for a token at POST {core}/auth/login.
type LoginClient struct {
	baseURL    string
	httpClient HTTPDoer
}

// LoginConfig holds configuration for the login client.
type LoginConfig struct {
	// BaseURL of the core gateway, without trailing slash.
	BaseURL string

	// HTTPClient is an optional client; a resilient one is created when nil.
	HTTPClient HTTPDoer
}

// NewLoginClient creates a login client.
func NewLoginClient(cfg LoginConfig) *LoginClient {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = resilience.NewClient(resilience.DefaultClientConfig(LoginBackendName))
	}

	return &LoginClient{
		baseURL:    strings.TrimSuffix(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// loginResponse accepts both token field spellings used by the core backend.
type loginResponse struct {
	Token       string `json:"token"`
	AccessToken string `json:"accessToken"`
	ExpiresIn   int64  `json:"expiresIn"`
}

// LoginResult is the raw outcome of a credential exchange.
type LoginResult struct {
	Token     string
	ExpiresIn time.Duration
}

// Login posts the credentials and returns the issued token.
func (c *LoginClient) Login(ctx context.Context, req *LoginRequest) (*LoginResult, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("encoding login request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/auth/login", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLoginUnavailable, err.Error())
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	telemetry.InjectHeaders(ctx, httpReq.Header)

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLoginUnavailable, err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return nil, ErrInvalidCredentials
	case resp.StatusCode == http.StatusBadRequest:
		return nil, ErrInvalidCredentials
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return nil, fmt.Errorf("%w: status %d", ErrLoginUnavailable, resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrLoginUnavailable, err.Error())
	}

	var lr loginResponse
	if err := json.Unmarshal(data, &lr); err != nil {
		return nil, fmt.Errorf("%w: decoding response: %s", ErrLoginUnavailable, err.Error())
	}

	token := lr.AccessToken
	if token == "" {
		token = lr.Token
	}
	if token == "" {
		return nil, fmt.Errorf("%w: response without token", ErrLoginUnavailable)
	}

	return &LoginResult{
		Token:     token,
		ExpiresIn: time.Duration(lr.ExpiresIn) * time.Second,
	}, nil
}
