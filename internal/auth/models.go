// Package auth validates MetaMapa bearer tokens and proxies credential
// exchange to the core backend. Authorization decisions stay with the backend.
package auth

import (
	"strings"
	"time"
)

// Session is the authenticated caller as established from a bearer token.
type Session struct {
	Subject   string    `json:"subject"`
	Username  string    `json:"username,omitempty"`
	Roles     []string  `json:"roles,omitempty"`
	ExpiresAt time.Time `json:"expiresAt"`

	// Token is the raw bearer token, forwarded to the backends.
	Token string `json:"-"`
}

// HasRole reports whether the session carries role (case-insensitive).
func (s *Session) HasRole(role string) bool {
	for _, r := range s.Roles {
		if strings.EqualFold(r, role) {
			return true
		}
	}
	return false
}

// LoginRequest is the credential exchange request body.
type LoginRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Validate validates the login request.
func (r *LoginRequest) Validate() []FieldError {
	var errors []FieldError

	if strings.TrimSpace(r.Username) == "" {
		errors = append(errors, FieldError{
			Field:   "username",
			Message: "username is required",
			Code:    "REQUIRED",
		})
	}
	if r.Password == "" {
		errors = append(errors, FieldError{
			Field:   "password",
			Message: "password is required",
			Code:    "REQUIRED",
		})
	}

	return errors
}

// FieldError represents a validation error on a specific field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// TokenResponse represents the response after successful authentication.
type TokenResponse struct {
	// AccessToken is the bearer token issued by the core backend.
	AccessToken string `json:"accessToken"`

	// TokenType is always "Bearer".
	TokenType string `json:"tokenType"`

	// ExpiresIn is the number of seconds until the token expires.
	ExpiresIn int64 `json:"expiresIn"`

	// Session is the caller established from the token.
	Session *Session `json:"session"`
}
