package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Service provides authentication operations.
type Service struct {
	jwtService  *JWTService
	loginClient *LoginClient
}

// ServiceConfig holds configuration for the auth service.
type ServiceConfig struct {
	JWTService  *JWTService
	LoginClient *LoginClient
}

// NewService creates a new auth service.
func NewService(cfg ServiceConfig) *Service {
	return &Service{
		jwtService:  cfg.JWTService,
		loginClient: cfg.LoginClient,
	}
}

// Login exchanges credentials with the core backend and validates the
// returned token so the caller gets an explicit session.
func (s *Service) Login(ctx context.Context, req *LoginRequest) (*TokenResponse, error) {
	if errs := req.Validate(); len(errs) > 0 {
		return nil, fmt.Errorf("validation error: %s", errs[0].Message)
	}

	result, err := s.loginClient.Login(ctx, req)
	if err != nil {
		return nil, err
	}

	session, err := s.jwtService.ValidateAccessToken(result.Token)
	if err != nil {
		return nil, fmt.Errorf("validating issued token: %w", err)
	}

	expiresIn := int64(result.ExpiresIn.Seconds())
	if expiresIn == 0 && !session.ExpiresAt.IsZero() {
		expiresIn = int64(time.Until(session.ExpiresAt).Seconds())
	}

	return &TokenResponse{
		AccessToken: result.Token,
		TokenType:   "Bearer",
		ExpiresIn:   expiresIn,
		Session:     session,
	}, nil
}

// ValidateAccessToken validates a bearer token and returns its session.
func (s *Service) ValidateAccessToken(tokenString string) (*Session, error) {
	return s.jwtService.ValidateAccessToken(tokenString)
}

// DevAuthenticateRequest is the request for development authentication.
type DevAuthenticateRequest struct {
	// Username is an optional display name for the test user.
	Username string `json:"username,omitempty"`
	// Roles are optional roles carried in the token.
	Roles []string `json:"roles,omitempty"`
}

// DevAuthenticate mints a token locally without the core backend.
// This is intended for local development only and must never be enabled in production.
func (s *Service) DevAuthenticate(_ context.Context, req *DevAuthenticateRequest) (*TokenResponse, error) {
	subject := "dev_" + uuid.New().String()[:8]
	username := req.Username
	if username == "" {
		username = subject
	}

	token, expiresAt, err := s.jwtService.GenerateAccessToken(subject, username, req.Roles)
	if err != nil {
		return nil, fmt.Errorf("generating access token: %w", err)
	}

	session, err := s.jwtService.ValidateAccessToken(token)
	if err != nil {
		return nil, err
	}

	return &TokenResponse{
		AccessToken: token,
		TokenType:   "Bearer",
		ExpiresIn:   int64(time.Until(expiresAt).Seconds()),
		Session:     session,
	}, nil
}
