package handler

import (
	"errors"
	"net/http"

	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/api/response"
	"github.com/metamapa/mapgateway/internal/auth"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService *auth.Service
	logger      zerolog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(authService *auth.Service, logger zerolog.Logger) *AuthHandler {
	return &AuthHandler{
		authService: authService,
		logger:      logger,
	}
}

// Login handles POST /v1/auth/login - exchange credentials with the core backend.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req auth.LoginRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	if errs := req.Validate(); len(errs) > 0 {
		fieldErrors := make([]models.FieldError, len(errs))
		for i, e := range errs {
			fieldErrors[i] = models.FieldError{
				Field:   e.Field,
				Message: e.Message,
				Code:    e.Code,
			}
		}
		response.BadRequest(w, r, "validation error", fieldErrors)
		return
	}

	tokenResp, err := h.authService.Login(r.Context(), &req)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			response.Unauthorized(w, r, "invalid username or password")
		case errors.Is(err, auth.ErrLoginUnavailable):
			response.ServiceUnavailable(w, r, "login is unavailable, try again later")
		case errors.Is(err, auth.ErrInvalidAccessToken), errors.Is(err, auth.ErrAccessTokenExpired):
			h.logger.Error().Err(err).Msg("core backend issued an unusable token")
			response.ServiceUnavailable(w, r, "login is unavailable, try again later")
		default:
			h.logger.Error().Err(err).Msg("login failed")
			response.InternalError(w, r, "authentication failed")
		}
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}

// DevLogin handles POST /v1/auth/dev - development-only authentication.
// This endpoint is only routed when AUTH_DEV_MODE=true.
func (h *AuthHandler) DevLogin(w http.ResponseWriter, r *http.Request) {
	var req auth.DevAuthenticateRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}

	tokenResp, err := h.authService.DevAuthenticate(r.Context(), &req)
	if err != nil {
		h.logger.Error().Err(err).Msg("dev authentication failed")
		response.InternalError(w, r, "dev authentication failed")
		return
	}

	response.JSON(w, r, http.StatusOK, tokenResp)
}
