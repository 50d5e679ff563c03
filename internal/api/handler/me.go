package handler

import (
	"net/http"

	"github.com/metamapa/mapgateway/internal/api/middleware"
	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/api/response"
)

// MeHandler handles the caller profile endpoint.
type MeHandler struct{}

// NewMeHandler creates a new MeHandler.
func NewMeHandler() *MeHandler {
	return &MeHandler{}
}

// GetMe handles GET /v1/me - the profile carried by the bearer token.
func (h *MeHandler) GetMe(w http.ResponseWriter, r *http.Request) {
	session := middleware.GetSession(r.Context())
	if session == nil {
		response.Unauthorized(w, r, "authentication required")
		return
	}

	roles := session.Roles
	if roles == nil {
		roles = []string{}
	}
	response.JSON(w, r, http.StatusOK, models.Me{
		Subject:   session.Subject,
		Username:  session.Username,
		Roles:     roles,
		ExpiresAt: models.OptionalTimestamp(session.ExpiresAt),
	})
}
