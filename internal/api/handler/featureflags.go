package handler

import (
	"errors"
	"net/http"
	"sort"

	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/api/response"
	"github.com/metamapa/mapgateway/internal/featureflags"
)

// FeatureFlagsHandler handles feature flag endpoints.
type FeatureFlagsHandler struct {
	service *featureflags.Service
	logger  zerolog.Logger
}

// NewFeatureFlagsHandler creates a new FeatureFlagsHandler.
func NewFeatureFlagsHandler(service *featureflags.Service, logger zerolog.Logger) *FeatureFlagsHandler {
	return &FeatureFlagsHandler{service: service, logger: logger}
}

// ListFeatureFlags handles GET /v1/admin/feature-flags - list all feature flags.
func (h *FeatureFlagsHandler) ListFeatureFlags(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.list(r))
}

// UpsertFeatureFlags handles PUT /v1/admin/feature-flags - update feature flags.
// Unknown keys reject the whole request.
func (h *FeatureFlagsHandler) UpsertFeatureFlags(w http.ResponseWriter, r *http.Request) {
	var req models.UpsertFeatureFlagsRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if len(req.Flags) == 0 {
		response.BadRequest(w, r, "flags is required", []models.FieldError{{Field: "flags", Message: "at least one flag is required", Code: "REQUIRED"}})
		return
	}

	flags := make([]*featureflags.Flag, 0, len(req.Flags))
	for _, f := range req.Flags {
		flags = append(flags, &featureflags.Flag{Key: f.Key, Value: f.Value})
	}

	if err := h.service.SetFlags(r.Context(), flags); err != nil {
		if errors.Is(err, featureflags.ErrUnknownFlag) {
			response.BadRequest(w, r, err.Error(), nil)
			return
		}
		h.logger.Error().Err(err).Msg("failed to update feature flags")
		response.InternalError(w, r, "failed to update feature flags")
		return
	}

	keys := make([]string, 0, len(flags))
	for _, f := range flags {
		keys = append(keys, f.Key)
	}
	h.logger.Info().Strs("flags", keys).Str("by", GetUserID(r.Context())).Msg("feature flags updated")
	response.JSON(w, r, http.StatusOK, h.list(r))
}

// InvalidateCache handles POST /v1/admin/feature-flags:invalidate - drop the flag cache.
func (h *FeatureFlagsHandler) InvalidateCache(w http.ResponseWriter, r *http.Request) {
	h.service.InvalidateCache()
	response.NoContent(w, r)
}

func (h *FeatureFlagsHandler) list(r *http.Request) models.FeatureFlagList {
	all := h.service.GetAllFlags(r.Context())
	out := models.FeatureFlagList{Flags: make([]models.FeatureFlag, 0, len(all))}
	for _, f := range all {
		out.Flags = append(out.Flags, models.FeatureFlag{
			Key:       f.Key,
			Value:     f.Value,
			UpdatedAt: models.OptionalTimestamp(f.UpdatedAt),
		})
	}
	sort.Slice(out.Flags, func(i, j int) bool { return out.Flags[i].Key < out.Flags[j].Key })
	return out
}
