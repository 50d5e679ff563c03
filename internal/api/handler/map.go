package handler

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"github.com/metamapa/mapgateway/internal/api/models"
	"github.com/metamapa/mapgateway/internal/api/response"
	"github.com/metamapa/mapgateway/internal/collection"
	"github.com/metamapa/mapgateway/internal/filter"
	"github.com/metamapa/mapgateway/internal/mapview"
	"github.com/metamapa/mapgateway/internal/marker"
	"github.com/metamapa/mapgateway/internal/viewport"
)

// CollectionCatalog resolves collection handles picked in the filter panel.
type CollectionCatalog interface {
	List(ctx context.Context) ([]collection.Collection, error)
	Get(ctx context.Context, handle string) (collection.Collection, error)
	Invalidate()
}

// ExportGate decides whether the GeoJSON marker export is served.
type ExportGate interface {
	GeoJSONExportEnabled(ctx context.Context) bool
}

// MapHandler handles map session endpoints.
type MapHandler struct {
	sessions    *mapview.Manager
	collections CollectionCatalog
	export      ExportGate
	logger      zerolog.Logger
}

// NewMapHandler creates a new MapHandler.
func NewMapHandler(sessions *mapview.Manager, collections CollectionCatalog, export ExportGate, logger zerolog.Logger) *MapHandler {
	return &MapHandler{
		sessions:    sessions,
		collections: collections,
		export:      export,
		logger:      logger,
	}
}

// CreateSession handles POST /v1/map/sessions - start a map session,
// optionally seeded with bounds and zoom.
func (h *MapHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req models.CreateSessionRequest
	if !decodeJSON(w, r, &req, true) {
		return
	}
	if req.Bounds != nil {
		if err := fromBounds(*req.Bounds).Validate(); err != nil {
			response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "bounds", Message: err.Error(), Code: "INVALID"}})
			return
		}
	}
	if req.Zoom != nil && !viewport.ValidZoom(*req.Zoom) {
		response.BadRequest(w, r, zoomRangeMessage, []models.FieldError{{Field: "zoom", Message: zoomRangeMessage, Code: "OUT_OF_RANGE"}})
		return
	}

	ctx := context.WithoutCancel(r.Context())
	owner := GetUserID(r.Context())
	s, err := h.sessions.Create(ctx, owner)
	if err != nil {
		h.logger.Error().Err(err).Msg("failed to create map session")
		response.InternalError(w, r, "failed to create map session")
		return
	}

	if req.Zoom != nil || req.Bounds != nil {
		s, err = h.sessions.Update(ctx, s.ID(), owner, func(s *mapview.Session) error {
			if req.Zoom != nil {
				s.ZoomEnd(ctx, *req.Zoom)
			}
			if req.Bounds != nil {
				return s.MoveEnd(ctx, fromBounds(*req.Bounds))
			}
			return nil
		})
		if err != nil {
			h.writeError(w, r, err)
			return
		}
	}

	response.Created(w, r, fmt.Sprintf("/v1/map/sessions/%s", s.ID()), toMapSession(s.Snapshot()))
}

// GetSession handles GET /v1/map/sessions/{sessionId}.
func (h *MapHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionId"), GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toMapSession(s.Snapshot()))
}

// DeleteSession handles DELETE /v1/map/sessions/{sessionId}.
func (h *MapHandler) DeleteSession(w http.ResponseWriter, r *http.Request) {
	err := h.sessions.Delete(context.WithoutCancel(r.Context()), chi.URLParam(r, "sessionId"), GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.NoContent(w, r)
}

// MoveViewport handles POST .../viewport:move - the map finished panning.
func (h *MapHandler) MoveViewport(w http.ResponseWriter, r *http.Request) {
	var req models.MoveViewportRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Bounds == nil {
		response.BadRequest(w, r, "bounds is required", []models.FieldError{{Field: "bounds", Message: "bounds is required", Code: "REQUIRED"}})
		return
	}
	bounds := fromBounds(*req.Bounds)
	h.update(w, r, func(ctx context.Context, s *mapview.Session) error {
		return s.MoveEnd(ctx, bounds)
	})
}

var zoomRangeMessage = fmt.Sprintf("zoom must be between 0 and %d", viewport.MaxZoom)

// ZoomViewport handles POST .../viewport:zoom - the map finished zooming.
func (h *MapHandler) ZoomViewport(w http.ResponseWriter, r *http.Request) {
	var req models.ZoomViewportRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.Zoom == nil {
		response.BadRequest(w, r, "zoom is required", []models.FieldError{{Field: "zoom", Message: "zoom is required", Code: "REQUIRED"}})
		return
	}
	if !viewport.ValidZoom(*req.Zoom) {
		response.BadRequest(w, r, zoomRangeMessage, []models.FieldError{{Field: "zoom", Message: zoomRangeMessage, Code: "OUT_OF_RANGE"}})
		return
	}
	zoom := *req.Zoom
	h.update(w, r, func(ctx context.Context, s *mapview.Session) error {
		s.ZoomEnd(ctx, zoom)
		return nil
	})
}

// Refresh handles POST .../refresh - re-run the current marker query.
// A failed fetch is reported in the session status, not as an HTTP error.
func (h *MapHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(ctx context.Context, s *mapview.Session) error {
		_ = s.Refresh(ctx)
		return nil
	})
}

// PatchPendingFilters handles PATCH .../filters/pending.
func (h *MapHandler) PatchPendingFilters(w http.ResponseWriter, r *http.Request) {
	var patch models.PendingFiltersPatch
	if !decodeJSON(w, r, &patch, false) {
		return
	}
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		return s.SetPendingFields(patch)
	})
}

// SetPendingCollection handles PUT .../filters/pending/collection.
func (h *MapHandler) SetPendingCollection(w http.ResponseWriter, r *http.Request) {
	var req models.SetCollectionRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}

	var sel filter.CollectionSelection
	if req.Handle != "" {
		c, err := h.collections.Get(r.Context(), req.Handle)
		if err != nil {
			h.writeError(w, r, err)
			return
		}
		sel = c.Selection()
	}
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		s.SetPendingCollection(sel)
		return nil
	})
}

// SetPendingMode handles PUT .../filters/pending/mode.
func (h *MapHandler) SetPendingMode(w http.ResponseWriter, r *http.Request) {
	var req models.SetModeRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	mode, err := filter.ParseMode(req.Mode)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		return s.SetPendingMode(mode)
	})
}

// OpenFilters handles POST .../filters:open.
func (h *MapHandler) OpenFilters(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		s.OpenFilters()
		return nil
	})
}

// ApplyFilters handles POST .../filters:apply.
func (h *MapHandler) ApplyFilters(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(ctx context.Context, s *mapview.Session) error {
		s.Apply(ctx)
		return nil
	})
}

// ClearFilters handles POST .../filters:clear.
func (h *MapHandler) ClearFilters(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(ctx context.Context, s *mapview.Session) error {
		s.Clear(ctx)
		return nil
	})
}

// OpenMarker handles POST .../markers/{markerId}:open.
func (h *MapHandler) OpenMarker(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "markerId")
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		_, err := s.OpenMarker(id)
		return err
	})
}

// CloseMarker handles POST .../markers:close.
func (h *MapHandler) CloseMarker(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		s.CloseMarker()
		return nil
	})
}

// ExportMarkers handles GET .../markers.geojson. The route reports 404
// while the export flag is off.
func (h *MapHandler) ExportMarkers(w http.ResponseWriter, r *http.Request) {
	if !h.export.GeoJSONExportEnabled(r.Context()) {
		response.NotFound(w, r, "GeoJSON export is not enabled")
		return
	}
	s, err := h.sessions.Get(r.Context(), chi.URLParam(r, "sessionId"), GetUserID(r.Context()))
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.GeoJSON(w, r, marker.ToGeoJSON(s.Pins()))
}

// OpenMedia handles POST .../media:open.
func (h *MapHandler) OpenMedia(w http.ResponseWriter, r *http.Request) {
	var req models.OpenMediaRequest
	if !decodeJSON(w, r, &req, false) {
		return
	}
	if req.MarkerID == "" {
		response.BadRequest(w, r, "markerId is required", []models.FieldError{{Field: "markerId", Message: "markerId is required", Code: "REQUIRED"}})
		return
	}
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		return s.OpenMedia(req.MarkerID)
	})
}

// NextMedia handles POST .../media:next.
func (h *MapHandler) NextMedia(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		s.NextMedia()
		return nil
	})
}

// PrevMedia handles POST .../media:prev.
func (h *MapHandler) PrevMedia(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		s.PrevMedia()
		return nil
	})
}

// CloseMedia handles POST .../media:close.
func (h *MapHandler) CloseMedia(w http.ResponseWriter, r *http.Request) {
	h.update(w, r, func(_ context.Context, s *mapview.Session) error {
		s.CloseMedia()
		return nil
	})
}

// update runs fn on the session named by the route and writes its snapshot.
// Fetches started by fn outlive a client disconnect; the session's fetch
// timeout still bounds them.
func (h *MapHandler) update(w http.ResponseWriter, r *http.Request, fn func(context.Context, *mapview.Session) error) {
	ctx := context.WithoutCancel(r.Context())
	s, err := h.sessions.Update(ctx, chi.URLParam(r, "sessionId"), GetUserID(r.Context()), func(s *mapview.Session) error {
		return fn(ctx, s)
	})
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, toMapSession(s.Snapshot()))
}

func (h *MapHandler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, mapview.ErrSessionNotFound):
		response.NotFound(w, r, "map session not found")
	case errors.Is(err, mapview.ErrMarkerNotFound):
		response.NotFound(w, r, "marker not found in the current view")
	case errors.Is(err, marker.ErrNoMedia):
		response.Conflict(w, r, "marker has no media")
	case errors.Is(err, viewport.ErrInvalidBounds):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "bounds", Message: err.Error(), Code: "INVALID"}})
	case errors.Is(err, filter.ErrUnknownField):
		response.BadRequest(w, r, err.Error(), nil)
	case errors.Is(err, filter.ErrInvalidMode):
		response.BadRequest(w, r, err.Error(), []models.FieldError{{Field: "mode", Message: err.Error(), Code: "INVALID"}})
	case errors.Is(err, collection.ErrNotFound):
		response.BadRequest(w, r, "unknown collection", []models.FieldError{{Field: "handle", Message: "unknown collection", Code: "NOT_FOUND"}})
	case errors.Is(err, collection.ErrSourceUnavailable):
		response.ServiceUnavailable(w, r, "collections are unavailable")
	default:
		h.logger.Error().Err(err).Str("path", r.URL.Path).Msg("map session operation failed")
		response.InternalError(w, r, "map session operation failed")
	}
}
